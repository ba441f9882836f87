package handler

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Version string `json:"version" example:"1.4.0"`
}

// FailureEnvelope documents the body of a run that ended in the failed state.
type FailureEnvelope struct {
	Error         string      `json:"error" example:"Policy evaluation failed"`
	Stage         string      `json:"stage" example:"policy_evaluation"`
	Details       string      `json:"details" example:"search: 503 Service Unavailable"`
	ClaimID       string      `json:"claim_id" example:"crash1"`
	PartialResult interface{} `json:"partial_result,omitempty"`
}

// Response wraps a successful response with data.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// ErrorResponseBody wraps an error response.
type ErrorResponseBody struct {
	Success bool      `json:"success" example:"false"`
	Error   *APIError `json:"error"`
}
