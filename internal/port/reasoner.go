package port

import "context"

// ReasoningRequest is one instruction-plus-payload call to a text generator.
type ReasoningRequest struct {
	Instruction string
	Input       string
	Temperature float32
	MaxTokens   int
}

// ReasoningResponse is the raw generated text. It is untrusted and must go
// through llmjson before being used as a record.
type ReasoningResponse struct {
	Text      string
	ModelUsed string
}

// Reasoner abstracts the external reasoning/generation service.
type Reasoner interface {
	Complete(ctx context.Context, req ReasoningRequest) (*ReasoningResponse, error)
}
