// Package azure implements the retrieval ports on Azure AI Search and the
// Azure AI Foundry index registry.
package azure

import (
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/rotisserie/eris"
)

const (
	moduleName    = "claimflow/search"
	moduleVersion = "v1"

	searchScope  = "https://search.azure.com/.default"
	foundryScope = "https://ai.azure.com/.default"
)

// Auth selects how requests are authorized. An API key takes precedence over
// a token credential. When neither is set the default Azure credential chain
// is used.
type Auth struct {
	APIKey     string
	Credential azcore.TokenCredential
	// Transport overrides the HTTP transport, mainly for tests.
	Transport policy.Transporter
}

func newPipeline(auth Auth, scope string) (runtime.Pipeline, error) {
	var perRetry []policy.Policy
	switch {
	case auth.APIKey != "":
		perRetry = append(perRetry, runtime.NewKeyCredentialPolicy(azcore.NewKeyCredential(auth.APIKey), "api-key", nil))
	default:
		cred := auth.Credential
		if cred == nil {
			dc, err := azidentity.NewDefaultAzureCredential(nil)
			if err != nil {
				return runtime.Pipeline{}, eris.Wrap(err, "azure: default credential")
			}
			cred = dc
		}
		perRetry = append(perRetry, runtime.NewBearerTokenPolicy(cred, []string{scope}, nil))
	}

	opts := &policy.ClientOptions{
		// Retries belong to the caller.
		Retry:     policy.RetryOptions{MaxRetries: -1},
		Transport: auth.Transport,
	}
	return runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{PerRetry: perRetry}, opts), nil
}

func joinURL(endpoint string, segments ...string) string {
	return strings.TrimRight(endpoint, "/") + "/" + strings.Join(segments, "/")
}

// responseError converts an unexpected response into an *azcore.ResponseError
// so callers can classify it by status code.
func responseError(resp *http.Response) error {
	return runtime.NewResponseError(resp)
}
