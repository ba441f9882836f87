package azure

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/rotisserie/eris"

	"claimflow/internal/config"
	"claimflow/internal/domain"
	"claimflow/internal/port"
)

const defaultFoundryAPIVersion = "2025-05-01"

// IndexClient implements port.IndexRegistry against the index assets of an
// Azure AI Foundry project.
type IndexClient struct {
	pipeline   runtime.Pipeline
	endpoint   string
	apiVersion string
}

// Compile-time check that IndexClient implements port.IndexRegistry.
var _ port.IndexRegistry = (*IndexClient)(nil)

// NewIndexClient creates an index registry client for the project endpoint.
func NewIndexClient(cfg *config.FoundryConfig, auth Auth) (*IndexClient, error) {
	if cfg.ProjectEndpoint == "" {
		return nil, eris.New("azure: foundry project endpoint is required")
	}
	pl, err := newPipeline(auth, foundryScope)
	if err != nil {
		return nil, err
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultFoundryAPIVersion
	}
	return &IndexClient{pipeline: pl, endpoint: cfg.ProjectEndpoint, apiVersion: apiVersion}, nil
}

// indexAsset is the wire shape of an AzureSearch index asset.
type indexAsset struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
	Version        string `json:"version,omitempty"`
	Type           string `json:"type"`
	ConnectionName string `json:"connectionName"`
	IndexName      string `json:"indexName"`
}

func (a indexAsset) toPort() *port.IndexAsset {
	return &port.IndexAsset{
		ID:             a.ID,
		Name:           a.Name,
		Version:        a.Version,
		ConnectionName: a.ConnectionName,
		IndexName:      a.IndexName,
	}
}

// GetIndex reads name@version. A 404 maps to domain.ErrIndexNotFound.
func (c *IndexClient) GetIndex(ctx context.Context, name, version string) (*port.IndexAsset, error) {
	req, err := c.newRequest(ctx, http.MethodGet, name, version)
	if err != nil {
		return nil, err
	}

	resp, err := c.pipeline.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "azure: get index asset")
	}
	switch {
	case runtime.HasStatusCode(resp, http.StatusOK):
	case runtime.HasStatusCode(resp, http.StatusNotFound):
		_ = resp.Body.Close()
		return nil, eris.Wrapf(domain.ErrIndexNotFound, "azure: index asset %s@%s", name, version)
	default:
		return nil, eris.Wrapf(responseError(resp), "azure: get index asset %s@%s", name, version)
	}

	var asset indexAsset
	if err := runtime.UnmarshalAsJSON(resp, &asset); err != nil {
		return nil, eris.Wrap(err, "azure: decode index asset")
	}
	return asset.toPort(), nil
}

// CreateOrUpdateIndex registers an AzureSearch index asset. A 409 or 412
// maps to domain.ErrIndexConflict.
func (c *IndexClient) CreateOrUpdateIndex(ctx context.Context, asset port.IndexAsset) (*port.IndexAsset, error) {
	req, err := c.newRequest(ctx, http.MethodPut, asset.Name, asset.Version)
	if err != nil {
		return nil, err
	}
	if err := runtime.MarshalAsJSON(req, indexAsset{
		Type:           "AzureSearch",
		ConnectionName: asset.ConnectionName,
		IndexName:      asset.IndexName,
	}); err != nil {
		return nil, eris.Wrap(err, "azure: encode index asset")
	}

	resp, err := c.pipeline.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "azure: create index asset")
	}
	switch {
	case runtime.HasStatusCode(resp, http.StatusOK, http.StatusCreated):
	case runtime.HasStatusCode(resp, http.StatusConflict, http.StatusPreconditionFailed):
		_ = resp.Body.Close()
		return nil, eris.Wrapf(domain.ErrIndexConflict, "azure: index asset %s@%s", asset.Name, asset.Version)
	default:
		return nil, eris.Wrapf(responseError(resp), "azure: create index asset %s@%s", asset.Name, asset.Version)
	}

	var out indexAsset
	if err := runtime.UnmarshalAsJSON(resp, &out); err != nil {
		return nil, eris.Wrap(err, "azure: decode index asset")
	}
	return out.toPort(), nil
}

func (c *IndexClient) newRequest(ctx context.Context, method, name, version string) (*policy.Request, error) {
	endpoint := joinURL(c.endpoint, "indexes", url.PathEscape(name), "versions", url.PathEscape(version))
	req, err := runtime.NewRequest(ctx, method, endpoint)
	if err != nil {
		return nil, eris.Wrap(err, "azure: build index request")
	}
	req.Raw().URL.RawQuery = url.Values{"api-version": {c.apiVersion}}.Encode()
	req.Raw().Header.Set("Accept", "application/json")
	return req, nil
}
