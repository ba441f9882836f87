package azure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"claimflow/internal/config"
	"claimflow/internal/port"
)

const defaultSearchAPIVersion = "2024-07-01"

// SearchClient implements port.Retriever against the Azure AI Search REST API.
type SearchClient struct {
	pipeline   runtime.Pipeline
	endpoint   string
	apiVersion string

	semanticConfig string
	idField        string
	titleField     string
	contentField   string
	referenceField string
}

// Compile-time check that SearchClient implements port.Retriever.
var _ port.Retriever = (*SearchClient)(nil)

// NewSearchClient creates a search client. The API key in cfg, when present,
// overrides auth.APIKey.
func NewSearchClient(cfg *config.SearchConfig, auth Auth) (*SearchClient, error) {
	if cfg.Endpoint == "" {
		return nil, eris.New("azure: search endpoint is required")
	}
	if cfg.APIKey != "" {
		auth.APIKey = cfg.APIKey
	}
	pl, err := newPipeline(auth, searchScope)
	if err != nil {
		return nil, err
	}

	c := &SearchClient{
		pipeline:       pl,
		endpoint:       cfg.Endpoint,
		apiVersion:     cfg.APIVersion,
		semanticConfig: cfg.SemanticConfiguration,
		idField:        cfg.IDField,
		titleField:     cfg.TitleField,
		contentField:   cfg.ContentField,
		referenceField: cfg.ReferenceField,
	}
	if c.apiVersion == "" {
		c.apiVersion = defaultSearchAPIVersion
	}
	if c.semanticConfig == "" {
		c.semanticConfig = "default"
	}
	if c.idField == "" {
		c.idField = "id"
	}
	if c.contentField == "" {
		c.contentField = "content"
	}
	return c, nil
}

type searchRequest struct {
	Search                string `json:"search"`
	Top                   int    `json:"top"`
	QueryType             string `json:"queryType,omitempty"`
	SemanticConfiguration string `json:"semanticConfiguration,omitempty"`
}

type searchResponse struct {
	Value []map[string]json.RawMessage `json:"value"`
}

// Search runs one query against query.Index and maps each hit to a
// SearchDocument using the configured field names.
func (c *SearchClient) Search(ctx context.Context, query port.SearchQuery) ([]port.SearchDocument, error) {
	if query.Index == "" {
		return nil, eris.New("azure: search index is required")
	}
	top := query.TopK
	if top <= 0 {
		top = 5
	}

	body := searchRequest{Search: query.Text, Top: top}
	if query.Semantic {
		body.QueryType = "semantic"
		body.SemanticConfiguration = c.semanticConfig
	}

	endpoint := joinURL(c.endpoint, "indexes", url.PathEscape(query.Index), "docs", "search")
	req, err := runtime.NewRequest(ctx, http.MethodPost, endpoint)
	if err != nil {
		return nil, eris.Wrap(err, "azure: build search request")
	}
	req.Raw().URL.RawQuery = url.Values{"api-version": {c.apiVersion}}.Encode()
	req.Raw().Header.Set("Accept", "application/json")
	if err := runtime.MarshalAsJSON(req, body); err != nil {
		return nil, eris.Wrap(err, "azure: encode search request")
	}

	resp, err := c.pipeline.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "azure: search request")
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, eris.Wrapf(responseError(resp), "azure: search index %s", query.Index)
	}

	var out searchResponse
	if err := runtime.UnmarshalAsJSON(resp, &out); err != nil {
		return nil, eris.Wrap(err, "azure: decode search response")
	}

	docs := make([]port.SearchDocument, 0, len(out.Value))
	for _, hit := range out.Value {
		docs = append(docs, c.toDocument(hit))
	}

	zap.L().Debug("azure.SearchClient: search complete",
		zap.String("index", query.Index), zap.Int("hits", len(docs)), zap.Bool("semantic", query.Semantic))
	return docs, nil
}

func (c *SearchClient) toDocument(hit map[string]json.RawMessage) port.SearchDocument {
	doc := port.SearchDocument{
		ID:        fieldString(hit, c.idField),
		Title:     fieldString(hit, c.titleField),
		Content:   fieldString(hit, c.contentField),
		Reference: fieldString(hit, c.referenceField),
	}
	// Prefer the semantic reranker score when the service returned one.
	for _, key := range []string{"@search.rerankerScore", "@search.score"} {
		if raw, ok := hit[key]; ok {
			var score float64
			if json.Unmarshal(raw, &score) == nil {
				doc.Score = score
				break
			}
		}
	}
	return doc
}

// fieldString renders a document field as text. Non-string values are kept
// as their JSON encoding so nothing is lost.
func fieldString(hit map[string]json.RawMessage, name string) string {
	if name == "" {
		return ""
	}
	raw, ok := hit[name]
	if !ok || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
