package port

import "context"

// SearchQuery asks the retrieval collaborator for grounding documents.
type SearchQuery struct {
	Index    string
	Text     string
	TopK     int
	Semantic bool
}

// SearchDocument is one ranked candidate. The pipeline never interprets
// Content; it is passed verbatim to the reasoning collaborator.
type SearchDocument struct {
	ID        string
	Title     string
	Content   string
	Score     float64
	Reference string
}

// Retriever abstracts the policy document search service.
type Retriever interface {
	Search(ctx context.Context, query SearchQuery) ([]SearchDocument, error)
}

// IndexAsset is a versioned, addressable retrieval index registration.
type IndexAsset struct {
	ID             string
	Name           string
	Version        string
	ConnectionName string
	IndexName      string
}

// IndexRegistry manages index assets. GetIndex returns
// domain.ErrIndexNotFound when the asset does not exist, and
// CreateOrUpdateIndex returns domain.ErrIndexConflict when a concurrent
// writer won the race.
type IndexRegistry interface {
	GetIndex(ctx context.Context, name, version string) (*IndexAsset, error)
	CreateOrUpdateIndex(ctx context.Context, asset IndexAsset) (*IndexAsset, error)
}
