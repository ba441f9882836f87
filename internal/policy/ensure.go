// Package policy evaluates a structured claim against retrieved policy
// documents.
package policy

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/port"
)

// Ensurer makes sure a retrieval index asset exists before evaluation and
// remembers asset IDs it has already resolved.
type Ensurer struct {
	registry       port.IndexRegistry
	connectionName string
	indexName      string
	cache          *gocache.Cache
}

// NewEnsurer creates an Ensurer that registers indexName, reached through
// connectionName, when the asset is missing. Resolved IDs are cached for ttl.
func NewEnsurer(registry port.IndexRegistry, connectionName, indexName string, ttl time.Duration) *Ensurer {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Ensurer{
		registry:       registry,
		connectionName: connectionName,
		indexName:      indexName,
		cache:          gocache.New(ttl, 2*ttl),
	}
}

// Ensure returns the asset ID for name@version, creating the asset if it does
// not exist. Concurrent callers may both create it; a conflict on create is
// resolved by reading the asset the other caller registered.
func (e *Ensurer) Ensure(ctx context.Context, name, version string) (string, error) {
	cacheKey := name + "@" + version
	if id, ok := e.cache.Get(cacheKey); ok {
		return id.(string), nil
	}

	asset, err := e.registry.GetIndex(ctx, name, version)
	switch {
	case err == nil:
		zap.L().Info("policy.Ensurer: using existing index asset",
			zap.String("name", name), zap.String("version", version))
	case errors.Is(err, domain.ErrIndexNotFound):
		asset, err = e.create(ctx, name, version)
		if err != nil {
			return "", err
		}
	default:
		return "", eris.Wrapf(err, "policy: get index asset %s", cacheKey)
	}

	id := assetID(asset, name, version)
	e.cache.SetDefault(cacheKey, id)
	return id, nil
}

func (e *Ensurer) create(ctx context.Context, name, version string) (*port.IndexAsset, error) {
	if e.connectionName == "" {
		return nil, eris.Wrap(domain.ErrMissingConfig, "policy: search connection is not configured; cannot create index asset")
	}
	zap.L().Info("policy.Ensurer: index asset not found, creating it",
		zap.String("name", name), zap.String("version", version),
		zap.String("index_name", e.indexName))

	asset, err := e.registry.CreateOrUpdateIndex(ctx, port.IndexAsset{
		Name:           name,
		Version:        version,
		ConnectionName: e.connectionName,
		IndexName:      e.indexName,
	})
	if err == nil {
		return asset, nil
	}
	if !errors.Is(err, domain.ErrIndexConflict) {
		return nil, eris.Wrapf(err, "policy: create index asset %s@%s", name, version)
	}

	zap.L().Info("policy.Ensurer: index asset created concurrently, re-reading",
		zap.String("name", name), zap.String("version", version))
	asset, err = e.registry.GetIndex(ctx, name, version)
	if err != nil {
		return nil, eris.Wrapf(err, "policy: re-read index asset %s@%s", name, version)
	}
	return asset, nil
}

func assetID(asset *port.IndexAsset, name, version string) string {
	if asset != nil && asset.ID != "" {
		return asset.ID
	}
	return name + "/versions/" + version
}
