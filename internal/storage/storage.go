// Package storage selects the configured object storage backend.
package storage

import (
	"github.com/rotisserie/eris"

	"claimflow/internal/config"
	"claimflow/internal/domain"
	"claimflow/internal/port"
	"claimflow/internal/storage/azblob"
	"claimflow/internal/storage/local"
	"claimflow/internal/storage/s3"
)

// New returns the ObjectStorage for cfg.Provider.
func New(cfg *config.StorageConfig) (port.ObjectStorage, error) {
	switch cfg.Provider {
	case "azblob":
		return azblob.NewAzBlobClient(&cfg.AzBlob)
	case "s3":
		return s3.NewS3Client(&cfg.S3)
	case "local", "":
		return local.NewLocalStorage(cfg.LocalDir)
	default:
		return nil, eris.Wrapf(domain.ErrMissingConfig, "storage: unknown provider %q", cfg.Provider)
	}
}
