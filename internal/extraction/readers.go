package extraction

import (
	"context"
	"errors"
	"os"

	"github.com/rotisserie/eris"

	"claimflow/internal/domain"
	"claimflow/internal/port"
)

// StorageReader reads artifacts from a container of an ObjectStorage backend.
type StorageReader struct {
	storage   port.ObjectStorage
	container string
}

// NewStorageReader creates a StorageReader over the given container.
func NewStorageReader(storage port.ObjectStorage, container string) *StorageReader {
	return &StorageReader{storage: storage, container: container}
}

func (r *StorageReader) ReadArtifact(ctx context.Context, key string) ([]byte, error) {
	return r.storage.Download(ctx, r.container, key)
}

// FileReader reads artifacts from the local filesystem; keys are paths.
type FileReader struct{}

func (FileReader) ReadArtifact(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(key)
	if errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrapf(domain.ErrInputNotFound, "extraction: %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "extraction: read %s", key)
	}
	return data, nil
}

// MemoryReader serves artifacts held in memory, such as an uploaded image.
type MemoryReader map[string][]byte

func (m MemoryReader) ReadArtifact(_ context.Context, key string) ([]byte, error) {
	data, ok := m[key]
	if !ok {
		return nil, eris.Wrapf(domain.ErrInputNotFound, "extraction: %s", key)
	}
	return data, nil
}
