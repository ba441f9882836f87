// Package local implements port.ObjectStorage on a directory tree. Each
// bucket is a subdirectory of the root.
package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"claimflow/internal/domain"
	"claimflow/internal/port"
)

type localStorage struct {
	root string
}

// NewLocalStorage creates a filesystem-backed ObjectStorage rooted at dir.
func NewLocalStorage(dir string) (port.ObjectStorage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "local: resolve %s", dir)
	}
	return &localStorage{root: abs}, nil
}

func (l *localStorage) Upload(ctx context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	p, err := l.path(input.Bucket, input.Key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, eris.Wrapf(err, "local: create directory for %s", input.Key)
	}

	f, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return nil, eris.Wrapf(err, "local: upload %s", input.Key)
	}
	tmp := f.Name()
	if _, err := io.Copy(f, input.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return nil, eris.Wrapf(err, "local: write %s", input.Key)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return nil, eris.Wrapf(err, "local: write %s", input.Key)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return nil, eris.Wrapf(err, "local: commit %s", input.Key)
	}
	return &port.UploadOutput{Location: p}, nil
}

func (l *localStorage) Download(_ context.Context, bucket, key string) ([]byte, error) {
	p, err := l.path(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(domain.ErrInputNotFound, "local: %s/%s", bucket, key)
		}
		return nil, eris.Wrapf(err, "local: read %s", key)
	}
	return data, nil
}

// List walks the bucket and returns files whose slash-separated key starts
// with prefix, sorted by key.
func (l *localStorage) List(ctx context.Context, bucket, prefix string) ([]port.ObjectInfo, error) {
	base, err := l.path(bucket, "")
	if err != nil {
		return nil, err
	}

	var out []port.ObjectInfo
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, port.ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(domain.ErrInputNotFound, "local: bucket %s", bucket)
		}
		return nil, eris.Wrapf(err, "local: list %s", bucket)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (l *localStorage) Delete(_ context.Context, bucket, key string) error {
	p, err := l.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return eris.Wrapf(domain.ErrInputNotFound, "local: %s/%s", bucket, key)
		}
		return eris.Wrapf(err, "local: delete %s", key)
	}
	return nil
}

// path resolves bucket/key under the root and rejects keys that escape it.
func (l *localStorage) path(bucket, key string) (string, error) {
	p := filepath.Join(l.root, filepath.FromSlash(bucket), filepath.FromSlash(key))
	if p != l.root && !strings.HasPrefix(p, l.root+string(filepath.Separator)) {
		return "", eris.Wrapf(domain.ErrInvalidInput, "local: key %q escapes storage root", key)
	}
	return p, nil
}
