package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimflow/internal/domain"
	"claimflow/internal/port"
	"claimflow/internal/storage/local"
)

func TestUploadDownloadListDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := local.NewLocalStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"incoming/crash1_front.jpeg", "incoming/crash1_back.jpeg", "results/crash1.json"} {
		_, err := s.Upload(ctx, port.UploadInput{Bucket: "statements", Key: key, Body: bytes.NewReader([]byte(key))})
		require.NoError(t, err)
	}

	data, err := s.Download(ctx, "statements", "incoming/crash1_front.jpeg")
	require.NoError(t, err)
	assert.Equal(t, "incoming/crash1_front.jpeg", string(data))
	assert.FileExists(t, filepath.Join(dir, "statements", "results", "crash1.json"))

	objects, err := s.List(ctx, "statements", "incoming/")
	require.NoError(t, err)
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"incoming/crash1_back.jpeg", "incoming/crash1_front.jpeg"}, keys)

	require.NoError(t, s.Delete(ctx, "statements", "results/crash1.json"))
	_, err = s.Download(ctx, "statements", "results/crash1.json")
	assert.ErrorIs(t, err, domain.ErrInputNotFound)
}

func TestList_SkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "c"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c", ".DS_Store"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c", "a_front.jpg"), []byte("x"), 0o644))

	s, err := local.NewLocalStorage(dir)
	require.NoError(t, err)

	objects, err := s.List(context.Background(), "c", "")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "a_front.jpg", objects[0].Key)
	assert.Equal(t, int64(1), objects[0].Size)
}

func TestMissingBucketAndEscapingKeys(t *testing.T) {
	s, err := local.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.List(ctx, "nope", "")
	assert.ErrorIs(t, err, domain.ErrInputNotFound)

	_, err = s.Download(ctx, "statements", "../../etc/passwd")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
