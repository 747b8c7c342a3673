package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAssets(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func TestStoreServesAllowedAssets(t *testing.T) {
	dir := writeAssets(t, map[string]string{
		"icons/check.png": "check",
		"icons/x/y.png":   "nested",
		"notes.txt":       "private",
	})
	allow := func(name string) bool { return strings.HasSuffix(name, ".png") }

	s, err := OpenStore(context.Background(), dir, allow, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"icons/check.png", "icons/x/y.png"}, s.Names())

	data, err := s.Asset(context.Background(), "icons/x/y.png")
	require.NoError(t, err)
	assert.Equal(t, "nested", string(data))

	_, err = s.Asset(context.Background(), "notes.txt")
	assert.ErrorIs(t, err, ErrNotAllowed)

	_, err = s.Asset(context.Background(), "icons/missing.png")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestStoreReindexPicksUpNewFiles(t *testing.T) {
	dir := writeAssets(t, map[string]string{"a.png": "a"})
	s, err := OpenStore(context.Background(), dir, nil, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("b"), 0o644))
	_, err = s.Asset(context.Background(), "b.png")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	require.NoError(t, s.Reindex(context.Background()))
	_, err = s.Asset(context.Background(), "b.png")
	assert.NoError(t, err)
}

func TestOpenStoreMissingDir(t *testing.T) {
	_, err := OpenStore(context.Background(), filepath.Join(t.TempDir(), "nope"), nil, nil)
	assert.Error(t, err)
}
