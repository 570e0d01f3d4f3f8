package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderReadsSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.elk")
	require.NoError(t, os.WriteFile(path, []byte("let x = 1"), 0o644))

	loader := NewLoader()
	source, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "let x = 1", source)
	assert.True(t, loader.Exists(context.Background(), path))
	assert.False(t, loader.Exists(context.Background(), filepath.Join(dir, "missing.elk")))
}

func TestLoaderResolvesImports(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "utils.elk"), []byte("fn"), 0o644))

	loader := NewLoader()
	resolved, ok := loader.Resolve(context.Background(), dir, "utils")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "utils.elk"), resolved)

	_, ok = loader.Resolve(context.Background(), dir, "missing")
	assert.False(t, ok)
}
