package script

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectRootFindsMarker(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "scripts", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	scriptFile := filepath.Join(nested, "main.elk")
	require.NoError(t, os.WriteFile(scriptFile, []byte("1"), 0o644))

	got, err := NewDetector().DetectRoot(scriptFile)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestDetectRootFallsBackToScriptDir(t *testing.T) {
	dir := t.TempDir()
	scriptFile := filepath.Join(dir, "main.elk")
	require.NoError(t, os.WriteFile(scriptFile, []byte("1"), 0o644))

	got, err := NewDetector().DetectRoot(scriptFile)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}
