// Package script provides access to script sources on disk: reading files
// for the parser, resolving module source files next to an importing
// script, and locating a project's root directory by marker files.
package script

import (
	"context"
	"io"
	"path/filepath"

	"github.com/viant/afs"
)

// Loader reads script sources through an abstract file service.
type Loader struct {
	fs afs.Service
}

// NewLoader creates a loader over the default file service.
func NewLoader() *Loader {
	return &Loader{fs: afs.New()}
}

// Load reads the source of the script at path.
func (l *Loader) Load(ctx context.Context, path string) (string, error) {
	reader, err := l.fs.OpenURL(ctx, path)
	if err != nil {
		return "", err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Exists reports whether a script exists at path.
func (l *Loader) Exists(ctx context.Context, path string) bool {
	ok, _ := l.fs.Exists(ctx, path)
	return ok
}

// Resolve locates a module source file relative to the importing script's
// directory: `with utils` in /proj/main maps to /proj/utils.elk.
func (l *Loader) Resolve(ctx context.Context, importerDir, name string) (string, bool) {
	candidate := filepath.Join(importerDir, name+".elk")
	if l.Exists(ctx, candidate) {
		return candidate, true
	}
	return "", false
}
