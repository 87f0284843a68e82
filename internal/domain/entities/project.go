package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Project is a tracked local source directory. The id is derived from the
// absolute path so the same directory always yields the same id across
// process restarts.
type Project struct {
	ID   string `json:"projectId"`
	Path string `json:"path"`
	Name string `json:"name"`
}

// ProjectOptions carries optional per-project settings at registration.
type ProjectOptions struct {
	// Name overrides the display name; defaults to the directory basename.
	Name string
}

// ProjectID returns the stable identifier for a project directory.
func ProjectID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])
}

// NewProject builds a Project for the given directory.
func NewProject(path string, opts ProjectOptions) Project {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	name := opts.Name
	if name == "" {
		name = filepath.Base(abs)
	}
	return Project{
		ID:   ProjectID(abs),
		Path: abs,
		Name: name,
	}
}
