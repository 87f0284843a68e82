// Package files implements the file-enumeration/read collaborator for
// tracked project directories.
package files

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/monaca/localkit/internal/domain/entities"
	"github.com/monaca/localkit/internal/domain/ports"
)

// Provider lists and reads files inside a project directory, applying the
// ignore-list filter and rejecting paths that resolve outside the root.
type Provider struct {
	ignore []string
}

// NewProvider creates a provider with the given ignore list (directory or
// file basenames).
func NewProvider(ignore []string) *Provider {
	return &Provider{ignore: ignore}
}

// Tree returns the filtered file and directory listing under root, with
// paths relative to root and a leading slash.
func (p *Provider) Tree(root string) ([]ports.FileNode, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	var nodes []ports.FileNode
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == absRoot {
			return nil
		}

		if p.ignored(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}

		node := ports.FileNode{
			Path:  "/" + filepath.ToSlash(rel),
			IsDir: d.IsDir(),
		}
		if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			node.Size = info.Size()
		}

		nodes = append(nodes, node)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", absRoot, err)
	}

	return nodes, nil
}

// Read returns one file's bytes. The resolved path must stay within root;
// escapes fail with ErrOutOfBounds regardless of whether the target
// exists. Directories fail with ErrNotFound.
func (p *Provider) Read(root, rel string) ([]byte, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	target := filepath.Join(absRoot, filepath.FromSlash(rel))
	resolved, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	if resolved != absRoot && !strings.HasPrefix(resolved, absRoot+string(filepath.Separator)) {
		return nil, fmt.Errorf("path %s escapes project root: %w", rel, entities.ErrOutOfBounds)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", rel, entities.ErrNotFound)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", rel, entities.ErrNotFound)
	}

	data, err := os.ReadFile(resolved) // #nosec G304 - containment checked above
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return data, nil
}

// Checksum returns the SHA256 hex digest of a file's bytes, for listing
// enrichment.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (p *Provider) ignored(name string) bool {
	for _, pattern := range p.ignore {
		if name == pattern {
			return true
		}
	}
	return strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp")
}
