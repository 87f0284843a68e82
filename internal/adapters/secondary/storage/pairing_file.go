// Package storage persists the pairing-key map under the per-user config
// directory.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PairingFile stores the clientIdHash → key map as a flat JSON object,
// rewritten wholesale on every save. The store is process-local, so no
// cross-process locking is needed; the owning service serializes writers.
type PairingFile struct {
	path string
}

// NewPairingFile creates a store backed by the given file path.
func NewPairingFile(path string) *PairingFile {
	return &PairingFile{path: path}
}

// DefaultPath returns the conventional pairing file location.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "localkit", "pairing.json")
}

// Load reads the whole map. A missing file is an empty store.
func (s *PairingFile) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path) // #nosec G304 - path is the fixed per-user store
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	keys := make(map[string]string)
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return keys, nil
}

// Save rewrites the whole map. Last writer wins; there are no partial
// updates.
func (s *PairingFile) Save(keys map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding pairing keys: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}
