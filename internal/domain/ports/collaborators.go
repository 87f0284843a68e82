package ports

import "context"

// AccountService exchanges a client-supplied request token for a fresh
// pairing key scoped to the client identity. The cloud implementation
// lives outside this service; the local adapter issues keys directly for
// the manual pairing flow.
type AccountService interface {
	ExchangePairingKey(ctx context.Context, requestToken, clientIDHash string) (string, error)
}

// ProjectInfo describes a tracked project with remote metadata.
type ProjectInfo struct {
	ProjectID   string `json:"projectId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ProjectInfoProvider enriches local projects with remote metadata.
type ProjectInfoProvider interface {
	Describe(ctx context.Context, projectID, path string) (ProjectInfo, error)
}

// Inspector forwards remote-inspection requests to the debugger tooling.
type Inspector interface {
	Inspect(ctx context.Context, query map[string]string) (map[string]any, error)
}

// FileNode is one entry in a project file listing.
type FileNode struct {
	Path  string `json:"path"`
	IsDir bool   `json:"dir,omitempty"`
	Size  int64  `json:"size,omitempty"`
	Hash  string `json:"hash,omitempty"`
}

// FileProvider lists and reads files inside a project directory, subject
// to the ignore-list filter. Read rejects paths resolving outside root.
type FileProvider interface {
	Tree(root string) ([]FileNode, error)
	Read(root, rel string) ([]byte, error)
}
