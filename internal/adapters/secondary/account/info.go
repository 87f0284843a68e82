package account

import (
	"context"
	"path/filepath"

	"github.com/monaca/localkit/internal/domain/ports"
)

// LocalProjectInfo describes projects from their local directory alone,
// standing in for the hosted project-info collaborator.
type LocalProjectInfo struct{}

// NewLocalProjectInfo creates a local project-info provider.
func NewLocalProjectInfo() *LocalProjectInfo {
	return &LocalProjectInfo{}
}

// Describe returns display metadata for a tracked project.
func (p *LocalProjectInfo) Describe(ctx context.Context, projectID, path string) (ports.ProjectInfo, error) {
	return ports.ProjectInfo{
		ProjectID: projectID,
		Name:      filepath.Base(path),
	}, nil
}

// NullInspector answers remote-inspection requests with an empty payload;
// the real collaborator runs in the debugger tooling.
type NullInspector struct{}

// NewNullInspector creates a no-op inspector.
func NewNullInspector() *NullInspector {
	return &NullInspector{}
}

// Inspect echoes the query back with no targets.
func (i *NullInspector) Inspect(ctx context.Context, query map[string]string) (map[string]any, error) {
	return map[string]any{"targets": []any{}, "query": query}, nil
}
