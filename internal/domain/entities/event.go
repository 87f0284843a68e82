package entities

import "time"

// ChangeType classifies a file change observed by a project watcher.
type ChangeType int

const (
	// ChangeCreate indicates a previously absent path appeared.
	ChangeCreate ChangeType = iota
	// ChangeUpdate indicates an existing file's content changed.
	ChangeUpdate
	// ChangeDelete indicates a path no longer exists.
	ChangeDelete
	// ChangeMkdir indicates a new directory appeared.
	ChangeMkdir
	// ChangeResync indicates the client should refetch full project state.
	ChangeResync
)

// String returns the string representation of ChangeType.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreate:
		return "create"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	case ChangeMkdir:
		return "mkdir"
	case ChangeResync:
		return "resync"
	default:
		return "unknown"
	}
}

// FileEvent is a change to one project file, produced by a watcher and
// consumed immediately by the broadcaster. Never stored.
type FileEvent struct {
	ProjectID string
	Type      ChangeType
	// Path is relative to the project's content root, with a leading slash.
	Path    string
	Content []byte
	Hash    string
}

// Push message kinds sent over the event stream.
const (
	MessageStart      = "start"
	MessageExit       = "exit"
	MessageResync     = "resync"
	MessageFileSave   = "fileSave"
	MessageMakeDir    = "makeDir"
	MessageFileDelete = "fileDelete"
	MessageKeepalive  = "keepalive"
)

// PushMessage is the JSON payload written (encrypted) to push connections.
type PushMessage struct {
	Action    string    `json:"action"`
	ProjectID string    `json:"projectId,omitempty"`
	Path      string    `json:"path,omitempty"`
	Content   string    `json:"content,omitempty"`
	Hash      string    `json:"contentHash,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
