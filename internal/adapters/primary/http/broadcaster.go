package http

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/monaca/localkit/internal/domain/entities"
	"github.com/monaca/localkit/internal/domain/ports"
)

// Connection is one open push-channel stream to a paired client.
type Connection struct {
	ID           string
	ClientIDHash string
	Key          string
	// Meta is the connect-time handshake metadata declared by the client.
	Meta map[string]any

	send chan string
	done chan struct{}
}

// Broadcaster manages the set of live push connections and multiplexes
// outgoing messages. Messages are JSON-encoded and encrypted with each
// connection's pairing key before they reach the stream writer.
type Broadcaster struct {
	codec  ports.Codec
	logger *slog.Logger

	mu    sync.Mutex
	conns map[string]*Connection

	// onDisconnect is raised with the client metadata when a connection
	// closes.
	onDisconnect func(meta map[string]any)
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(codec ports.Codec, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	return &Broadcaster{
		codec:  codec,
		logger: logger.With("component", "broadcaster"),
		conns:  make(map[string]*Connection),
	}
}

// OnDisconnect registers the client-disconnected notification hook.
func (b *Broadcaster) OnDisconnect(fn func(meta map[string]any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDisconnect = fn
}

// Register adds a validated connection to the live set.
func (b *Broadcaster) Register(clientIDHash, key string, meta map[string]any) *Connection {
	conn := &Connection{
		ID:           uuid.New().String(),
		ClientIDHash: clientIDHash,
		Key:          key,
		Meta:         meta,
		send:         make(chan string, 64),
		done:         make(chan struct{}),
	}

	b.mu.Lock()
	b.conns[conn.ID] = conn
	b.mu.Unlock()

	b.logger.Info("client connected",
		slog.String("connection_id", conn.ID),
		slog.String("client_id_hash", clientIDHash),
	)
	return conn
}

// Unregister removes a connection, signals its stream writer to stop, and
// raises the client-disconnected notification with the recorded metadata.
// The send channel is never closed; a broadcast racing the disconnect may
// still deliver into its buffer, which is harmless once nothing reads it.
func (b *Broadcaster) Unregister(conn *Connection) {
	b.mu.Lock()
	_, ok := b.conns[conn.ID]
	if ok {
		delete(b.conns, conn.ID)
		close(conn.done)
	}
	hook := b.onDisconnect
	b.mu.Unlock()

	if !ok {
		return
	}

	b.logger.Info("client disconnected", slog.String("connection_id", conn.ID))
	if hook != nil {
		hook(conn.Meta)
	}
	conn.Meta = nil
}

// Count returns the number of live connections.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Broadcast sends a message to every live connection. Iteration runs over
// a snapshot so a concurrent disconnect cannot corrupt it; slow consumers
// have the frame dropped rather than stalling the rest.
func (b *Broadcaster) Broadcast(msg entities.PushMessage) {
	for _, conn := range b.snapshot() {
		b.deliver(conn, msg)
	}
}

// SendTo sends a message to the connection(s) of one client identity. It
// fails with ErrNoSuchClient when that identity has no live connection.
func (b *Broadcaster) SendTo(clientIDHash string, msg entities.PushMessage) error {
	sent := false
	for _, conn := range b.snapshot() {
		if conn.ClientIDHash != clientIDHash {
			continue
		}
		b.deliver(conn, msg)
		sent = true
	}

	if !sent {
		return fmt.Errorf("client %s: %w", clientIDHash, entities.ErrNoSuchClient)
	}
	return nil
}

// StartProject tells clients to bring a project to the foreground. An
// empty target broadcasts to everyone.
func (b *Broadcaster) StartProject(projectID, targetClientID string) error {
	msg := entities.PushMessage{
		Action:    entities.MessageStart,
		ProjectID: projectID,
		Timestamp: time.Now(),
	}

	if targetClientID == "" {
		b.Broadcast(msg)
		return nil
	}
	return b.SendTo(targetClientID, msg)
}

// BroadcastFileEvent translates a watcher file event into the matching
// push message and broadcasts it.
func (b *Broadcaster) BroadcastFileEvent(ev entities.FileEvent) {
	msg := entities.PushMessage{
		ProjectID: ev.ProjectID,
		Path:      ev.Path,
		Timestamp: time.Now(),
	}

	switch ev.Type {
	case entities.ChangeCreate, entities.ChangeUpdate:
		msg.Action = entities.MessageFileSave
		msg.Content = base64Encode(ev.Content)
		msg.Hash = ev.Hash
	case entities.ChangeDelete:
		msg.Action = entities.MessageFileDelete
	case entities.ChangeMkdir:
		msg.Action = entities.MessageMakeDir
	case entities.ChangeResync:
		msg.Action = entities.MessageResync
		msg.Path = ""
	default:
		return
	}

	b.Broadcast(msg)
}

// KeepaliveFrame builds the encrypted keep-alive frame for one connection.
func (b *Broadcaster) KeepaliveFrame(conn *Connection) (string, error) {
	return b.encode(entities.PushMessage{
		Action:    entities.MessageKeepalive,
		Timestamp: time.Now(),
	}, conn.Key)
}

// CloseAll announces shutdown to every connection and drops them all,
// used on server shutdown. The exit frame is best-effort; a stream that
// never drains it still gets torn down.
func (b *Broadcaster) CloseAll() {
	exit := entities.PushMessage{
		Action:    entities.MessageExit,
		Timestamp: time.Now(),
	}

	for _, conn := range b.snapshot() {
		b.deliver(conn, exit)
		b.Unregister(conn)
	}
}

func (b *Broadcaster) snapshot() []*Connection {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*Connection, 0, len(b.conns))
	for _, conn := range b.conns {
		out = append(out, conn)
	}
	return out
}

func (b *Broadcaster) deliver(conn *Connection, msg entities.PushMessage) {
	frame, err := b.encode(msg, conn.Key)
	if err != nil {
		// A revoked pairing key produces send failures that are silently
		// ignored apart from the log line.
		b.logger.Warn("encoding frame",
			slog.String("connection_id", conn.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	select {
	case conn.send <- frame:
	case <-conn.done:
	default:
		b.logger.Warn("connection too slow, dropping frame", slog.String("connection_id", conn.ID))
	}
}

func base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func (b *Broadcaster) encode(msg entities.PushMessage, key string) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}
	return b.codec.EncryptString(string(payload), key)
}
