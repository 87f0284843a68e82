package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const clientInfoHeader = "x-monaca-client-info"

// handleEvents upgrades a paired request into a server-sent-event stream
// and pumps broadcast frames to the client until it disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	clientIDHash := clientFromContext(r.Context())
	key := keyFromContext(r.Context())

	meta := s.clientInfo(r, key, clientIDHash)
	conn := s.broadcaster.Register(clientIDHash, key, meta)
	defer s.broadcaster.Unregister(conn)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(s.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case frame := <-conn.send:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				return
			}
			flusher.Flush()

		case <-conn.done:
			return

		case <-keepalive.C:
			frame, err := s.broadcaster.KeepaliveFrame(conn)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// clientInfo decodes the optional connect-time metadata header. Garbage
// metadata is tolerated; identity falls back to the credential hash.
func (s *Server) clientInfo(r *http.Request, key, clientIDHash string) map[string]any {
	meta := map[string]any{"clientIdHash": clientIDHash}

	raw := r.Header.Get(clientInfoHeader)
	if raw == "" {
		return meta
	}

	plain, err := s.codec.DecryptString(raw, key)
	if err != nil {
		s.logger.Debug("undecodable client info header", slog.String("error", err.Error()))
		return meta
	}

	var declared map[string]any
	if err := json.Unmarshal([]byte(plain), &declared); err != nil {
		s.logger.Debug("malformed client info header", slog.String("error", err.Error()))
		return meta
	}

	for k, v := range declared {
		meta[k] = v
	}
	return meta
}
