package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type contextKey string

const (
	clientContextKey contextKey = "client_id_hash"
	keyContextKey    contextKey = "pairing_key"
)

const (
	clientIDHeader   = "x-monaca-client-id-hash"
	credentialHeader = "x-monaca-client-credential"
)

func clientFromContext(ctx context.Context) string {
	v, _ := ctx.Value(clientContextKey).(string)
	return v
}

func keyFromContext(ctx context.Context) string {
	v, _ := ctx.Value(keyContextKey).(string)
	return v
}

// loggingMiddleware records each request with method, path, and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// recoveryMiddleware converts handler panics into a 500 response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic",
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requirePairing authenticates a request against the pairing store. The
// client presents its identity hash and a credential that is its own
// pairing key encrypted with itself; a round trip through the codec must
// reproduce the stored key.
func (s *Server) requirePairing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIDHash := r.Header.Get(clientIDHeader)
		credential := r.Header.Get(credentialHeader)
		if clientIDHash == "" || credential == "" {
			s.writeUnauthorized(w)
			return
		}

		key, ok := s.pairings.Get(clientIDHash)
		if !ok {
			s.writeUnauthorized(w)
			return
		}

		proof, err := s.codec.DecryptString(credential, key)
		if err != nil || proof != key {
			s.writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), clientContextKey, clientIDHash)
		ctx = context.WithValue(ctx, keyContextKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
