package http

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/monaca/localkit/internal/domain/ports"
	"github.com/monaca/localkit/internal/domain/services"
)

const (
	defaultOTPTTL = 5 * time.Minute

	// maxReadBody bounds the encrypted file-read request body.
	maxReadBody = 1 << 20
)

// Options configures the API gateway.
type Options struct {
	Host            string
	Port            int
	Name            string
	ServerID        string
	Version         string
	CORSOrigins     []string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	Keepalive       time.Duration

	Codec       ports.Codec
	Pairings    *services.PairingStore
	OTP         *services.OTPManager
	Registry    *services.ProjectRegistry
	Files       ports.FileProvider
	ProjectInfo ports.ProjectInfoProvider
	Inspector   ports.Inspector
	Logger      *slog.Logger
}

// Server is the HTTP API gateway. It owns the push-event broadcaster and
// exposes the port it actually bound so the discovery beacon can announce
// it.
type Server struct {
	host            string
	port            int
	name            string
	serverID        string
	version         string
	corsOrigins     []string
	readTimeout     time.Duration
	shutdownTimeout time.Duration
	keepalive       time.Duration

	codec       ports.Codec
	pairings    *services.PairingStore
	otp         *services.OTPManager
	registry    *services.ProjectRegistry
	files       ports.FileProvider
	projectInfo ports.ProjectInfoProvider
	inspector   ports.Inspector
	broadcaster *Broadcaster
	logger      *slog.Logger

	mu         sync.Mutex
	running    bool
	listener   net.Listener
	httpServer *http.Server
}

// NewServer creates a gateway from options. Zero durations fall back to
// sane defaults.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = 20 * time.Second
	}

	return &Server{
		host:            opts.Host,
		port:            opts.Port,
		name:            opts.Name,
		serverID:        opts.ServerID,
		version:         opts.Version,
		corsOrigins:     opts.CORSOrigins,
		readTimeout:     opts.ReadTimeout,
		shutdownTimeout: opts.ShutdownTimeout,
		keepalive:       opts.Keepalive,
		codec:           opts.Codec,
		pairings:        opts.Pairings,
		otp:             opts.OTP,
		registry:        opts.Registry,
		files:           opts.Files,
		projectInfo:     opts.ProjectInfo,
		inspector:       opts.Inspector,
		broadcaster:     NewBroadcaster(opts.Codec, logger),
		logger:          logger.With("component", "gateway"),
	}
}

// Broadcaster exposes the push-event broadcaster for event wiring.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// Router builds the route table. Exposed for httptest.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	r.HandleFunc("/api/pairing/request", s.handlePairingRequest).Methods(http.MethodGet)

	paired := r.NewRoute().Subrouter()
	paired.Use(s.requirePairing)
	paired.HandleFunc("/api/pairing/otp", s.handlePairingOTP).Methods(http.MethodGet)
	paired.HandleFunc("/api/projects", s.handleProjects).Methods(http.MethodGet)
	paired.HandleFunc("/api/project/{project_id}/file/tree", s.handleFileTree).Methods(http.MethodGet)
	paired.HandleFunc("/api/project/{project_id}/file/read", s.handleFileRead).Methods(http.MethodPost)
	paired.HandleFunc("/api/debugger/inspect", s.handleInspect).Methods(http.MethodGet)
	paired.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", clientIDHeader, credentialHeader, clientInfoHeader},
	})

	var handler http.Handler = r
	handler = c.Handler(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	return handler
}

func (s *Server) allowedOrigins() []string {
	if len(s.corsOrigins) > 0 {
		return s.corsOrigins
	}
	return []string{"*"}
}

// Start binds the listener and begins serving. The bound port is readable
// through Port once Start returns.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:     s.Router(),
		ReadTimeout: s.readTimeout,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	s.running = true
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("gateway listening", slog.String("addr", listener.Addr().String()))
	return nil
}

// Port returns the bound TCP port, or 0 before Start.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return 0
	}
	addr, ok := s.listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0
	}
	return addr.Port
}

// Stop shuts the gateway down gracefully, force-closing whatever is
// still open after the shutdown timeout so Stop always completes.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	s.broadcaster.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown failed, closing", slog.String("error", err.Error()))
		if closeErr := s.httpServer.Close(); closeErr != nil {
			return fmt.Errorf("closing server: %w", closeErr)
		}
	}

	s.listener = nil
	s.logger.Info("gateway stopped")
	return nil
}

// IsRunning reports whether the gateway is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
