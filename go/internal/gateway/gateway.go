package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/pathduel/go/internal/duel"
)

// StatusProvider is what the gateway reports on.
type StatusProvider interface {
	Snapshot() duel.Snapshot
	TransportStats() map[string]interface{}
}

// Config holds configuration for the status gateway
type Config struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	ShutdownWait   time.Duration
}

// DefaultConfig returns default gateway configuration
func DefaultConfig() Config {
	return Config{
		Addr:           ":8081",
		AllowedOrigins: []string{"*"},
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    120 * time.Second,
		ShutdownWait:   10 * time.Second,
	}
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Session   duel.Snapshot          `json:"session"`
	Transport map[string]interface{} `json:"transport"`
}

// Server exposes a duel session over HTTP: health, status, and the WebSocket
// endpoint an opponent joins through when hosting over WebSocket.
type Server struct {
	config   Config
	provider StatusProvider

	mu       sync.Mutex
	duelWS   http.Handler
	server   *http.Server
	listener net.Listener
}

// NewServer creates a gateway for provider.
func NewServer(config Config, provider StatusProvider) *Server {
	return &Server{config: config, provider: provider}
}

// MountDuel installs the handler served at /ws/duel.
func (s *Server) MountDuel(h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duelWS = h
}

// Handler returns the full handler chain: chi routes, CORS, then h2c.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/ws/duel", s.handleDuelSocket)
	s.registerRPC(r.Handle)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return h2c.NewHandler(c.Handler(r), &http2.Server{})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Session:   s.provider.Snapshot(),
		Transport: s.provider.TransportStats(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode status response")
	}
}

func (s *Server) handleDuelSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h := s.duelWS
	s.mu.Unlock()

	if h == nil {
		http.Error(w, "not hosting over websocket", http.StatusServiceUnavailable)
		return
	}
	h.ServeHTTP(w, r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// Listen binds the configured address. Start serves on it.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen on %s: %w", s.config.Addr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	return nil
}

// Addr is the bound address once Listen succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start serves until ctx is done, then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	needListen := s.server == nil
	s.mu.Unlock()
	if needListen {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	srv, ln := s.server, s.listener
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("gateway starting")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("gateway serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("gateway shutting down")
	return s.Stop()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownWait)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("gateway shutdown: %w", err)
	}
	return nil
}
