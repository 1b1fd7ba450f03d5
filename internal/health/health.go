// Package health serves the consumer's /healthz endpoint.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Source reports the live state of the overlay consumer.
type Source interface {
	Connected() bool
	ItemCount() int
}

// Response is the JSON body returned from /healthz.
type Response struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Items     int    `json:"items"`
	Error     string `json:"error,omitempty"`
}

// Server is an HTTP health check endpoint. It runs in a background goroutine
// and can be gracefully shut down.
type Server struct {
	server *http.Server
	source Source
	logger *slog.Logger
}

// NewServer creates a health server listening on 127.0.0.1:port.
func NewServer(source Source, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	s := &Server{
		server: &http.Server{
			Addr:         net.JoinHostPort("127.0.0.1", fmt.Sprint(port)),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		source: source,
		logger: logger,
	}
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s
}

// Handler exposes the routes for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the port and serves in a background goroutine. Binding errors
// such as a port already in use are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}

	go func() {
		s.logger.Debug("health: server starting", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("health: server error", "error", err)
		}
		s.logger.Debug("health: server stopped")
	}()
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealthz returns 200 while the broadcaster connection is live and
// 503 otherwise.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	response := Response{
		Status:    "healthy",
		Connected: s.source.Connected(),
		Items:     s.source.ItemCount(),
	}
	statusCode := http.StatusOK
	if !response.Connected {
		response.Status = "unhealthy"
		response.Error = "not connected to broadcaster"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("health: failed to encode response", "error", err)
	}
}
