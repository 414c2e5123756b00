// Package server is a development collector for tracker payloads. It checks
// the wire contract and hands payloads to a Sink; it stores nothing itself.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/nexora/nexora-analytics/internal/models"
)

const (
	CollectPath  = "/api/v1/tracking/collect"
	maxBodyBytes = 1 << 20
)

type Server struct {
	sink        Sink
	address     string
	logger      *slog.Logger
	corsOrigins []string
	server      *http.Server
	now         func() time.Time
}

func NewServer(sink Sink, address string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sink:    sink,
		address: address,
		logger:  logger,
		now:     time.Now,
	}
}

// AllowOrigins restricts CORS to origins. With none, any origin is allowed.
func (s *Server) AllowOrigins(origins ...string) {
	s.corsOrigins = origins
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handleCollect(w http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, request.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	var payload models.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if err := ValidatePayload(payload); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	d := Delivery{Payload: payload, Bytes: len(body), ReceivedAt: s.now()}
	if err := s.sink.Accept(request.Context(), d); err != nil {
		s.logger.Error("sink error", "type", payload.Type, "error", err)
		http.Error(w, "Failed to accept payload", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent) // success, no body
}

// ValidatePayload checks the fields every payload must carry.
func ValidatePayload(p models.Payload) error {
	if p.APIKey == "" {
		return errors.New("apiKey cannot be empty")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("invalid payload type: %q", p.Type)
	}
	if p.Data == nil {
		return errors.New("data cannot be empty")
	}
	if v, _ := p.Data["visitorId"].(string); v == "" {
		return errors.New("data.visitorId cannot be empty")
	}
	if p.Type == models.TypeEventsBatch {
		events, _ := p.Data["events"].([]any)
		if len(events) == 0 {
			return errors.New("events.batch requires at least one event")
		}
	}
	return nil
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(s.corsOrigins) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case slices.Contains(s.corsOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle(CollectPath, s.cors(http.HandlerFunc(s.handleCollect)))
	return mux
}

// Handler returns the collector routes.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.server = &http.Server{
		Handler:      s.setupRoutes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("collector listening", "addr", listener.Addr().String())
		serveErr <- s.server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("collector stopped: %w", err)
	case <-ctx.Done():
	}
	s.logger.Info("shutting down collector")

	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownContext); err != nil {
		return fmt.Errorf("collector forced to shutdown: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("collector exited")
	return nil
}
