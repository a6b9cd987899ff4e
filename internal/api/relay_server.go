package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/relay"
)

// RelayServer serves the websocket message relay on its own port.
type RelayServer struct {
	address string
	port    int
	hub     *relay.Hub
	page    http.Handler
	logger  *slog.Logger
	server  *http.Server
}

// NewRelayServer creates the relay server. page is served at / and may
// be nil.
func NewRelayServer(address string, port int, hub *relay.Hub, page http.Handler, logger *slog.Logger) *RelayServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayServer{
		address: address,
		port:    port,
		hub:     hub,
		page:    page,
		logger:  logger,
	}
}

// Handler returns the routed handler with request logging.
func (s *RelayServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /socket", relay.Handler(s.hub))
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.page != nil {
		mux.Handle("GET /{$}", s.page)
	}

	return withLogging(s.logger, "relay request", mux)
}

// Start begins serving. It blocks until the server is shut down.
func (s *RelayServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		BaseContext: baseContext(ctx),
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting relay server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections and disconnects every peer.
// http.Server.Shutdown does not touch hijacked connections, so the hub
// closes them.
func (s *RelayServer) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *RelayServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"status": "healthy", "peers": s.hub.Count()}, s.logger)
}
