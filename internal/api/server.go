// Package api implements the HTTP servers: the query resolution API and
// the message relay.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/agent"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/buildinfo"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/config"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/connwatch"
)

// Response headers set on every POST /api/chat reply.
const (
	HeaderOutcome   = "X-Resolution-Outcome"
	HeaderRequestID = "X-Request-ID"
)

// Fixed response messages.
const (
	msgInvalidBody   = "invalid request body"
	msgInternalError = "Something went wrong"
)

// maxBodyBytes caps the chat request body.
const maxBodyBytes = 1 << 20

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Resolver answers one query. *agent.Loop implements it.
type Resolver interface {
	Resolve(ctx context.Context, requestID, input string) (agent.Resolution, error)
}

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	Input string `json:"input"`
}

// ChatResponse is the POST /api/chat reply, for every status.
type ChatResponse struct {
	Message string `json:"message"`
}

// Server is the query resolution API server.
type Server struct {
	address  string
	port     int
	resolver Resolver
	chat     config.ChatConfig
	landing  http.Handler
	watch    *connwatch.Watcher
	usage    UsageReader
	now      func() time.Time
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates the API server. landing may be nil, in which case
// GET / reports service status as JSON.
func NewServer(address string, port int, resolver Resolver, chat config.ChatConfig, landing http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if chat.FailureMessage == "" {
		chat.FailureMessage = config.DefaultFailureMessage
	}
	return &Server{
		address:  address,
		port:     port,
		resolver: resolver,
		chat:     chat,
		landing:  landing,
		now:      time.Now,
		logger:   logger,
	}
}

// SetGeneratorWatch adds the backend probe state to GET /health. Call it
// before Start.
func (s *Server) SetGeneratorWatch(w *connwatch.Watcher) {
	s.watch = w
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /v1/usage", s.handleUsage)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return withLogging(s.logger, "request", mux)
}

// Start begins serving. It blocks until the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // generator calls can be slow
		BaseContext:  baseContext(ctx),
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleChat resolves one query.
//
// Status mapping:
//
//	answered                   200, generator text
//	answered_from_observation  404 (200 with chat.observation_as_success), observation text
//	exhausted, failed          404, chat.failure_message
//	resolver error             500
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	requestID := agent.NewRequestID()
	w.Header().Set(HeaderRequestID, requestID)

	var req ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Debug("chat request rejected", "request_id", requestID, "error", err)
		s.reply(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	rz, err := s.resolver.Resolve(r.Context(), requestID, req.Input)
	if err != nil {
		// The resolver has logged the cause.
		w.Header().Set(HeaderOutcome, string(agent.OutcomeFailed))
		s.reply(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	w.Header().Set(HeaderOutcome, string(rz.Outcome.Kind))
	status, message := s.statusFor(rz.Outcome)
	s.reply(w, status, message)
}

// statusFor maps an outcome to the HTTP status and message.
func (s *Server) statusFor(o agent.Outcome) (int, string) {
	switch o.Kind {
	case agent.OutcomeAnswered:
		return http.StatusOK, o.Text
	case agent.OutcomeAnsweredFromObservation:
		if s.chat.ObservationAsSuccess {
			return http.StatusOK, o.Text
		}
		return http.StatusNotFound, o.Text
	default:
		return http.StatusNotFound, s.chat.FailureMessage
	}
}

func (s *Server) reply(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, ChatResponse{Message: message}, s.logger)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if s.landing != nil {
		s.landing.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "menuagent",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

// handleHealth always answers 200. A generator that fails its probe
// marks the service degraded, since queries may still succeed once it
// comes back.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.watch == nil {
		writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
		return
	}

	gen := s.watch.Status()
	status := "healthy"
	if !gen.Ready {
		status = "degraded"
	}
	writeJSON(w, map[string]any{"status": status, "generator": gen}, s.logger)
}

// statusRecorder captures the response status for request logs. It
// forwards Hijack so websocket upgrades pass through.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// withLogging logs method, path, status, and duration of every request.
func withLogging(logger *slog.Logger, msg string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info(msg,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// baseContext makes ctx the parent of every request context.
func baseContext(ctx context.Context) func(net.Listener) context.Context {
	return func(net.Listener) context.Context { return ctx }
}
