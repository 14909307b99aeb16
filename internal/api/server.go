package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mindmirror/mindmirror/internal/messaging"
	"github.com/mindmirror/mindmirror/internal/models"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

// EventHandler processes one inbound webhook event. Implemented by the
// conversation orchestrator.
type EventHandler interface {
	HandleEvent(ctx context.Context, event models.InboundEvent, reply *messaging.ReplyHandle) error
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server routes webhook deliveries to the conversation orchestrator.
type Server struct {
	handler    EventHandler
	msgService messaging.Service
	addr       string
	httpServer *http.Server
}

// NewServer creates the API server.
func NewServer(handler EventHandler, msgService messaging.Service, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		handler:    handler,
		msgService: msgService,
		addr:       cfg.Addr,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.healthHandler)
	r.Post("/webhook", s.webhookHandler)
	return r
}

// Start begins serving HTTP. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}
	slog.Info("API server listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("MindMirror is awake", nil))
}

// webhookRequest is the transport's delivery envelope: a batch of events
// per HTTP call.
type webhookRequest struct {
	Events []models.InboundEvent `json:"events"`
}

// webhookHandler handles POST /webhook. The transport requires a fast 200
// acknowledgement; each event is handled in-turn but analysis work is
// detached by the orchestrator, so the ack never waits on the generator.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("webhookHandler invoked", "method", r.Method, "path", r.URL.Path)

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("webhookHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	for _, event := range req.Events {
		s.handleEvent(r.Context(), event)
	}

	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// handleEvent runs one event through the orchestrator with its own
// single-use reply handle. Failures are logged, never surfaced to the
// transport: a non-200 would only trigger redelivery of the same event.
func (s *Server) handleEvent(ctx context.Context, event models.InboundEvent) {
	handle := messaging.NewReplyHandle(s.msgService, event.UserID, event.ReplyToken)

	if err := s.handler.HandleEvent(ctx, event, handle); err != nil {
		slog.Warn("webhookHandler event rejected", "error", err, "userID", event.UserID)
		return
	}
	if err := handle.Flush(ctx); err != nil {
		slog.Error("webhookHandler reply flush failed", "error", err, "userID", event.UserID)
	}
}
