// Package webhook exposes the Teams-facing HTTP surface: the webhook
// endpoint, health check, and metrics endpoint. It owns signature
// verification and the request pipeline budget; classification, dispatch,
// and card rendering are delegated to collaborators.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"teamsbot/internal/domain"
	"teamsbot/internal/metrics"
	"teamsbot/internal/store"
)

// Dispatcher routes a classified intent to an agent and returns the
// response envelope.
type Dispatcher interface {
	Dispatch(ctx context.Context, in domain.Intent, city string) domain.Envelope
}

// Renderer turns a response envelope into an Adaptive Card attachment.
type Renderer interface {
	Render(env domain.Envelope) domain.Attachment
}

// Recorder persists delivery audit rows. A nil Recorder disables auditing.
type Recorder interface {
	Record(ctx context.Context, d store.Delivery) error
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Host            string
	Port            int
	WebhookPath     string
	Secret          string // HMAC secret; empty disables signature checks
	BotID           string
	BotName         string
	RequestTimeout  time.Duration
	MetricsEnabled  bool
	MetricsEndpoint string
	Version         string
	Logger          *slog.Logger
	Dispatcher      Dispatcher
	Renderer        Renderer
	Recorder        Recorder
}

// Server is the webhook HTTP server.
type Server struct {
	host            string
	port            int
	webhookPath     string
	secret          string
	botID           string
	botName         string
	timeout         time.Duration
	metricsEnabled  bool
	metricsEndpoint string
	version         string
	logger          *slog.Logger
	dispatcher      Dispatcher
	renderer        Renderer
	recorder        Recorder
	server          *http.Server
}

// NewServer creates a webhook server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/api/teams/webhook"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MetricsEndpoint == "" {
		cfg.MetricsEndpoint = "/metrics"
	}
	if cfg.BotName == "" {
		cfg.BotName = "Teams Weather Bot"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Secret == "" {
		cfg.Logger.Warn("webhook secret not configured, signature verification disabled")
	}
	return &Server{
		host:            cfg.Host,
		port:            cfg.Port,
		webhookPath:     cfg.WebhookPath,
		secret:          cfg.Secret,
		botID:           cfg.BotID,
		botName:         cfg.BotName,
		timeout:         cfg.RequestTimeout,
		metricsEnabled:  cfg.MetricsEnabled,
		metricsEndpoint: cfg.MetricsEndpoint,
		version:         cfg.Version,
		logger:          cfg.Logger,
		dispatcher:      cfg.Dispatcher,
		renderer:        cfg.Renderer,
		recorder:        cfg.Recorder,
	}
}

// Handler returns the full route tree with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.webhookPath, s.handleWebhook)
	mux.HandleFunc("/health", s.handleHealth)
	if s.metricsEnabled {
		mux.Handle(s.metricsEndpoint, metrics.Collector.Handler())
	}
	mux.HandleFunc("/", s.handleNotFound)
	return s.withRequestID(s.withLogging(mux))
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("webhook server starting",
		"addr", s.server.Addr,
		"path", s.webhookPath,
		"signature_check", s.secret != "",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   s.version,
		"service":   "teamsbot",
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error":     "Endpoint not found",
		"path":      r.URL.Path,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// --- Middleware ---

type ctxKey int

const requestIDKey ctxKey = iota

// RequestIDFrom returns the request ID stored by the middleware, or "".
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// withRequestID assigns each request an ID, honoring an inbound
// X-Request-ID so callers can correlate across hops.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withLogging logs one line per request and stamps X-Response-Time.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, start: start, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"request_id", RequestIDFrom(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// statusRecorder captures the response status and writes the
// X-Response-Time header just before the headers are flushed.
type statusRecorder struct {
	http.ResponseWriter
	start  time.Time
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.Header().Set("X-Response-Time", fmt.Sprintf("%.3fs", time.Since(r.start).Seconds()))
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wrote {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
