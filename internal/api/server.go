package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/config"
	"github.com/JakeFAU/docs-discovery-console/internal/markdown"
	"github.com/JakeFAU/docs-discovery-console/internal/metrics"
	"github.com/JakeFAU/docs-discovery-console/internal/notify"
	"github.com/JakeFAU/docs-discovery-console/internal/orchestrator"
	"github.com/JakeFAU/docs-discovery-console/internal/session"
	"github.com/JakeFAU/docs-discovery-console/internal/stats"
)

const (
	defaultRequestTimeout = 180 * time.Second
	readyTimeout          = time.Second
)

// Controller is the orchestrator surface the session endpoints drive.
type Controller interface {
	Discover(ctx context.Context, seedURL string, depth int) (orchestrator.DiscoverOutcome, error)
	CrawlSelected(ctx context.Context, urls []string) (orchestrator.CrawlOutcome, error)
	Snapshot(ctx context.Context) (session.Snapshot, error)
	Stats(ctx context.Context) (stats.Stats, error)
	Document(ctx context.Context) (string, string, error)
}

// Feed returns recently emitted notifications, newest first.
type Feed interface {
	Recent(limit int) []notify.Notification
}

// Server wires HTTP handlers to the controller and backend client.
type Server struct {
	router  chi.Router
	ctl     Controller
	backend orchestrator.Backend
	feed    Feed
	md      *markdown.Renderer
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. feed may be nil,
// in which case the notifications endpoint always returns an empty list.
func NewServer(ctl Controller, client orchestrator.Backend, feed Feed, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ctl:     ctl,
		backend: client,
		feed:    feed,
		md:      markdown.New(),
		cfg:     cfg,
		logger:  logger,
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/api", func(r chi.Router) {
			r.Post("/discover", s.passDiscover)
			r.Post("/crawl", s.passCrawl)
			r.Get("/notifications", s.listNotifications)
			r.Route("/session", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Post("/discover", s.sessionDiscover)
				r.Post("/crawl", s.sessionCrawl)
				r.Get("/document", s.getDocument)
				r.Get("/document/outline", s.getOutline)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports ready once the session store answers.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if _, err := s.ctl.Snapshot(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
