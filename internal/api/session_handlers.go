package api

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/backend"
	"github.com/JakeFAU/docs-discovery-console/internal/hash/sha256"
	"github.com/JakeFAU/docs-discovery-console/internal/orchestrator"
	"github.com/JakeFAU/docs-discovery-console/internal/session"
	"github.com/JakeFAU/docs-discovery-console/internal/stats"
	"github.com/JakeFAU/docs-discovery-console/internal/storage"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 500
)

type sessionResponse struct {
	Session session.Snapshot `json:"session"`
	Stats   stats.Stats      `json:"stats"`
}

type crawlSelectedRequest struct {
	URLs []string `json:"urls"`
}

type crawlSelectedResponse struct {
	orchestrator.CrawlOutcome
	PersistError string `json:"persistError,omitempty"`
}

// sessionFailure carries the outcome alongside the error so the console can
// redraw from the reconciled state.
type sessionFailure struct {
	errorPayload
	Outcome any `json:"outcome,omitempty"`
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ctl.Snapshot(r.Context())
	if err != nil {
		s.writeControllerError(w, r, err, nil)
		return
	}
	st, err := s.ctl.Stats(r.Context())
	if err != nil {
		s.writeControllerError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: snap, Stats: st})
}

func (s *Server) sessionDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.ctl.Discover(r.Context(), req.URL, backend.ParseDepth(req.Depth))
	if err != nil {
		s.writeControllerError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) sessionCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlSelectedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.ctl.CrawlSelected(r.Context(), req.URLs)
	if err != nil {
		var outcome any
		if len(out.Selection) > 0 {
			outcome = out
		}
		s.writeControllerError(w, r, err, outcome)
		return
	}
	resp := crawlSelectedResponse{CrawlOutcome: out}
	if out.PersistErr != nil {
		resp.PersistError = out.PersistErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// getDocument serves the aggregated markdown, or HTML with ?format=html.
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	content, key, err := s.ctl.Document(r.Context())
	if err != nil {
		s.writeControllerError(w, r, err, nil)
		return
	}
	contentType := "text/markdown; charset=utf-8"
	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown":
	case "html":
		if content, err = s.md.HTML(content); err != nil {
			s.writeControllerError(w, r, err, nil)
			return
		}
		contentType = "text/html; charset=utf-8"
	default:
		writeError(w, http.StatusBadRequest, "format must be markdown or html")
		return
	}

	etag := sha256.ETag(content)
	w.Header().Set("ETag", etag)
	if key != "" {
		w.Header().Set("X-Document-Key", key)
	}
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(content)); err != nil {
		s.logger.Warn("write document", zap.Error(err))
	}
}

func (s *Server) getOutline(w http.ResponseWriter, r *http.Request) {
	content, key, err := s.ctl.Document(r.Context())
	if err != nil {
		s.writeControllerError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":      key,
		"headings": s.md.Outline(content),
	})
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxNotificationLimit)
	}
	items := []any{}
	if s.feed != nil {
		for _, n := range s.feed.Recent(limit) {
			items = append(items, n)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

// writeControllerError maps orchestrator failures onto HTTP statuses.
func (s *Server) writeControllerError(w http.ResponseWriter, r *http.Request, err error, outcome any) {
	status := http.StatusInternalServerError
	payload := errorPayload{Error: err.Error()}
	switch {
	case errors.Is(err, orchestrator.ErrInvalidURL), errors.Is(err, orchestrator.ErrNothingSelected):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrSelectionInFlight),
		errors.Is(err, session.ErrDiscoveryInFlight),
		errors.Is(err, session.ErrCrawlInFlight):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
		payload.Error = "no document has been crawled yet"
	case errors.Is(err, session.ErrClosed):
		status = http.StatusServiceUnavailable
	default:
		if be, ok := backend.AsError(err); ok {
			payload = payloadFor(err)
			status = http.StatusBadGateway
			if be.Kind == backend.KindTimeout {
				status = http.StatusGatewayTimeout
			}
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("session request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, sessionFailure{errorPayload: payload, Outcome: outcome})
}
