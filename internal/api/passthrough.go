package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/backend"
	"github.com/JakeFAU/docs-discovery-console/internal/model"
)

type discoverRequest struct {
	URL   string          `json:"url"`
	Depth json.RawMessage `json:"depth"`
}

// passthroughFailure keeps the pages field so clients can treat it like an
// empty discovery.
type passthroughFailure struct {
	errorPayload
	Pages []model.DiscoveredPage `json:"pages"`
}

// passDiscover forwards one discovery call. Depth is parsed leniently and
// clamped by the client.
func (s *Server) passDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeFailure(w, http.StatusBadRequest, errorPayload{Error: "invalid request body", Details: err.Error()})
		return
	}
	seed := strings.TrimSpace(req.URL)
	if seed == "" {
		s.writeFailure(w, http.StatusBadRequest, errorPayload{Error: "url is required"})
		return
	}
	res, err := s.backend.Discover(r.Context(), seed, backend.ParseDepth(req.Depth))
	if err != nil {
		s.logger.Warn("pass-through discover failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		s.writeFailure(w, mirroredStatus(err), payloadFor(err))
		return
	}
	if res.Pages == nil {
		res.Pages = []model.DiscoveredPage{}
	}
	writeJSON(w, http.StatusOK, res)
}

// passCrawl forwards one crawl call with the pages exactly as given.
func (s *Server) passCrawl(w http.ResponseWriter, r *http.Request) {
	var req backend.CrawlRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeFailure(w, http.StatusBadRequest, errorPayload{Error: "invalid request body", Details: err.Error()})
		return
	}
	res, err := s.backend.Crawl(r.Context(), req.Pages)
	if err != nil {
		s.logger.Warn("pass-through crawl failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Int("pages", len(req.Pages)),
			zap.Error(err),
		)
		s.writeFailure(w, mirroredStatus(err), payloadFor(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeFailure(w http.ResponseWriter, status int, p errorPayload) {
	writeJSON(w, status, passthroughFailure{errorPayload: p, Pages: []model.DiscoveredPage{}})
}
