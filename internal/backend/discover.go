package backend

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/model"
)

// OpDiscover names the discovery call in errors, spans and metrics.
const OpDiscover = "discover"

// DiscoverRequest is the wire body of a discovery call.
type DiscoverRequest struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}

// DiscoverResult is a successful discovery. An empty page list is valid.
type DiscoverResult struct {
	Pages   []model.DiscoveredPage `json:"pages"`
	Message string                 `json:"message,omitempty"`
	Depth   int                    `json:"-"`
}

// Empty reports whether discovery ran and found nothing.
func (r DiscoverResult) Empty() bool {
	return len(r.Pages) == 0
}

type discoverResponse struct {
	Pages   []model.DiscoveredPage `json:"pages"`
	Message string                 `json:"message"`
	errorBody
}

// Discover asks the backend for pages reachable from seedURL. depth is clamped
// to [MinDepth, MaxDepth] here and nowhere else.
func (c *Client) Discover(ctx context.Context, seedURL string, depth int) (DiscoverResult, error) {
	depth = ClampDepth(depth)
	ctx, span := c.tracer.Start(ctx, "backend.discover",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("discover.url", seedURL),
			attribute.Int("discover.depth", depth),
		),
	)
	defer span.End()
	start := time.Now()

	res, status, err := c.discover(ctx, seedURL, depth)
	c.observe(span, OpDiscover, start, status, err)
	if err != nil {
		c.logger.Warn("discovery failed",
			zap.String("url", seedURL),
			zap.Int("depth", depth),
			zap.Error(err),
		)
		return DiscoverResult{}, err
	}
	c.logger.Debug("discovery completed",
		zap.String("url", seedURL),
		zap.Int("depth", depth),
		zap.Int("pages", len(res.Pages)),
	)
	return res, nil
}

func (c *Client) discover(ctx context.Context, seedURL string, depth int) (DiscoverResult, int, error) {
	raw, err := c.post(ctx, OpDiscover, c.cfg.DiscoverPath, DiscoverRequest{URL: seedURL, Depth: depth})
	if err != nil {
		return DiscoverResult{}, 0, err
	}
	if !successful(raw.status) {
		return DiscoverResult{}, raw.status, backendError(OpDiscover, raw.status, raw.body)
	}
	var body discoverResponse
	if err := json.Unmarshal(raw.body, &body); err != nil {
		return DiscoverResult{}, raw.status, decodeError(OpDiscover, raw.status, err, raw.body)
	}
	if body.Error != "" {
		return DiscoverResult{}, raw.status, backendError(OpDiscover, raw.status, raw.body)
	}
	pages := body.Pages
	if pages == nil {
		pages = []model.DiscoveredPage{}
	}
	return DiscoverResult{Pages: pages, Message: body.Message, Depth: depth}, raw.status, nil
}
