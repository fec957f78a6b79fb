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

// OpCrawl names the crawl call in errors, spans and metrics.
const OpCrawl = "crawl"

// CrawlRequest is the wire body of a crawl call.
type CrawlRequest struct {
	Pages []model.DiscoveredPage `json:"pages"`
}

// Links groups the link sets returned by a crawl.
type Links struct {
	Internal []model.LinkRef `json:"internal"`
	External []model.LinkRef `json:"external"`
}

// CrawlResult is a successful crawl of one batch.
type CrawlResult struct {
	Markdown string `json:"markdown"`
	Links    Links  `json:"links"`
}

type crawlResponse struct {
	Markdown string `json:"markdown"`
	Links    *Links `json:"links"`
	errorBody
}

// Crawl asks the backend to extract markdown for exactly pages. A 2xx body
// that carries an error field is reported as a KindBackend failure.
func (c *Client) Crawl(ctx context.Context, pages []model.DiscoveredPage) (CrawlResult, error) {
	if pages == nil {
		pages = []model.DiscoveredPage{}
	}
	ctx, span := c.tracer.Start(ctx, "backend.crawl",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("crawl.pages", len(pages))),
	)
	defer span.End()
	start := time.Now()

	res, status, err := c.crawl(ctx, pages)
	c.observe(span, OpCrawl, start, status, err)
	if err != nil {
		c.logger.Warn("crawl failed", zap.Int("pages", len(pages)), zap.Error(err))
		return CrawlResult{}, err
	}
	c.logger.Debug("crawl completed",
		zap.Int("pages", len(pages)),
		zap.Int("markdown_bytes", len(res.Markdown)),
	)
	return res, nil
}

func (c *Client) crawl(ctx context.Context, pages []model.DiscoveredPage) (CrawlResult, int, error) {
	raw, err := c.post(ctx, OpCrawl, c.cfg.CrawlPath, CrawlRequest{Pages: pages})
	if err != nil {
		return CrawlResult{}, 0, err
	}
	if !successful(raw.status) {
		return CrawlResult{}, raw.status, backendError(OpCrawl, raw.status, raw.body)
	}
	var body crawlResponse
	if err := json.Unmarshal(raw.body, &body); err != nil {
		return CrawlResult{}, raw.status, decodeError(OpCrawl, raw.status, err, raw.body)
	}
	if body.Error != "" {
		return CrawlResult{}, raw.status, backendError(OpCrawl, raw.status, raw.body)
	}
	res := CrawlResult{Markdown: body.Markdown}
	if body.Links != nil {
		res.Links = *body.Links
	}
	if res.Links.Internal == nil {
		res.Links.Internal = []model.LinkRef{}
	}
	if res.Links.External == nil {
		res.Links.External = []model.LinkRef{}
	}
	return res, raw.status, nil
}
