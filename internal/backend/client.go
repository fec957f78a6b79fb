// Package backend is the HTTP client for the discovery/crawl backend. It
// bounds every call with a deadline and normalizes failures into *Error.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/metrics"
)

const (
	defaultDiscoverPath = "/api/discover"
	defaultCrawlPath    = "/api/crawl"
	defaultTimeout      = 60 * time.Second
	defaultMaxBodyBytes = 32 << 20
	tracerName          = "github.com/JakeFAU/docs-discovery-console/internal/backend"
)

// Limiter throttles calls per operation.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Config controls how the client reaches the backend.
type Config struct {
	BaseURL      string
	DiscoverPath string
	CrawlPath    string
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	// Limiter is optional. Time spent waiting counts against Timeout.
	Limiter Limiter
}

// Client issues discovery and crawl requests.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	cfg        Config
	tracer     trace.Tracer
	logger     *zap.Logger
}

// New validates cfg and builds a Client. A nil httpClient uses a default one.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("backend base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend base url must be http or https, got %q", cfg.BaseURL)
	}
	if cfg.DiscoverPath == "" {
		cfg.DiscoverPath = defaultDiscoverPath
	}
	if cfg.CrawlPath == "" {
		cfg.CrawlPath = defaultCrawlPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		cfg:        cfg,
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
	}, nil
}

// Timeout returns the per-call deadline.
func (c *Client) Timeout() time.Duration {
	return c.cfg.Timeout
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

type rawResponse struct {
	status int
	body   []byte
}

// post sends payload as JSON and returns the raw response. Only transport
// failures are returned as errors; status handling is left to the caller.
func (c *Client) post(ctx context.Context, op, path string, payload any) (rawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx, op); err != nil {
			return rawResponse{}, classifyTransport(op, err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return rawResponse{}, fmt.Errorf("marshal %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return rawResponse{}, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rawResponse{}, classifyTransport(op, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close backend response body", zap.String("op", op), zap.Error(cerr))
		}
	}()
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return rawResponse{}, classifyTransport(op, err)
	}
	return rawResponse{status: resp.StatusCode, body: data}, nil
}

// errorBody is the failure shape shared by both endpoints.
type errorBody struct {
	Error     string `json:"error"`
	Details   string `json:"details"`
	ErrorType string `json:"errorType"`
}

func backendError(op string, status int, body []byte) *Error {
	var eb errorBody
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &eb); err != nil {
			eb.Details = truncate(string(body), 2048)
		}
	}
	out := &Error{
		Op:         op,
		Kind:       KindBackend,
		Type:       eb.ErrorType,
		Message:    eb.Error,
		Details:    eb.Details,
		StatusCode: status,
	}
	if out.Type == "" {
		out.Type = TypeBackend
	}
	if out.Message == "" {
		out.Message = fmt.Sprintf("backend returned %d %s", status, http.StatusText(status))
	}
	return out
}

func decodeError(op string, status int, err error, body []byte) *Error {
	return &Error{
		Op:      op,
		Kind:    KindDecode,
		Type:    TypeDecode,
		Message: "backend returned an unreadable response",
		Details: fmt.Sprintf("status %d: %v: %s", status, err, truncate(string(body), 512)),
		Err:     err,
	}
}

func successful(status int) bool {
	return status >= 200 && status < 300
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// observe closes out the span and metrics for one call.
func (c *Client) observe(span trace.Span, op string, start time.Time, status int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		if be, ok := AsError(err); ok {
			outcome = string(be.Kind)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	span.SetAttributes(attribute.String("backend.outcome", outcome))
	metrics.ObserveBackendCall(op, outcome, time.Since(start))
}
