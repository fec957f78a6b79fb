package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/backend"
	"github.com/JakeFAU/docs-discovery-console/internal/config"
	"github.com/JakeFAU/docs-discovery-console/internal/model"
	"github.com/JakeFAU/docs-discovery-console/internal/notify"
	"github.com/JakeFAU/docs-discovery-console/internal/orchestrator"
	"github.com/JakeFAU/docs-discovery-console/internal/session"
	"github.com/JakeFAU/docs-discovery-console/internal/stats"
	"github.com/JakeFAU/docs-discovery-console/internal/storage"
)

type fakeController struct {
	mu          sync.Mutex
	snap        session.Snapshot
	snapErr     error
	discoverErr error
	crawlOut    orchestrator.CrawlOutcome
	crawlErr    error
	doc         string
	docErr      error
	seeds       []string
	depths      []int
	selections  [][]string
}

func (f *fakeController) Discover(_ context.Context, seed string, depth int) (orchestrator.DiscoverOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeds = append(f.seeds, seed)
	f.depths = append(f.depths, depth)
	if f.discoverErr != nil {
		return orchestrator.DiscoverOutcome{}, f.discoverErr
	}
	return orchestrator.DiscoverOutcome{RunID: "run-2", Depth: backend.ClampDepth(depth), Snapshot: f.snap}, nil
}

func (f *fakeController) CrawlSelected(_ context.Context, urls []string) (orchestrator.CrawlOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selections = append(f.selections, urls)
	return f.crawlOut, f.crawlErr
}

func (f *fakeController) Snapshot(context.Context) (session.Snapshot, error) {
	return f.snap, f.snapErr
}

func (f *fakeController) Stats(context.Context) (stats.Stats, error) {
	if f.snapErr != nil {
		return stats.Stats{}, f.snapErr
	}
	return stats.FromSnapshot(f.snap), nil
}

func (f *fakeController) Document(context.Context) (string, string, error) {
	return f.doc, "documents/run-2.md", f.docErr
}

type fakeBackend struct {
	discoverRes backend.DiscoverResult
	crawlRes    backend.CrawlResult
	err         error
	gotDepth    int
	gotPages    []model.DiscoveredPage
}

func (b *fakeBackend) Discover(_ context.Context, _ string, depth int) (backend.DiscoverResult, error) {
	b.gotDepth = depth
	return b.discoverRes, b.err
}

func (b *fakeBackend) Crawl(_ context.Context, pages []model.DiscoveredPage) (backend.CrawlResult, error) {
	b.gotPages = pages
	return b.crawlRes, b.err
}

type fakeFeed []notify.Notification

func (f fakeFeed) Recent(limit int) []notify.Notification {
	if limit < len(f) {
		return f[:limit]
	}
	return f
}

func newTestServer(ctl Controller, b orchestrator.Backend, feed Feed, mutate func(*config.Config)) *Server {
	cfg := config.Config{}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewServer(ctl, b, feed, cfg, nil)
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	t.Parallel()

	ctl := &fakeController{}
	srv := newTestServer(ctl, &fakeBackend{}, nil, nil)

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, srv, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	down := newTestServer(&fakeController{snapErr: session.ErrClosed}, &fakeBackend{}, nil, nil)
	rec = do(t, down, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeController{}, &fakeBackend{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestAPIKeyRequiredWhenEnabled(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeController{}, &fakeBackend{}, nil, func(c *config.Config) {
		c.Auth.Enabled = true
		c.Auth.APIKey = "secret"
	})

	rec := do(t, srv, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/session?api_key=secret", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// probes stay open
	rec = do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func TestPassDiscoverParsesDepth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		body string
		want int
	}{
		{`{"url":"https://docs.example.com","depth":4}`, 4},
		{`{"url":"https://docs.example.com","depth":"2"}`, 2},
		{`{"url":"https://docs.example.com","depth":"deep"}`, backend.DefaultDepth},
		{`{"url":"https://docs.example.com"}`, backend.DefaultDepth},
		{`{"url":"https://docs.example.com","depth":9}`, 9},
	}
	for _, tt := range tests {
		b := &fakeBackend{discoverRes: backend.DiscoverResult{Message: "ok"}}
		srv := newTestServer(&fakeController{}, b, nil, nil)
		rec := do(t, srv, http.MethodPost, "/api/discover", tt.body)
		require.Equal(t, http.StatusOK, rec.Code, tt.body)
		assert.Equal(t, tt.want, b.gotDepth, tt.body)

		out := decode(t, rec)
		pages, ok := out["pages"].([]any)
		require.True(t, ok, "pages must be an array")
		require.Empty(t, pages)
	}
}

func TestPassDiscoverRejectsBadRequests(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeController{}, &fakeBackend{}, nil, nil)

	rec := do(t, srv, http.MethodPost, "/api/discover", `{"url":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode(t, rec)
	require.Equal(t, "invalid request body", out["error"])
	require.NotNil(t, out["pages"])

	rec = do(t, srv, http.MethodPost, "/api/discover", `{"url":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPassDiscoverMirrorsBackendStatus(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{err: &backend.Error{
		Op:         backend.OpDiscover,
		Kind:       backend.KindBackend,
		Type:       "DISCOVERY_ERROR",
		Message:    "upstream exploded",
		Details:    "Traceback",
		StatusCode: http.StatusBadGateway,
	}}
	srv := newTestServer(&fakeController{}, b, nil, nil)

	rec := do(t, srv, http.MethodPost, "/api/discover", `{"url":"https://docs.example.com"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	out := decode(t, rec)
	require.Equal(t, "upstream exploded", out["error"])
	require.Equal(t, "DISCOVERY_ERROR", out["errorType"])
	require.Equal(t, "Traceback", out["details"])
	require.Equal(t, []any{}, out["pages"])
}

func TestPassCrawlTransportFailureIs500(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{err: &backend.Error{
		Op:      backend.OpCrawl,
		Kind:    backend.KindTransport,
		Type:    backend.TypeConnection,
		Message: "could not reach the discovery backend",
	}}
	srv := newTestServer(&fakeController{}, b, nil, nil)

	rec := do(t, srv, http.MethodPost, "/api/crawl", `{"pages":[{"url":"https://a/","status":"pending"}]}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, backend.TypeConnection, decode(t, rec)["errorType"])
	require.Len(t, b.gotPages, 1)
	require.Equal(t, model.StatusPending, b.gotPages[0].Status)
}

func TestPassCrawlReturnsResult(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{crawlRes: backend.CrawlResult{
		Markdown: "# A",
		Links:    backend.Links{Internal: []model.LinkRef{}, External: []model.LinkRef{}},
	}}
	srv := newTestServer(&fakeController{}, b, nil, nil)

	rec := do(t, srv, http.MethodPost, "/api/crawl", `{"pages":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "# A", decode(t, rec)["markdown"])
}

func TestGetSession(t *testing.T) {
	t.Parallel()

	ctl := &fakeController{snap: session.Snapshot{
		RunID: "run-2",
		Pages: []model.DiscoveredPage{
			{URL: "https://a/", Status: model.StatusCrawled},
			{URL: "https://b/", Status: model.StatusError},
		},
		ExtractedBytes: 2048,
	}}
	srv := newTestServer(ctl, &fakeBackend{}, nil, nil)

	rec := do(t, srv, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	st, ok := out["stats"].(map[string]any)
	require.True(t, ok)
	require.EqualValues(t, 2, st["subdomainsParsed"])
	require.EqualValues(t, 1, st["pagesCrawled"])
	require.Equal(t, "2 KB", st["dataExtracted"])
	require.EqualValues(t, 1, st["errorsEncountered"])
}

func TestSessionDiscoverStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"invalid", fmt.Errorf("%w: %q", orchestrator.ErrInvalidURL, "nope"), http.StatusBadRequest},
		{"busy", fmt.Errorf("begin discovery: %w", session.ErrDiscoveryInFlight), http.StatusConflict},
		{"crawling", fmt.Errorf("begin discovery: %w", session.ErrCrawlInFlight), http.StatusConflict},
		{"backend", &backend.Error{Kind: backend.KindBackend, Type: "DISCOVERY_ERROR", Message: "x", StatusCode: 500}, http.StatusBadGateway},
		{"timeout", &backend.Error{Kind: backend.KindTimeout, Type: backend.TypeTimeout, Message: "slow"}, http.StatusGatewayTimeout},
		{"closed", session.ErrClosed, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctl := &fakeController{discoverErr: tt.err}
			srv := newTestServer(ctl, &fakeBackend{}, nil, nil)
			rec := do(t, srv, http.MethodPost, "/api/session/discover", `{"url":"https://docs.example.com","depth":"7"}`)
			require.Equal(t, tt.want, rec.Code)
			require.Equal(t, []int{7}, ctl.depths)
		})
	}
}

func TestSessionCrawl(t *testing.T) {
	t.Parallel()

	ctl := &fakeController{crawlOut: orchestrator.CrawlOutcome{
		Selection:   []string{"https://a/"},
		Marked:      1,
		DocumentKey: "documents/run-2.md",
		PersistErr:  storage.ErrNotFound,
	}}
	srv := newTestServer(ctl, &fakeBackend{}, nil, nil)

	rec := do(t, srv, http.MethodPost, "/api/session/crawl", `{"urls":["https://a/"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	require.EqualValues(t, 1, out["marked"])
	require.Equal(t, storage.ErrNotFound.Error(), out["persistError"])
	require.Equal(t, [][]string{{"https://a/"}}, ctl.selections)
}

func TestSessionCrawlFailures(t *testing.T) {
	t.Parallel()

	empty := newTestServer(&fakeController{crawlErr: orchestrator.ErrNothingSelected}, &fakeBackend{}, nil, nil)
	rec := do(t, empty, http.MethodPost, "/api/session/crawl", `{"urls":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	busy := newTestServer(&fakeController{
		crawlErr: fmt.Errorf("claim selection: %w", session.ErrSelectionInFlight),
	}, &fakeBackend{}, nil, nil)
	rec = do(t, busy, http.MethodPost, "/api/session/crawl", `{"urls":["https://a/"]}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	failed := newTestServer(&fakeController{
		crawlOut: orchestrator.CrawlOutcome{Selection: []string{"https://a/"}, Marked: 1},
		crawlErr: fmt.Errorf("crawl selection: %w", &backend.Error{
			Kind: backend.KindBackend, Type: "CRAWL_ERROR", Message: "crawler crashed", StatusCode: 500,
		}),
	}, &fakeBackend{}, nil, nil)
	rec = do(t, failed, http.MethodPost, "/api/session/crawl", `{"urls":["https://a/"]}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	out := decode(t, rec)
	require.Equal(t, "crawler crashed", out["error"])
	require.Equal(t, "CRAWL_ERROR", out["errorType"])
	outcome, ok := out["outcome"].(map[string]any)
	require.True(t, ok)
	require.EqualValues(t, 1, outcome["marked"])

	rec = do(t, failed, http.MethodPost, "/api/session/crawl", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDocument(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeController{doc: "# A\n\n# B"}, &fakeBackend{}, nil, nil)
	rec := do(t, srv, http.MethodGet, "/api/session/document", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/markdown"))
	require.Equal(t, "documents/run-2.md", rec.Header().Get("X-Document-Key"))
	require.Equal(t, "# A\n\n# B", rec.Body.String())
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/session/document", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotModified, rec.Code)
	require.Empty(t, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/session/document?format=html", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	require.Contains(t, rec.Body.String(), "<h1>A</h1>")

	rec = do(t, srv, http.MethodGet, "/api/session/document?format=pdf", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/session/document/outline", "")
	require.Equal(t, http.StatusOK, rec.Code)
	headings, ok := decode(t, rec)["headings"].([]any)
	require.True(t, ok)
	require.Len(t, headings, 2)

	missing := newTestServer(&fakeController{docErr: fmt.Errorf("load: %w", storage.ErrNotFound)}, &fakeBackend{}, nil, nil)
	rec = do(t, missing, http.MethodGet, "/api/session/document", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListNotifications(t *testing.T) {
	t.Parallel()

	feed := fakeFeed{
		notify.New(notify.KindCrawl, notify.SeveritySuccess, "Crawl Complete", "done"),
		notify.New(notify.KindDiscovery, notify.SeveritySuccess, "Discovery Complete", "found"),
	}
	srv := newTestServer(&fakeController{}, &fakeBackend{}, feed, nil)

	rec := do(t, srv, http.MethodGet, "/api/notifications?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items, ok := decode(t, rec)["notifications"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)

	rec = do(t, srv, http.MethodGet, "/api/notifications?limit=zero", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	none := newTestServer(&fakeController{}, &fakeBackend{}, nil, nil)
	rec = do(t, none, http.MethodGet, "/api/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items, ok = decode(t, rec)["notifications"].([]any)
	require.True(t, ok)
	require.Empty(t, items)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeController{}, &fakeBackend{}, nil, nil)
	_ = do(t, srv, http.MethodGet, "/healthz", "")
	rec := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}
