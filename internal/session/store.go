// Package session owns the page/link status model for one controller. A single
// goroutine applies every mutation; callers dispatch actions and receive an
// immutable Snapshot in reply.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/model"
)

var (
	// ErrClosed is returned once the store has shut down.
	ErrClosed = errors.New("session store closed")
	// ErrSelectionInFlight is returned when a crawl selection overlaps one that
	// has not settled yet.
	ErrSelectionInFlight = errors.New("crawl already in progress for selection")
	// ErrDiscoveryInFlight is returned when a discovery is already running.
	ErrDiscoveryInFlight = errors.New("discovery already in progress")
	// ErrCrawlInFlight is returned when a discovery would replace pages that a
	// crawl has not finished reconciling.
	ErrCrawlInFlight = errors.New("crawl in progress")
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Run identifies a discovery result set installed by ReplaceAll.
type Run struct {
	ID      string
	SeedURL string
	Depth   int
	Message string
	Pages   []model.DiscoveredPage
}

// Batch is the outcome of one successful crawl call.
type Batch struct {
	Selection model.Selection
	Markdown  string
	Internal  []model.LinkRef
	External  []model.LinkRef
}

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	RunID          string                 `json:"runId,omitempty"`
	SeedURL        string                 `json:"seedUrl,omitempty"`
	Depth          int                    `json:"depth,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Pages          []model.DiscoveredPage `json:"pages"`
	Document       string                 `json:"-"`
	ExtractedBytes int64                  `json:"extractedBytes"`
	Failures       int                    `json:"failures"`
	Batches        int                    `json:"batches"`
	LastInternal   []model.LinkRef        `json:"lastInternalLinks,omitempty"`
	LastExternal   []model.LinkRef        `json:"lastExternalLinks,omitempty"`
	InFlight       []string               `json:"inFlight,omitempty"`
	Discovering    bool                   `json:"discovering"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// Crawling reports whether any crawl selection is still outstanding.
func (s Snapshot) Crawling() bool {
	return len(s.InFlight) > 0
}

type state struct {
	run            Run
	pages          []model.DiscoveredPage
	document       strings.Builder
	extractedBytes int64
	failures       int
	batches        int
	lastInternal   []model.LinkRef
	lastExternal   []model.LinkRef
	inFlight       model.Selection
	discovering    bool
	updatedAt      time.Time
}

type request struct {
	apply func(*state) error
	reply chan response
}

type response struct {
	snap Snapshot
	err  error
}

// Store is the single writer for the session state.
type Store struct {
	requests chan request
	stopCh   chan struct{}
	doneCh   chan struct{}
	clock    Clock
	logger   *zap.Logger
}

// NewStore starts the store goroutine. Close must be called to stop it.
func NewStore(clock Clock, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		requests: make(chan request),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		clock:    clock,
		logger:   logger,
	}
	go s.run()
	return s
}

func (s *Store) run() {
	defer close(s.doneCh)
	st := &state{inFlight: model.Selection{}}
	for {
		select {
		case req := <-s.requests:
			err := req.apply(st)
			if err == nil {
				st.updatedAt = s.now()
			}
			req.reply <- response{snap: st.snapshot(), err: err}
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

// Close stops the store goroutine. Pending and later calls return ErrClosed.
func (s *Store) Close() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	<-s.doneCh
}

func (s *Store) dispatch(ctx context.Context, apply func(*state) error) (Snapshot, error) {
	reply := make(chan response, 1)
	select {
	case s.requests <- request{apply: apply, reply: reply}:
	case <-s.stopCh:
		return Snapshot{}, ErrClosed
	case <-ctx.Done():
		return Snapshot{}, fmt.Errorf("dispatch session action: %w", ctx.Err())
	}
	resp := <-reply
	return resp.snap, resp.err
}

// Snapshot returns the current state.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	return s.dispatch(ctx, func(*state) error { return nil })
}

// ReplaceAll discards the current result set, the aggregated document and the
// failure counter, and installs run.
func (s *Store) ReplaceAll(ctx context.Context, run Run) (Snapshot, error) {
	return s.dispatch(ctx, func(st *state) error {
		st.run = Run{ID: run.ID, SeedURL: run.SeedURL, Depth: run.Depth, Message: run.Message}
		st.pages = model.ReplaceAll(run.Pages)
		st.document.Reset()
		st.extractedBytes = 0
		st.failures = 0
		st.batches = 0
		st.lastInternal = nil
		st.lastExternal = nil
		s.logger.Debug("session replaced",
			zap.String("run_id", run.ID),
			zap.Int("pages", len(st.pages)),
		)
		return nil
	})
}

// MarkSelected applies status to the selected pages and links. The returned
// count is the number of pages and links touched.
func (s *Store) MarkSelected(ctx context.Context, sel model.Selection, status model.Status) (Snapshot, int, error) {
	touched := 0
	snap, err := s.dispatch(ctx, func(st *state) error {
		if !status.Valid() {
			return fmt.Errorf("invalid status %q", status)
		}
		st.pages, touched = model.MarkSelected(st.pages, sel, status)
		return nil
	})
	return snap, touched, err
}

// FilterByURLs returns the selected pages in model order.
func (s *Store) FilterByURLs(ctx context.Context, sel model.Selection) ([]model.DiscoveredPage, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return model.FilterByURLs(snap.Pages, sel), nil
}

// Claim adds sel to the in-flight set. It fails with ErrSelectionInFlight when
// any entry is already claimed and with ErrDiscoveryInFlight while a discovery
// is running, leaving the set unchanged.
func (s *Store) Claim(ctx context.Context, sel model.Selection) (Snapshot, error) {
	return s.dispatch(ctx, func(st *state) error {
		if st.discovering {
			return ErrDiscoveryInFlight
		}
		if overlap := sel.Intersect(st.inFlight); len(overlap) > 0 {
			return fmt.Errorf("%w: %s", ErrSelectionInFlight, strings.Join(overlap, ", "))
		}
		for u := range sel {
			st.inFlight[u] = struct{}{}
		}
		return nil
	})
}

// Release removes sel from the in-flight set.
func (s *Store) Release(ctx context.Context, sel model.Selection) (Snapshot, error) {
	return s.dispatch(ctx, func(st *state) error {
		for u := range sel {
			delete(st.inFlight, u)
		}
		return nil
	})
}

// BeginDiscovery raises the discovering flag, failing if it is already set or
// any crawl selection is outstanding.
func (s *Store) BeginDiscovery(ctx context.Context) (Snapshot, error) {
	return s.dispatch(ctx, func(st *state) error {
		if st.discovering {
			return ErrDiscoveryInFlight
		}
		if len(st.inFlight) > 0 {
			return ErrCrawlInFlight
		}
		st.discovering = true
		return nil
	})
}

// EndDiscovery clears the discovering flag.
func (s *Store) EndDiscovery(ctx context.Context) (Snapshot, error) {
	return s.dispatch(ctx, func(st *state) error {
		st.discovering = false
		return nil
	})
}

// RecordBatch appends a crawl batch to the aggregated document and applies any
// explicit link statuses it carries outside the batch selection.
func (s *Store) RecordBatch(ctx context.Context, b Batch) (Snapshot, error) {
	return s.dispatch(ctx, func(st *state) error {
		if b.Markdown != "" {
			if st.document.Len() > 0 {
				st.document.WriteString("\n\n")
			}
			st.document.WriteString(b.Markdown)
		}
		st.extractedBytes += int64(len(b.Markdown))
		st.batches++
		st.lastInternal = append([]model.LinkRef(nil), b.Internal...)
		st.lastExternal = append([]model.LinkRef(nil), b.External...)
		st.pages = model.ApplyLinkResults(st.pages, b.Internal, b.Selection)
		return nil
	})
}

// RecordFailure counts one failure not attributable to a page or link.
func (s *Store) RecordFailure(ctx context.Context) (Snapshot, error) {
	return s.dispatch(ctx, func(st *state) error {
		st.failures++
		return nil
	})
}

func (st *state) snapshot() Snapshot {
	var inFlight []string
	if len(st.inFlight) > 0 {
		inFlight = st.inFlight.Slice()
	}
	pages := model.Clone(st.pages)
	if pages == nil {
		pages = []model.DiscoveredPage{}
	}
	return Snapshot{
		RunID:          st.run.ID,
		SeedURL:        st.run.SeedURL,
		Depth:          st.run.Depth,
		Message:        st.run.Message,
		Pages:          pages,
		Document:       st.document.String(),
		ExtractedBytes: st.extractedBytes,
		Failures:       st.failures,
		Batches:        st.batches,
		LastInternal:   append([]model.LinkRef(nil), st.lastInternal...),
		LastExternal:   append([]model.LinkRef(nil), st.lastExternal...),
		InFlight:       inFlight,
		Discovering:    st.discovering,
		UpdatedAt:      st.updatedAt,
	}
}
