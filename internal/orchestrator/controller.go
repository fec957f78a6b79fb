// Package orchestrator drives discovery and selection-driven crawls against
// the backend and reconciles their outcomes into the session store.
//
// Every state change goes through session.Store, so concurrent callers never
// observe partial writes. Each terminal outcome is reported through a
// notify.Emitter.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/backend"
	"github.com/JakeFAU/docs-discovery-console/internal/model"
	"github.com/JakeFAU/docs-discovery-console/internal/notify"
	"github.com/JakeFAU/docs-discovery-console/internal/session"
	"github.com/JakeFAU/docs-discovery-console/internal/stats"
	"github.com/JakeFAU/docs-discovery-console/internal/storage"
)

var (
	// ErrInvalidURL is returned when the seed URL fails validation. No state
	// is touched and no request is sent.
	ErrInvalidURL = errors.New("invalid seed url")
	// ErrNothingSelected is returned when a crawl is requested with an empty
	// selection.
	ErrNothingSelected = errors.New("no pages selected")
)

const (
	defaultDocumentPrefix = "documents"
	defaultPersistTimeout = 30 * time.Second
)

// Backend performs the discovery and crawl calls.
type Backend interface {
	Discover(ctx context.Context, seedURL string, depth int) (backend.DiscoverResult, error)
	Crawl(ctx context.Context, pages []model.DiscoveredPage) (backend.CrawlResult, error)
}

// IDGenerator mints run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Config tunes a Controller.
type Config struct {
	// DocumentPrefix is prepended to persisted document keys.
	DocumentPrefix string
	// PersistTimeout bounds each document save.
	PersistTimeout time.Duration
	Logger         *zap.Logger
}

// Controller coordinates one session.
type Controller struct {
	store     *session.Store
	backend   Backend
	documents storage.Store
	notifier  notify.Emitter
	ids       IDGenerator
	cfg       Config
	logger    *zap.Logger
	// fallbackRunID keys documents for crawls issued before any discovery.
	fallbackRunID string

	// persistMu orders saves so a slower save never overwrites a newer one.
	persistMu sync.Mutex

	mu           sync.Mutex
	savedRun     string
	savedBatches int
}

// New wires a Controller. documents and notifier may be nil, in which case
// persistence is skipped and notifications are discarded.
func New(store *session.Store, client Backend, documents storage.Store, notifier notify.Emitter, ids IDGenerator, cfg Config) (*Controller, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if client == nil {
		return nil, errors.New("backend is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if cfg.DocumentPrefix == "" {
		cfg.DocumentPrefix = defaultDocumentPrefix
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback, err := ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	return &Controller{
		store:         store,
		backend:       client,
		documents:     documents,
		notifier:      notifier,
		ids:           ids,
		cfg:           cfg,
		logger:        logger,
		fallbackRunID: fallback,
	}, nil
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot(ctx context.Context) (session.Snapshot, error) {
	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("read session: %w", err)
	}
	return snap, nil
}

// Stats returns the run summary for the current session state.
func (c *Controller) Stats(ctx context.Context) (stats.Stats, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return stats.Stats{}, err
	}
	return stats.FromSnapshot(snap), nil
}

// Document returns the aggregated document for the current run. The persisted
// copy is read when it is up to date; otherwise, including when no
// persistence backend is configured or the last save failed, the in-memory
// aggregate is returned.
func (c *Controller) Document(ctx context.Context) (string, string, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return "", "", err
	}
	key, err := c.documentKey(snap)
	if err != nil {
		return "", "", err
	}
	if c.documents == nil || !c.savedThrough(snap) {
		if snap.Batches == 0 {
			return "", key, storage.ErrNotFound
		}
		return snap.Document, key, nil
	}
	content, err := c.documents.Load(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) && snap.Batches > 0 {
			return snap.Document, key, nil
		}
		return "", key, fmt.Errorf("load document %s: %w", key, err)
	}
	return content, key, nil
}

// savedThrough reports whether every batch in snap has been written to the
// document store. A run with no batches counts as saved.
func (c *Controller) savedThrough(snap session.Snapshot) bool {
	if snap.Batches == 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.savedRun == snap.RunID && c.savedBatches >= snap.Batches
}

func (c *Controller) markSaved(runID string, batches int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.savedRun, c.savedBatches = runID, batches
}

func (c *Controller) documentKey(snap session.Snapshot) (string, error) {
	runID := snap.RunID
	if runID == "" {
		runID = c.fallbackRunID
	}
	key, err := storage.DocumentKey(c.cfg.DocumentPrefix, runID)
	if err != nil {
		return "", fmt.Errorf("document key: %w", err)
	}
	return key, nil
}

func (c *Controller) emit(kind notify.Kind, sev notify.Severity, runID, title, description string) {
	c.notifier.Emit(notify.New(kind, sev, title, description).WithRun(runID))
}

// fail emits an error notification for err and returns it.
func (c *Controller) fail(kind notify.Kind, runID, title string, err error) error {
	c.emit(kind, notify.SeverityError, runID, title, describe(err))
	return err
}

// describe renders err for a notification body, preferring the backend's own
// message and type tag.
func describe(err error) string {
	if be, ok := backend.AsError(err); ok {
		if be.Type == "" {
			return be.Message
		}
		return fmt.Sprintf("%s (%s)", be.Message, be.Type)
	}
	return err.Error()
}
