package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/backend"
	"github.com/JakeFAU/docs-discovery-console/internal/metrics"
	"github.com/JakeFAU/docs-discovery-console/internal/model"
	"github.com/JakeFAU/docs-discovery-console/internal/notify"
	"github.com/JakeFAU/docs-discovery-console/internal/session"
	"github.com/JakeFAU/docs-discovery-console/internal/stats"
)

// CrawlOutcome describes a reconciled crawl batch.
type CrawlOutcome struct {
	Selection []string `json:"selection"`
	// Marked counts the pages and links whose status the batch changed.
	Marked        int           `json:"marked"`
	MarkdownBytes int           `json:"markdownBytes"`
	Links         backend.Links `json:"links"`
	DocumentKey   string        `json:"documentKey,omitempty"`
	// PersistErr is set when the crawl succeeded but saving the document did
	// not. Crawl statuses are kept.
	PersistErr error            `json:"-"`
	Snapshot   session.Snapshot `json:"session"`
	Stats      stats.Stats      `json:"stats"`
}

// Persisted reports whether the aggregated document was saved.
func (o CrawlOutcome) Persisted() bool {
	return o.DocumentKey != "" && o.PersistErr == nil
}

// CrawlSelected crawls the pages and links named by urls as one batch.
//
// The selection is claimed, marked pending, sent to the backend in a single
// call and then reconciled: every selected item becomes crawled on success or
// error on failure. The claim is released on every path. Reconciliation runs
// even if ctx is cancelled after the backend call starts.
func (c *Controller) CrawlSelected(ctx context.Context, urls []string) (CrawlOutcome, error) {
	sel := model.NewSelection(urls...)
	if sel.Len() == 0 {
		c.emit(notify.KindSelection, notify.SeverityWarning, "", "No Pages Selected",
			"Select at least one page to crawl.")
		return CrawlOutcome{}, ErrNothingSelected
	}

	if _, err := c.store.Claim(ctx, sel); err != nil {
		if errors.Is(err, session.ErrSelectionInFlight) || errors.Is(err, session.ErrDiscoveryInFlight) {
			c.emit(notify.KindSelection, notify.SeverityWarning, "", "Crawl Already In Progress", err.Error())
			return CrawlOutcome{}, fmt.Errorf("claim selection: %w", err)
		}
		return CrawlOutcome{}, c.fail(notify.KindCrawl, "", "Crawl Failed", fmt.Errorf("claim selection: %w", err))
	}
	metrics.AddInFlight(sel.Len())
	rctx := context.WithoutCancel(ctx)
	defer func() {
		if _, err := c.store.Release(rctx, sel); err != nil {
			c.logger.Warn("release selection", zap.Error(err))
		}
		metrics.AddInFlight(-sel.Len())
	}()

	snap, _, err := c.store.MarkSelected(ctx, sel, model.StatusPending)
	if err != nil {
		return CrawlOutcome{}, c.fail(notify.KindCrawl, "", "Crawl Failed", fmt.Errorf("mark pending: %w", err))
	}
	logger := c.logger.With(zap.String("run_id", snap.RunID), zap.Int("selected", sel.Len()))
	pages := model.FilterByURLs(snap.Pages, sel)

	res, err := c.backend.Crawl(ctx, pages)
	if err != nil {
		return c.reconcileFailure(rctx, logger, sel, err)
	}
	return c.reconcileSuccess(rctx, logger, sel, res)
}

func (c *Controller) reconcileFailure(ctx context.Context, logger *zap.Logger, sel model.Selection, cause error) (CrawlOutcome, error) {
	logger.Warn("crawl failed", zap.Error(cause))
	snap, marked, err := c.store.MarkSelected(ctx, sel, model.StatusError)
	if err != nil {
		return CrawlOutcome{}, c.fail(notify.KindCrawl, "", "Crawl Failed",
			errors.Join(fmt.Errorf("crawl selection: %w", cause), fmt.Errorf("mark error: %w", err)))
	}
	if marked == 0 {
		// nothing in the model carries the failure, so count it directly
		if counted, ferr := c.store.RecordFailure(ctx); ferr != nil {
			logger.Warn("record crawl failure", zap.Error(ferr))
		} else {
			snap = counted
		}
	}
	metrics.ObserveCrawlBatch("failure", string(model.StatusError), marked, 0)
	c.emit(notify.KindCrawl, notify.SeverityError, snap.RunID, "Crawl Failed", describe(cause))
	return CrawlOutcome{
		Selection: sel.Slice(),
		Marked:    marked,
		Snapshot:  snap,
		Stats:     stats.FromSnapshot(snap),
	}, fmt.Errorf("crawl selection: %w", cause)
}

func (c *Controller) reconcileSuccess(ctx context.Context, logger *zap.Logger, sel model.Selection, res backend.CrawlResult) (CrawlOutcome, error) {
	snap, err := c.store.RecordBatch(ctx, session.Batch{
		Selection: sel,
		Markdown:  res.Markdown,
		Internal:  res.Links.Internal,
		External:  res.Links.External,
	})
	if err != nil {
		return CrawlOutcome{}, c.fail(notify.KindCrawl, "", "Crawl Failed", fmt.Errorf("record batch: %w", err))
	}

	runID := snap.RunID
	out := CrawlOutcome{
		Selection:     sel.Slice(),
		MarkdownBytes: len(res.Markdown),
		Links:         res.Links,
	}
	out.DocumentKey, out.PersistErr = c.persist(ctx)
	if out.PersistErr != nil {
		logger.Error("persist document", zap.String("key", out.DocumentKey), zap.Error(out.PersistErr))
		if _, err := c.store.RecordFailure(ctx); err != nil {
			logger.Warn("record persistence failure", zap.Error(err))
		}
		c.emit(notify.KindPersistence, notify.SeverityError, runID, "Save Failed",
			fmt.Sprintf("The crawl succeeded but the document could not be saved: %v", out.PersistErr))
	}

	snap, out.Marked, err = c.store.MarkSelected(ctx, sel, model.StatusCrawled)
	if err != nil {
		return CrawlOutcome{}, c.fail(notify.KindCrawl, runID, "Crawl Failed", fmt.Errorf("mark crawled: %w", err))
	}
	out.Snapshot = snap
	out.Stats = stats.FromSnapshot(snap)

	metrics.ObserveCrawlBatch("success", string(model.StatusCrawled), out.Marked, out.MarkdownBytes)
	logger.Info("crawl complete",
		zap.Int("marked", out.Marked),
		zap.Int("markdown_bytes", out.MarkdownBytes),
		zap.Bool("persisted", out.Persisted()),
	)
	c.emit(notify.KindCrawl, notify.SeveritySuccess, snap.RunID, "Crawl Complete",
		fmt.Sprintf("Crawled %d pages and extracted %s. %d pages crawled so far.",
			sel.Len(), stats.FormatBytes(int64(out.MarkdownBytes)), out.Stats.PagesCrawled))
	return out, nil
}

// persist saves the latest aggregated document for the current run. Saves are
// serialized and each one re-reads the session, so the stored copy only ever
// moves forward even when disjoint crawls finish out of order.
func (c *Controller) persist(ctx context.Context) (string, error) {
	if c.documents == nil {
		return "", nil
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.PersistTimeout)
	defer cancel()
	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		metrics.ObservePersistence("failure")
		return "", fmt.Errorf("read session: %w", err)
	}
	key, err := c.documentKey(snap)
	if err != nil {
		metrics.ObservePersistence("failure")
		return "", err
	}
	if c.savedThrough(snap) {
		return key, nil
	}
	if err := c.documents.Save(ctx, key, snap.Document); err != nil {
		metrics.ObservePersistence("failure")
		return key, fmt.Errorf("save %s: %w", key, err)
	}
	c.markSaved(snap.RunID, snap.Batches)
	metrics.ObservePersistence("success")
	return key, nil
}
