package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/backend"
	"github.com/JakeFAU/docs-discovery-console/internal/metrics"
	"github.com/JakeFAU/docs-discovery-console/internal/notify"
	"github.com/JakeFAU/docs-discovery-console/internal/session"
	"github.com/JakeFAU/docs-discovery-console/internal/stats"
	"github.com/JakeFAU/docs-discovery-console/internal/validate"
)

// DiscoverOutcome is the result of a successful discovery.
type DiscoverOutcome struct {
	RunID    string           `json:"runId"`
	Depth    int              `json:"depth"`
	Message  string           `json:"message,omitempty"`
	Snapshot session.Snapshot `json:"session"`
	Stats    stats.Stats      `json:"stats"`
}

// Empty reports whether discovery ran and found nothing.
func (o DiscoverOutcome) Empty() bool {
	return len(o.Snapshot.Pages) == 0
}

// Discover validates seedURL, asks the backend for pages up to depth and, on
// success, replaces the session's page set with the result. On failure the
// page set is left untouched.
func (c *Controller) Discover(ctx context.Context, seedURL string, depth int) (DiscoverOutcome, error) {
	seed := strings.TrimSpace(seedURL)
	if !validate.URL(seed) {
		c.emit(notify.KindValidation, notify.SeverityError, "", "Invalid URL",
			"Enter an absolute http or https URL.")
		return DiscoverOutcome{}, fmt.Errorf("%w: %q", ErrInvalidURL, seedURL)
	}

	if _, err := c.store.BeginDiscovery(ctx); err != nil {
		if errors.Is(err, session.ErrDiscoveryInFlight) || errors.Is(err, session.ErrCrawlInFlight) {
			c.emit(notify.KindDiscovery, notify.SeverityWarning, "", "Discovery Unavailable", err.Error())
			return DiscoverOutcome{}, fmt.Errorf("begin discovery: %w", err)
		}
		return DiscoverOutcome{}, c.fail(notify.KindDiscovery, "", "Discovery Failed", fmt.Errorf("begin discovery: %w", err))
	}
	defer func() {
		if _, err := c.store.EndDiscovery(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn("end discovery", zap.Error(err))
		}
	}()

	logger := c.logger.With(zap.String("seed_url", seed), zap.Int("depth", backend.ClampDepth(depth)))
	res, err := c.backend.Discover(ctx, seed, depth)
	if err != nil {
		metrics.ObserveDiscovery("failure", 0)
		logger.Warn("discovery failed", zap.Error(err))
		if _, ferr := c.store.RecordFailure(context.WithoutCancel(ctx)); ferr != nil {
			logger.Warn("record discovery failure", zap.Error(ferr))
		}
		c.emit(notify.KindDiscovery, notify.SeverityError, "", "Discovery Failed", describe(err))
		return DiscoverOutcome{}, fmt.Errorf("discover %s: %w", seed, err)
	}

	runID, err := c.ids.NewID()
	if err != nil {
		return DiscoverOutcome{}, c.fail(notify.KindDiscovery, "", "Discovery Failed", fmt.Errorf("generate run id: %w", err))
	}
	snap, err := c.store.ReplaceAll(context.WithoutCancel(ctx), session.Run{
		ID:      runID,
		SeedURL: seed,
		Depth:   res.Depth,
		Message: res.Message,
		Pages:   res.Pages,
	})
	if err != nil {
		return DiscoverOutcome{}, c.fail(notify.KindDiscovery, runID, "Discovery Failed", fmt.Errorf("install discovery result: %w", err))
	}

	out := DiscoverOutcome{
		RunID:    runID,
		Depth:    res.Depth,
		Message:  res.Message,
		Snapshot: snap,
		Stats:    stats.FromSnapshot(snap),
	}
	logger = logger.With(zap.String("run_id", runID), zap.Int("pages", len(snap.Pages)))
	if out.Empty() {
		metrics.ObserveDiscovery("empty", 0)
		logger.Info("discovery found no pages")
		msg := res.Message
		if msg == "" {
			msg = "No pages were discovered for " + seed
		}
		c.emit(notify.KindDiscovery, notify.SeverityWarning, runID, "No Pages Found", msg)
		return out, nil
	}
	metrics.ObserveDiscovery("success", len(snap.Pages))
	logger.Info("discovery complete")
	c.emit(notify.KindDiscovery, notify.SeveritySuccess, runID, "Discovery Complete",
		fmt.Sprintf("Found %d pages at depth %d", len(snap.Pages), res.Depth))
	return out, nil
}
