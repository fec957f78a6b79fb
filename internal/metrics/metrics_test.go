package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveDiscoveryAndCrawl(t *testing.T) {
	Init()
	Init()

	beforeRuns := testutil.ToFloat64(discoveryRunsTotal.WithLabelValues("success"))
	beforePages := testutil.ToFloat64(discoveredPagesTotal)
	ObserveDiscovery("success", 3)
	if got := testutil.ToFloat64(discoveryRunsTotal.WithLabelValues("success")) - beforeRuns; got != 1 {
		t.Errorf("expected one discovery run, got %f", got)
	}
	if got := testutil.ToFloat64(discoveredPagesTotal) - beforePages; got != 3 {
		t.Errorf("expected 3 discovered pages, got %f", got)
	}

	ObserveDiscovery("success", 1)
	ObserveDiscovery("empty", 0)
	if got := testutil.CollectAndCount(discoveredPagesTotal); got != 1 {
		t.Errorf("expected a single unlabeled page series, got %d", got)
	}

	beforeBytes := testutil.ToFloat64(markdownBytesTotal)
	ObserveCrawlBatch("success", "crawled", 2, 1200)
	if got := testutil.ToFloat64(markdownBytesTotal) - beforeBytes; got != 1200 {
		t.Errorf("expected 1200 markdown bytes, got %f", got)
	}

	ObserveBackendCall("crawl", "success", 250*time.Millisecond)
	if val := testutil.CollectAndCount(backendRequestDuration); val <= 0 {
		t.Errorf("expected backend latency to be observed, got %d", val)
	}

	before := testutil.ToFloat64(crawlsInFlight)
	AddInFlight(2)
	AddInFlight(-2)
	if got := testutil.ToFloat64(crawlsInFlight); got != before {
		t.Errorf("expected in-flight gauge to return to %f, got %f", before, got)
	}
}
