// Package stats derives the discovery run summary from the session state. It
// holds no state of its own.
package stats

import (
	"math"
	"strconv"

	"github.com/JakeFAU/docs-discovery-console/internal/model"
	"github.com/JakeFAU/docs-discovery-console/internal/session"
)

// Stats summarizes one discovery run.
type Stats struct {
	SubdomainsParsed   int    `json:"subdomainsParsed"`
	PagesCrawled       int    `json:"pagesCrawled"`
	DataExtracted      string `json:"dataExtracted"`
	DataExtractedBytes int64  `json:"dataExtractedBytes"`
	ErrorsEncountered  int    `json:"errorsEncountered"`
}

// Compute builds Stats from the page set, the number of markdown bytes
// accumulated so far and the number of failures not attributable to a page or
// link.
func Compute(pages []model.DiscoveredPage, extractedBytes int64, failures int) Stats {
	crawled, _ := model.CountByStatus(pages, model.StatusCrawled)
	errPages, errLinks := model.CountByStatus(pages, model.StatusError)
	if extractedBytes < 0 {
		extractedBytes = 0
	}
	if failures < 0 {
		failures = 0
	}
	return Stats{
		SubdomainsParsed:   len(pages),
		PagesCrawled:       crawled,
		DataExtracted:      FormatBytes(extractedBytes),
		DataExtractedBytes: extractedBytes,
		ErrorsEncountered:  errPages + errLinks + failures,
	}
}

// FromSnapshot is Compute over a session snapshot.
func FromSnapshot(snap session.Snapshot) Stats {
	return Compute(snap.Pages, snap.ExtractedBytes, snap.Failures)
}

var units = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatBytes renders n with base-1024 units and at most two decimals, e.g.
// "0 Bytes", "5 Bytes", "1.17 KB".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	exp := 0
	for div := int64(1024); n >= div && exp < len(units)-1; div *= 1024 {
		exp++
	}
	value := float64(n) / math.Pow(1024, float64(exp))
	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + units[exp]
}
