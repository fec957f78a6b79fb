package stats

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/docs-discovery-console/internal/model"
	"github.com/JakeFAU/docs-discovery-console/internal/session"
)

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 Bytes"},
		{-4, "0 Bytes"},
		{5, "5 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1200, "1.17 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5 MB"},
		{3 * 1024 * 1024 * 1024, "3 GB"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatBytes(tt.in), "FormatBytes(%d)", tt.in)
	}
}

func TestComputeCountsPagesLinksAndFailures(t *testing.T) {
	t.Parallel()

	pages := []model.DiscoveredPage{
		{URL: "https://a/", Status: model.StatusCrawled, InternalLinks: []model.LinkRef{
			{Href: "https://a/x", Status: model.StatusError},
			{Href: "https://a/y"},
		}},
		{URL: "https://b/", Status: model.StatusError},
		{URL: "https://c/", Status: model.StatusNotStarted},
	}

	got := Compute(pages, 5, 1)

	require.Equal(t, Stats{
		SubdomainsParsed:   3,
		PagesCrawled:       1,
		DataExtracted:      "5 Bytes",
		DataExtractedBytes: 5,
		ErrorsEncountered:  3,
	}, got)
}

func TestFromSnapshotOfResetSessionIsZero(t *testing.T) {
	t.Parallel()

	got := FromSnapshot(session.Snapshot{})
	require.Equal(t, Stats{DataExtracted: "0 Bytes"}, got)
}
