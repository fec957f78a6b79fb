// Package model defines the discovered page and link types together with the
// copy-on-write helpers that move them through their crawl lifecycle.
package model

import "sort"

// Status represents the lifecycle state of a discovered page or link.
type Status string

// Lifecycle values shared by pages and links.
const (
	StatusNotStarted Status = "not-started"
	StatusPending    Status = "pending"
	StatusCrawled    Status = "crawled"
	StatusError      Status = "error"
)

// Valid reports whether s is one of the known lifecycle values.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusPending, StatusCrawled, StatusError:
		return true
	default:
		return false
	}
}

// LinkRef is a link target discovered on a page.
type LinkRef struct {
	Href   string `json:"href"`
	Status Status `json:"status,omitempty"`
}

// EffectiveStatus returns the link status, treating an unset value as pending.
func (l LinkRef) EffectiveStatus() Status {
	if l.Status == "" {
		return StatusPending
	}
	return l.Status
}

// DiscoveredPage is one entry of a discovery result set. URL is unique within
// the set.
type DiscoveredPage struct {
	URL           string    `json:"url"`
	Title         string    `json:"title,omitempty"`
	Status        Status    `json:"status"`
	InternalLinks []LinkRef `json:"internalLinks,omitempty"`
}

// Clone returns a deep copy of the page.
func (p DiscoveredPage) Clone() DiscoveredPage {
	cp := p
	if len(p.InternalLinks) > 0 {
		cp.InternalLinks = append([]LinkRef(nil), p.InternalLinks...)
	} else {
		cp.InternalLinks = nil
	}
	return cp
}

// Selection is a set of page URLs and link hrefs chosen for one batch.
type Selection map[string]struct{}

// NewSelection builds a Selection, ignoring empty entries.
func NewSelection(urls ...string) Selection {
	sel := make(Selection, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		sel[u] = struct{}{}
	}
	return sel
}

// Has reports whether url is part of the selection.
func (s Selection) Has(url string) bool {
	_, ok := s[url]
	return ok
}

// Len returns the number of distinct entries.
func (s Selection) Len() int {
	return len(s)
}

// Slice returns the entries sorted lexically.
func (s Selection) Slice() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Intersect returns the entries present in both selections.
func (s Selection) Intersect(other Selection) []string {
	var out []string
	for u := range s {
		if other.Has(u) {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

// Clone deep-copies a page slice.
func Clone(pages []DiscoveredPage) []DiscoveredPage {
	if pages == nil {
		return nil
	}
	out := make([]DiscoveredPage, len(pages))
	for i, p := range pages {
		out[i] = p.Clone()
	}
	return out
}

// ReplaceAll builds a fresh result set from a discovery response. Duplicate
// URLs collapse to their first occurrence, pages without a valid status start
// as not-started and links keep an unset status (read as pending).
func ReplaceAll(pages []DiscoveredPage) []DiscoveredPage {
	out := make([]DiscoveredPage, 0, len(pages))
	seen := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		if p.URL == "" {
			continue
		}
		if _, dup := seen[p.URL]; dup {
			continue
		}
		seen[p.URL] = struct{}{}
		cp := p.Clone()
		if !cp.Status.Valid() {
			cp.Status = StatusNotStarted
		}
		for i := range cp.InternalLinks {
			if cp.InternalLinks[i].Status != "" && !cp.InternalLinks[i].Status.Valid() {
				cp.InternalLinks[i].Status = ""
			}
		}
		out = append(out, cp)
	}
	return out
}

// MarkSelected sets status on every page whose URL is selected and, on its
// own, on every link whose href is selected. Everything else is left as-is.
// It returns the updated copy and the number of pages and links touched.
func MarkSelected(pages []DiscoveredPage, sel Selection, status Status) ([]DiscoveredPage, int) {
	out := Clone(pages)
	touched := 0
	for i := range out {
		if sel.Has(out[i].URL) {
			out[i].Status = status
			touched++
		}
		for j := range out[i].InternalLinks {
			if sel.Has(out[i].InternalLinks[j].Href) {
				out[i].InternalLinks[j].Status = status
				touched++
			}
		}
	}
	return out, touched
}

// FilterByURLs returns the selected pages in their original order.
func FilterByURLs(pages []DiscoveredPage, sel Selection) []DiscoveredPage {
	out := make([]DiscoveredPage, 0, len(sel))
	for _, p := range pages {
		if sel.Has(p.URL) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// ApplyLinkResults copies explicit statuses from crawl-result links onto links
// already present in the model. Hrefs in skip and results without a valid
// status are ignored; no links are added.
func ApplyLinkResults(pages []DiscoveredPage, results []LinkRef, skip Selection) []DiscoveredPage {
	updates := make(map[string]Status, len(results))
	for _, l := range results {
		if l.Href == "" || !l.Status.Valid() || skip.Has(l.Href) {
			continue
		}
		updates[l.Href] = l.Status
	}
	out := Clone(pages)
	if len(updates) == 0 {
		return out
	}
	for i := range out {
		for j := range out[i].InternalLinks {
			if st, ok := updates[out[i].InternalLinks[j].Href]; ok {
				out[i].InternalLinks[j].Status = st
			}
		}
	}
	return out
}

// CountByStatus counts pages and links in the given status.
func CountByStatus(pages []DiscoveredPage, status Status) (pageCount, linkCount int) {
	for _, p := range pages {
		if p.Status == status {
			pageCount++
		}
		for _, l := range p.InternalLinks {
			if l.EffectiveStatus() == status {
				linkCount++
			}
		}
	}
	return pageCount, linkCount
}
