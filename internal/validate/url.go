// Package validate holds input checks that run before any network call.
package validate

import (
	"net/url"
	"strings"
)

// URL reports whether candidate is an absolute http or https URL with a host.
// Surrounding whitespace is ignored.
func URL(candidate string) bool {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return false
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}
	if u.Opaque != "" || u.Hostname() == "" {
		return false
	}
	return !strings.ContainsAny(u.Hostname(), " \t")
}
