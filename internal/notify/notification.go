package notify

import (
	"errors"
	"fmt"
	"time"
)

// Severity grades a notification for presentation.
type Severity string

// Supported severities.
const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Kind names the boundary that produced a notification.
type Kind string

// Notification kinds.
const (
	KindValidation  Kind = "validation"
	KindDiscovery   Kind = "discovery"
	KindSelection   Kind = "selection"
	KindCrawl       Kind = "crawl"
	KindPersistence Kind = "persistence"
)

// Notification is one fire-and-forget message for the user.
type Notification struct {
	// ID uniquely identifies the notification.
	ID string `json:"id"`
	// RunID scopes the notification to a discovery run when one exists.
	RunID string `json:"runId,omitempty"`
	// TS is the UTC time the notification was emitted.
	TS time.Time `json:"ts"`
	// Title is the short headline.
	Title string `json:"title"`
	// Description carries detail such as the backend error text.
	Description string `json:"description,omitempty"`
	// Severity grades the notification.
	Severity Severity `json:"severity"`
	// Kind names the producing boundary.
	Kind Kind `json:"kind"`
}

// Validate performs coarse validation on Notification payloads.
func (n Notification) Validate() error {
	if n.Title == "" {
		return errors.New("title is required")
	}
	if n.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch n.Severity {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
	default:
		return fmt.Errorf("unknown severity %q", n.Severity)
	}
	switch n.Kind {
	case KindValidation, KindDiscovery, KindSelection, KindCrawl, KindPersistence:
	default:
		return fmt.Errorf("unknown kind %q", n.Kind)
	}
	return nil
}
