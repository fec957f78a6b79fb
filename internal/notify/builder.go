package notify

import (
	"time"

	"github.com/google/uuid"
)

// New builds a Notification stamped with a fresh ID and the current UTC time.
func New(kind Kind, severity Severity, title, description string) Notification {
	return Notification{
		ID:          uuid.NewString(),
		TS:          time.Now().UTC(),
		Title:       title,
		Description: description,
		Severity:    severity,
		Kind:        kind,
	}
}

// WithRun scopes n to a discovery run.
func (n Notification) WithRun(runID string) Notification {
	n.RunID = runID
	return n
}
