package sinks

import (
	"context"
	"sync"

	"github.com/JakeFAU/docs-discovery-console/internal/notify"
)

const defaultRecorderCapacity = 100

// Recorder keeps the most recent notifications in a ring buffer so the API
// can serve them to polling clients.
type Recorder struct {
	mu    sync.RWMutex
	buf   []notify.Notification
	next  int
	count int
}

// NewRecorder returns a Recorder holding at most capacity notifications.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = defaultRecorderCapacity
	}
	return &Recorder{buf: make([]notify.Notification, capacity)}
}

// Consume appends the batch, overwriting the oldest entries when full.
func (r *Recorder) Consume(_ context.Context, batch []notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range batch {
		r.buf[r.next] = n
		r.next = (r.next + 1) % len(r.buf)
		if r.count < len(r.buf) {
			r.count++
		}
	}
	return nil
}

// Recent returns up to limit notifications, newest first. A non-positive
// limit returns everything retained.
func (r *Recorder) Recent(limit int) []notify.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > r.count {
		limit = r.count
	}
	out := make([]notify.Notification, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Close implements notify.Sink; retained notifications remain readable.
func (r *Recorder) Close(context.Context) error {
	return nil
}
