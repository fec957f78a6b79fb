package notify

import "context"

// Sink consumes batches of notifications. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Notification) error
	Close(ctx context.Context) error
}

// Emitter publishes individual notifications; Hub satisfies this interface so
// the controller stays agnostic about how they are delivered.
type Emitter interface {
	Emit(n Notification)
}

// Discard is an Emitter that drops everything.
type Discard struct{}

// Emit implements Emitter.
func (Discard) Emit(Notification) {}
