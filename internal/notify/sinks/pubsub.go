package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"

	"github.com/JakeFAU/docs-discovery-console/internal/notify"
)

// Topic is the subset of *pubsub.Topic the sink needs.
type Topic interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
	Stop()
}

// PubSubSink publishes each notification as a JSON message so other services
// can follow discovery and crawl outcomes.
type PubSubSink struct {
	topic Topic
}

// NewPubSubSink wraps topic.
func NewPubSubSink(topic Topic) *PubSubSink {
	return &PubSubSink{topic: topic}
}

// Consume publishes the batch and waits for every result. Failures are joined
// so one bad message does not hide the rest.
func (s *PubSubSink) Consume(ctx context.Context, batch []notify.Notification) error {
	if s.topic == nil {
		return errors.New("pubsub topic is not configured")
	}
	results := make([]*pubsub.PublishResult, 0, len(batch))
	for _, n := range batch {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal notification %s: %w", n.ID, err)
		}
		msg := &pubsub.Message{
			Data: data,
			Attributes: map[string]string{
				"kind":     string(n.Kind),
				"severity": string(n.Severity),
			},
		}
		if n.RunID != "" {
			msg.Attributes["run_id"] = n.RunID
		}
		otel.GetTextMapPropagator().Inject(ctx, attributeCarrier(msg.Attributes))
		results = append(results, s.topic.Publish(ctx, msg))
	}
	var errs []error
	for _, res := range results {
		if _, err := res.Get(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("publish notifications: %w", err)
	}
	return nil
}

// Close flushes pending publishes and stops the topic's goroutines.
func (s *PubSubSink) Close(context.Context) error {
	if s.topic != nil {
		s.topic.Stop()
	}
	return nil
}

// attributeCarrier adapts Pub/Sub attributes to propagation.TextMapCarrier.
type attributeCarrier map[string]string

func (c attributeCarrier) Get(key string) string { return c[key] }

func (c attributeCarrier) Set(key, value string) { c[key] = value }

func (c attributeCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
