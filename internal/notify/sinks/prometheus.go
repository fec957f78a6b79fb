package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/docs-discovery-console/internal/notify"
)

// PrometheusSink counts notifications by kind and severity.
type PrometheusSink struct {
	total *prometheus.CounterVec
}

// NewPrometheusSink registers the collector against reg, or the default
// registerer when reg is nil. A collector already registered under the same
// name is reused.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docs_notifications_total",
			Help: "Notifications emitted, partitioned by kind and severity.",
		}, []string{"kind", "severity"}),
	}
	if err := reg.Register(s.total); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register notification collector: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("register notification collector: %w", err)
		}
		s.total = existing
	}
	return s, nil
}

// Consume increments the counters for the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []notify.Notification) error {
	for _, n := range batch {
		s.total.WithLabelValues(string(n.Kind), string(n.Severity)).Inc()
	}
	return nil
}

// Close implements notify.Sink; collectors stay registered.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
