package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/docs-discovery-console/internal/notify"
)

// LogSink writes every notification as a structured log line, at a level
// matching its severity.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each notification in the batch.
func (s *LogSink) Consume(_ context.Context, batch []notify.Notification) error {
	for _, n := range batch {
		s.logger.Log(levelFor(n.Severity), "notification",
			zap.String("id", n.ID),
			zap.String("run_id", n.RunID),
			zap.String("kind", string(n.Kind)),
			zap.String("severity", string(n.Severity)),
			zap.String("title", n.Title),
			zap.String("description", n.Description),
			zap.Time("ts", n.TS),
		)
	}
	return nil
}

// Close implements notify.Sink.
func (s *LogSink) Close(context.Context) error {
	return s.logger.Sync()
}

func levelFor(sev notify.Severity) zapcore.Level {
	switch sev {
	case notify.SeverityError:
		return zapcore.ErrorLevel
	case notify.SeverityWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
