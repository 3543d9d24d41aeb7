package notify

import (
	"context"
	"log/slog"
	"sort"

	"github.com/williambergmann/timesheet/timesheet"
)

// LogSink writes every event to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(ctx context.Context, e timesheet.Event) error {
	payload := e.Payload()
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, 2*len(keys)+2)
	for _, k := range keys {
		attrs = append(attrs, k, payload[k])
	}
	attrs = append(attrs, "message", Message(e))
	s.logger.InfoContext(ctx, "notification", attrs...)
	return nil
}
