package main

import (
	"log/slog"

	"marketchain/core/events"
	"marketchain/core/types"
)

// eventLogger forwards engine events to the structured log. The daemon has no
// downstream indexer, so the log is the event sink.
type eventLogger struct {
	log *slog.Logger
}

func (l eventLogger) Emit(evt events.Event) {
	if evt == nil || l.log == nil {
		return
	}
	attrs := []any{slog.String("event", evt.EventType())}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	l.log.Info("market event", attrs...)
}
