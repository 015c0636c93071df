package runtime

import (
	"context"
	"fitpulse-chat/contract"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/errors"
	"fitpulse-chat/observability"
	"log/slog"
	"time"
)

// Fanout hands one event to many sinks.
//
// It is best-effort: no retries, no ordering across sinks. A sink that cannot
// accept the event is skipped and, when its queue overflowed, has already closed itself.
type Fanout struct {
	log         *slog.Logger
	monitoring  *observability.MonitoringManager
	sinkTimeout time.Duration
}

func NewFanout(log *slog.Logger, monitoring *observability.MonitoringManager, sinkTimeout time.Duration) *Fanout {
	return &Fanout{log: log, monitoring: monitoring, sinkTimeout: sinkTimeout}
}

// Deliver returns how many sinks accepted the event.
func (f *Fanout) Deliver(ctx context.Context, sinks []contract.EventSink, e event.Event) int {
	delivered := 0
	for _, sink := range sinks {
		if f.consume(ctx, sink, e) {
			delivered++
		}
	}
	return delivered
}

// DeliverExcept skips every sink matched by skip.
func (f *Fanout) DeliverExcept(ctx context.Context, sinks []contract.EventSink, skip func(contract.EventSink) bool, e event.Event) int {
	delivered := 0
	for _, sink := range sinks {
		if skip(sink) {
			continue
		}
		if f.consume(ctx, sink, e) {
			delivered++
		}
	}
	return delivered
}

func (f *Fanout) consume(ctx context.Context, sink contract.EventSink, e event.Event) bool {
	sinkCtx, cancel := context.WithTimeout(ctx, f.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, e); err != nil {
		f.monitoring.IncrEventsDropped()
		if errors.Is(err, errors.ErrSlowConsumer) {
			f.monitoring.IncrSlowConsumers()
		}
		f.log.Debug("Event not delivered",
			"event", e.Type,
			"connection", sink.ID(),
			"user", sink.UserID(),
			"error", err)
		return false
	}
	f.monitoring.IncrEventsDelivered()
	return true
}
