package workers

import (
	"context"
	"fitpulse-chat/contract"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/observability"
	"log/slog"

	"github.com/abadojack/whatlanggo"
)

const unknownLang = "und"

// IndexWorker feeds persisted messages to the full-text index, tagged with their detected language.
type IndexWorker struct {
	index      contract.IMessageIndex
	persisted  <-chan event.MessagePersisted
	monitoring *observability.MonitoringManager
	log        *slog.Logger
}

func NewIndexWorker(index contract.IMessageIndex,
	persisted <-chan event.MessagePersisted,
	monitoring *observability.MonitoringManager,
	log *slog.Logger) *IndexWorker {
	return &IndexWorker{index: index, persisted: persisted, monitoring: monitoring, log: log}
}

func (w IndexWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping index worker")
			return ctx.Err()
		case e, ok := <-w.persisted:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			if err := w.index.Index(ctx, e.Message, detectLang(e.Message)); err != nil {
				w.log.Warn("Unable to index message", "message", e.Message.ID, "error", err)
				continue
			}
			w.monitoring.IncrIndexed()
		}
	}
}

// detectLang returns the ISO 639-1 code of the content, or "und" when unsure.
func detectLang(msg domain.Message) string {
	if msg.Content == nil || *msg.Content == "" {
		return unknownLang
	}
	info := whatlanggo.Detect(*msg.Content)
	if !info.IsReliable() {
		return unknownLang
	}
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return unknownLang
}
