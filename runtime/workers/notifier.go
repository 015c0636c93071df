package workers

import (
	"context"
	"fitpulse-chat/contract"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/pubsub"
	"log/slog"
	"time"
)

// OfflineNotification is what the push service receives for users without a live connection.
type OfflineNotification struct {
	MessageID      domain.MessageID      `json:"messageId"`
	ConversationID domain.ConversationID `json:"conversationId"`
	SenderID       domain.UserID         `json:"senderId"`
	GroupID        *domain.GroupID       `json:"groupId,omitempty"`
	GroupName      string                `json:"groupName,omitempty"`
	Preview        string                `json:"preview"`
	Recipients     []domain.UserID       `json:"recipients"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// NotifierWorker hands offline deliveries to the broker. A failed publish is logged and dropped.
type NotifierWorker struct {
	publisher      contract.IPublisher
	offline        <-chan event.OfflineDelivery
	publishTimeout time.Duration
	log            *slog.Logger
}

func NewNotifierWorker(publisher contract.IPublisher,
	offline <-chan event.OfflineDelivery,
	publishTimeout time.Duration,
	log *slog.Logger) *NotifierWorker {
	return &NotifierWorker{publisher: publisher, offline: offline, publishTimeout: publishTimeout, log: log}
}

func (w NotifierWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping notifier worker")
			return ctx.Err()
		case delivery, ok := <-w.offline:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.publish(ctx, delivery)
		}
	}
}

func (w NotifierWorker) publish(ctx context.Context, delivery event.OfflineDelivery) {
	publishCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
	defer cancel()

	msg := delivery.Message
	notification := OfflineNotification{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		GroupID:        msg.GroupID,
		GroupName:      delivery.GroupName,
		Preview:        msg.Preview(),
		Recipients:     delivery.Recipients,
		CreatedAt:      msg.CreatedAt,
	}
	if err := w.publisher.Publish(publishCtx, pubsub.OfflineMessageKey, notification); err != nil {
		w.log.Warn("Offline notification lost", "message", msg.ID, "recipients", len(delivery.Recipients), "error", err)
	}
}
