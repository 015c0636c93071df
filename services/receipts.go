package services

import (
	"context"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/errors"
	"fitpulse-chat/repositories"
	"fitpulse-chat/runtime"
	"fmt"
	"log/slog"
	"time"
)

// ReadReceipts records last-read pointers and tells the original sender.
type ReadReceipts struct {
	log           *slog.Logger
	directory     *Directory
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	router        *Router
	fanout        *runtime.Fanout
	storeTimeout  time.Duration
}

func NewReadReceipts(log *slog.Logger,
	directory *Directory,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	router *Router,
	fanout *runtime.Fanout,
	storeTimeout time.Duration) *ReadReceipts {
	return &ReadReceipts{
		log:           log,
		directory:     directory,
		conversations: conversations,
		messages:      messages,
		router:        router,
		fanout:        fanout,
		storeTimeout:  storeTimeout,
	}
}

// MarkRead is a silent no-op for a caller outside the conversation.
func (r *ReadReceipts) MarkRead(ctx context.Context, reader domain.UserID, cmd domain.MarkReadCommand) error {
	if err := domain.Validate(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	storeCtx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	conv, err := r.directory.Open(storeCtx, reader, cmd.ConversationID, false, false)
	if errors.Is(err, errors.ErrAccessDenied) {
		r.log.Debug("Read receipt ignored", "reader", reader, "conversation", cmd.ConversationID)
		return nil
	}
	if err != nil {
		return err
	}

	msg, err := r.messages.GetMessage(storeCtx, cmd.MessageID)
	if err != nil {
		return err
	}
	if msg.ConversationID != conv.ID {
		return fmt.Errorf("%w: message %s is not part of %s", errors.ErrInvalidPayload, msg.ID, conv.ID)
	}

	readAt := time.Now().UTC()
	conv, err = r.conversations.MarkRead(storeCtx, conv.ID, reader, msg.ID, readAt)
	if err != nil {
		return err
	}

	if msg.SenderID != reader {
		if _, _, err := r.messages.AdvanceStatus(storeCtx, msg.ID, domain.StatusRead); err != nil {
			return err
		}
		r.fanout.Deliver(ctx, r.router.Own(msg.SenderID), event.New(event.MessageReadType, event.MessageRead{
			MessageID:      msg.ID,
			ConversationID: conv.ID,
			ReadBy:         reader,
			ReadAt:         readAt,
		}))
	}

	r.fanout.Deliver(ctx, r.router.Own(reader), event.New(event.UpdateUnreadCountType, event.UnreadCount{
		ConversationID: conv.ID,
		UnreadCount:    conv.UnreadFor(reader),
	}))
	return nil
}
