package services

import (
	"context"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/errors"
	"fitpulse-chat/runtime"
	"fmt"
	"time"
)

// TypingCoordinator relays typing signals. Nothing is persisted and nothing is debounced.
type TypingCoordinator struct {
	directory    *Directory
	router       *Router
	fanout       *runtime.Fanout
	storeTimeout time.Duration
}

func NewTypingCoordinator(directory *Directory, router *Router, fanout *runtime.Fanout, storeTimeout time.Duration) *TypingCoordinator {
	return &TypingCoordinator{directory: directory, router: router, fanout: fanout, storeTimeout: storeTimeout}
}

func (t *TypingCoordinator) SetTyping(ctx context.Context, user domain.UserID, cmd domain.TypingCommand) error {
	if err := domain.Validate(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	storeCtx, cancel := context.WithTimeout(ctx, t.storeTimeout)
	defer cancel()

	conv, err := t.directory.Open(storeCtx, user, cmd.ConversationID, cmd.IsGroup, false)
	if err != nil {
		return err
	}

	var groupID *domain.GroupID
	if conv.IsGroup() {
		id := conv.GroupID
		groupID = &id
	}
	typing := event.New(event.UserTypingType, event.UserTyping{
		UserID:         user,
		User:           t.router.Summary(user),
		ConversationID: conv.ID,
		GroupID:        groupID,
		IsTyping:       cmd.IsTyping,
	})
	for _, conns := range t.router.Recipients(conv, user) {
		t.fanout.Deliver(ctx, conns, typing)
	}
	return nil
}
