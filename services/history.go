package services

import (
	"context"
	"fitpulse-chat/contract"
	"fitpulse-chat/domain"
	"fitpulse-chat/errors"
	"fitpulse-chat/repositories"
	"fitpulse-chat/search"
	"fmt"
	"log/slog"
	"time"
)

// HistoryService serves persisted messages to clients catching up.
type HistoryService struct {
	log          *slog.Logger
	directory    *Directory
	messages     repositories.IMessageRepository
	index        contract.IMessageIndex
	storeTimeout time.Duration
}

func NewHistoryService(log *slog.Logger, directory *Directory, messages repositories.IMessageRepository, index contract.IMessageIndex, storeTimeout time.Duration) *HistoryService {
	return &HistoryService{log: log, directory: directory, messages: messages, index: index, storeTimeout: storeTimeout}
}

// Messages returns a page of history, newest first, and the cursor of the next page.
func (h *HistoryService) Messages(ctx context.Context, user domain.UserID, conversationID string, cursor *string) ([]domain.Message, *string, error) {
	storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()

	conv, err := h.directory.Open(storeCtx, user, conversationID, false, false)
	if err != nil {
		return nil, nil, err
	}
	return h.messages.GetMessages(storeCtx, conv.ID, cursor)
}

// Search runs a full-text query scoped to one conversation.
func (h *HistoryService) Search(ctx context.Context, user domain.UserID, conversationID string, input string) ([]domain.Message, error) {
	query := search.NewSearchQuery(input)
	if query.Terms == "" {
		return nil, fmt.Errorf("%w: search terms are required", errors.ErrInvalidPayload)
	}
	storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()

	conv, err := h.directory.Open(storeCtx, user, conversationID, false, false)
	if err != nil {
		return nil, err
	}
	ids, err := h.index.Search(storeCtx, conv.ID, query.Terms, query.From, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	messages := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := h.messages.GetMessage(storeCtx, id)
		if errors.Is(err, errors.ErrNotFound) {
			h.log.Debug("Indexed message missing from store", "message", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
