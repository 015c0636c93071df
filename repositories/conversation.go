package repositories

import (
	"context"
	"fitpulse-chat/domain"
	"fitpulse-chat/errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IConversationRepository interface {
	GetConversation(ctx context.Context, id domain.ConversationID) (domain.Conversation, error)
	FindDirect(ctx context.Context, a, b domain.UserID) (domain.Conversation, error)
	FindOrCreateDirect(ctx context.Context, a, b domain.UserID) (domain.Conversation, error)
	AppendMessage(ctx context.Context, msg domain.Message) (domain.Conversation, error)
	MarkRead(ctx context.Context, id domain.ConversationID, reader domain.UserID, messageID domain.MessageID, at time.Time) (domain.Conversation, error)
}

type ConversationRepository struct {
	store Store
}

func NewConversationRepository(store Store) *ConversationRepository {
	return &ConversationRepository{store: store}
}

func conversationKey(id domain.ConversationID) string {
	return convPrefix + string(id)
}

func pairKey(a, b domain.UserID) string {
	low, high := domain.DirectPair(a, b)
	return fmt.Sprintf("%s%s|%s", pairPrefix, low, high)
}

// messageKey is formatted as "msg:{conversation}:{timestamp_padded}:{id}" so a
// prefix scan returns a conversation's messages in chronological order.
func messageKey(msg domain.Message) string {
	return fmt.Sprintf("%s%s:%019d:%s", msgPrefix, msg.ConversationID, msg.CreatedAt.UnixNano(), msg.ID)
}

func messageIDKey(id domain.MessageID) string {
	return msgIDPrefix + string(id)
}

func (c *ConversationRepository) GetConversation(ctx context.Context, id domain.ConversationID) (domain.Conversation, error) {
	var conv domain.Conversation
	err := c.store.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, conversationKey(id), &conv)
	})
	return conv, err
}

func (c *ConversationRepository) FindDirect(ctx context.Context, a, b domain.UserID) (domain.Conversation, error) {
	var conv domain.Conversation
	err := c.store.view(ctx, func(txn *badger.Txn) error {
		id, err := getRaw(txn, pairKey(a, b))
		if err != nil {
			return err
		}
		return getJSON(txn, conversationKey(domain.ConversationID(id)), &conv)
	})
	return conv, err
}

// FindOrCreateDirect returns the unique conversation of an unordered pair.
// Concurrent callers race on the pair key; the loser conflicts, retries and reads the winner's row.
func (c *ConversationRepository) FindOrCreateDirect(ctx context.Context, a, b domain.UserID) (domain.Conversation, error) {
	if a == b {
		return domain.Conversation{}, fmt.Errorf("%w: cannot open a conversation with yourself", errors.ErrInvalidPayload)
	}
	var conv domain.Conversation
	err := c.store.update(ctx, func(txn *badger.Txn) error {
		conv = domain.Conversation{}
		id, err := getRaw(txn, pairKey(a, b))
		switch {
		case err == nil:
			return getJSON(txn, conversationKey(domain.ConversationID(id)), &conv)
		case !isNotFound(err):
			return err
		}

		now := time.Now().UTC()
		low, high := domain.DirectPair(a, b)
		conv = domain.Conversation{
			ID:           domain.ConversationID(uuid.NewString()),
			Kind:         domain.DirectConversation,
			Participants: []domain.UserID{low, high},
			Settings:     map[domain.UserID]domain.ParticipantSettings{},
			Unread:       map[domain.UserID]int{low: 0, high: 0},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := txn.Set([]byte(pairKey(a, b)), []byte(conv.ID)); err != nil {
			return err
		}
		return setJSON(txn, conversationKey(conv.ID), conv)
	})
	return conv, err
}

// AppendMessage persists the message, refreshes the last-message summary and bumps
// the unread counter of every participant but the sender, all in one transaction.
func (c *ConversationRepository) AppendMessage(ctx context.Context, msg domain.Message) (domain.Conversation, error) {
	var conv domain.Conversation
	err := c.store.update(ctx, func(txn *badger.Txn) error {
		conv = domain.Conversation{}
		if err := getJSON(txn, conversationKey(msg.ConversationID), &conv); err != nil {
			return err
		}
		// Membership is rechecked here: a concurrent removal writes the same key and conflicts
		if !conv.HasParticipant(msg.SenderID) {
			return fmt.Errorf("%w: %s is not in %s", errors.ErrAccessDenied, msg.SenderID, conv.ID)
		}
		key := messageKey(msg)
		if err := setJSON(txn, key, msg); err != nil {
			return err
		}
		if err := txn.Set([]byte(messageIDKey(msg.ID)), []byte(key)); err != nil {
			return err
		}

		summary := msg.Summary()
		conv.LastMessage = &summary
		conv.UpdatedAt = msg.CreatedAt
		if conv.Unread == nil {
			conv.Unread = map[domain.UserID]int{}
		}
		for _, p := range conv.Others(msg.SenderID) {
			conv.Unread[p]++
		}
		return setJSON(txn, conversationKey(conv.ID), conv)
	})
	return conv, err
}

// MarkRead moves the reader's pointer and decrements its counter, never below zero.
func (c *ConversationRepository) MarkRead(ctx context.Context, id domain.ConversationID, reader domain.UserID, messageID domain.MessageID, at time.Time) (domain.Conversation, error) {
	var conv domain.Conversation
	err := c.store.update(ctx, func(txn *badger.Txn) error {
		conv = domain.Conversation{}
		if err := getJSON(txn, conversationKey(id), &conv); err != nil {
			return err
		}
		if conv.Settings == nil {
			conv.Settings = map[domain.UserID]domain.ParticipantSettings{}
		}
		if conv.Unread == nil {
			conv.Unread = map[domain.UserID]int{}
		}
		settings := conv.Settings[reader]
		settings.LastReadMessage = &messageID
		settings.LastReadAt = &at
		conv.Settings[reader] = settings
		conv.Unread[reader] = max(conv.Unread[reader]-1, 0)
		return setJSON(txn, conversationKey(id), conv)
	})
	return conv, err
}
