package repositories

import (
	"context"
	"encoding/json"
	"fitpulse-chat/domain"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	GetMessage(ctx context.Context, id domain.MessageID) (domain.Message, error)
	GetMessages(ctx context.Context, conversationID domain.ConversationID, cursor *string) ([]domain.Message, *string, error)
	AdvanceStatus(ctx context.Context, id domain.MessageID, status domain.MessageStatus) (domain.Message, bool, error)
}

type MessageRepository struct {
	store         Store
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(store Store, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{store: store, log: log, limitMessages: limitMessages}
}

func (m *MessageRepository) GetMessage(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	var msg domain.Message
	err := m.store.view(ctx, func(txn *badger.Txn) error {
		key, err := getRaw(txn, messageIDKey(id))
		if err != nil {
			return err
		}
		return getJSON(txn, string(key), &msg)
	})
	return msg, err
}

// GetMessages walks a conversation backwards from the cursor, newest first.
// The returned cursor is the key suffix of the last message read, nil once the history is exhausted.
func (m *MessageRepository) GetMessages(ctx context.Context, conversationID domain.ConversationID, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	exhausted := true
	err := m.store.view(ctx, func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("%s%s:", msgPrefix, conversationID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Past the newest possible timestamp, then walk backwards.
			seekKey = append([]byte(prefixStr), []byte("9999999999999999999")...)
		default:
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				exhausted = false
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			var msg domain.Message
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if exhausted {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// AdvanceStatus moves a message forward. A request to go backwards is a no-op.
func (m *MessageRepository) AdvanceStatus(ctx context.Context, id domain.MessageID, status domain.MessageStatus) (domain.Message, bool, error) {
	var msg domain.Message
	var changed bool
	err := m.store.update(ctx, func(txn *badger.Txn) error {
		msg, changed = domain.Message{}, false
		key, err := getRaw(txn, messageIDKey(id))
		if err != nil {
			return err
		}
		if err := getJSON(txn, string(key), &msg); err != nil {
			return err
		}
		msg.Status, changed = msg.Status.Advance(status)
		if !changed {
			return nil
		}
		msg.UpdatedAt = time.Now().UTC()
		return setJSON(txn, string(key), msg)
	})
	return msg, changed, err
}
