package repositories

import (
	"context"
	"encoding/json"
	"fitpulse-chat/errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Key layout.
//
//	user:{userID}                       -> domain.User
//	conv:{conversationID}               -> domain.Conversation
//	dmpair:{low}|{high}                 -> conversation id of the direct pair
//	group:{groupID}                     -> domain.Group
//	msg:{conversationID}:{ts}:{msgID}   -> domain.Message
//	msgid:{msgID}                       -> msg key
const (
	userPrefix    = "user:"
	convPrefix    = "conv:"
	pairPrefix    = "dmpair:"
	groupPrefix   = "group:"
	msgPrefix     = "msg:"
	msgIDPrefix   = "msgid:"
	maxTxnRetries = 100
)

// Store wraps badger optimistic transactions. A write that loses a conflict is
// replayed from scratch, which turns every read-modify-write into a CAS loop.
type Store struct {
	db *badger.DB
}

func NewStore(db *badger.DB) Store {
	return Store{db: db}
}

func (s Store) DB() *badger.DB {
	return s.db
}

func (s Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		err := s.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return storageErr(err)
	}
	return fmt.Errorf("%w: %w", errors.ErrStorage, errors.ErrTxnRetries)
}

func (s Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return storageErr(s.db.View(fn))
}

func ctxErr(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", errors.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
}

// storageErr keeps domain failures as they are and tags everything else as a storage fault.
func storageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.ErrNotFound),
		errors.Is(err, errors.ErrAccessDenied),
		errors.Is(err, errors.ErrInvalidPayload),
		errors.Is(err, errors.ErrTimeout),
		errors.Is(err, errors.ErrStorage):
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", errors.ErrNotFound, key)
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), bytes)
}

func getRaw(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", errors.ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func isNotFound(err error) bool {
	return errors.Is(err, errors.ErrNotFound)
}
