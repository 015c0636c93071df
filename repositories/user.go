//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"fitpulse-chat/domain"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
	UpsertProfile(ctx context.Context, profile domain.UserSummary) (domain.User, error)
	SetPresence(ctx context.Context, id domain.UserID, online bool, lastSeen time.Time) error
}

type UserRepository struct {
	store Store
}

func NewUserRepository(store Store) *UserRepository {
	return &UserRepository{store: store}
}

func userKey(id domain.UserID) string {
	return userPrefix + string(id)
}

func (u *UserRepository) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	var user domain.User
	err := u.store.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &user)
	})
	return user, err
}

// UpsertProfile copies the identity service's summary into the store.
// Presence fields of an existing user are left untouched.
func (u *UserRepository) UpsertProfile(ctx context.Context, profile domain.UserSummary) (domain.User, error) {
	var user domain.User
	err := u.store.update(ctx, func(txn *badger.Txn) error {
		user = domain.User{}
		if err := getJSON(txn, userKey(profile.ID), &user); err != nil && !isNotFound(err) {
			return err
		}
		user.ID = profile.ID
		user.Name = profile.Name
		user.AvatarURL = profile.AvatarURL
		return setJSON(txn, userKey(profile.ID), user)
	})
	return user, err
}

func (u *UserRepository) SetPresence(ctx context.Context, id domain.UserID, online bool, lastSeen time.Time) error {
	return u.store.update(ctx, func(txn *badger.Txn) error {
		var user domain.User
		if err := getJSON(txn, userKey(id), &user); err != nil {
			return err
		}
		user.IsOnline = online
		if !lastSeen.IsZero() {
			user.LastSeen = lastSeen
		}
		return setJSON(txn, userKey(id), user)
	})
}
