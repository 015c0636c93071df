package services

import (
	"context"
	"fitpulse-chat/domain"
	"fitpulse-chat/errors"
	"fitpulse-chat/repositories"
	"fmt"
	"strings"
	"time"
)

// ProfileService copies the identity service's view of a user into the store.
type ProfileService struct {
	users        repositories.IUserRepository
	storeTimeout time.Duration
}

func NewProfileService(users repositories.IUserRepository, storeTimeout time.Duration) *ProfileService {
	return &ProfileService{users: users, storeTimeout: storeTimeout}
}

func (p *ProfileService) Sync(ctx context.Context, user domain.UserID, name, avatarURL string) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, fmt.Errorf("%w: name is required", errors.ErrInvalidPayload)
	}
	storeCtx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	return p.users.UpsertProfile(storeCtx, domain.UserSummary{ID: user, Name: name, AvatarURL: avatarURL})
}
