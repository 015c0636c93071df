package services

import (
	"context"
	"fitpulse-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProfileService_Sync(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	profiles := NewProfileService(h.users, time.Second)

	user, err := profiles.Sync(context.Background(), "alice", " Alice ", "https://cdn/alice.png")
	req.NoError(err)
	req.Equal("Alice", user.Name)
	req.Equal("https://cdn/alice.png", user.AvatarURL)

	_, err = profiles.Sync(context.Background(), "alice", "", "")
	req.ErrorIs(err, errors.ErrInvalidPayload)
}
