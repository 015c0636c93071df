package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Not found", fmt.Errorf("%w: conversation abc", ErrNotFound), "conversation not found"},
		{"Access denied", ErrAccessDenied, "access denied"},
		{"Invalid payload keeps detail", fmt.Errorf("%w: content or media is required", ErrInvalidPayload), "invalid payload: content or media is required"},
		{"Storage is generic", fmt.Errorf("%w: badger: disk full", ErrStorage), "internal server error"},
		{"Unknown is generic", fmt.Errorf("boom"), "internal server error"},
		{"Timeout", fmt.Errorf("%w: context deadline exceeded", ErrTimeout), "request timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, ClientMessage(tt.err))
		})
	}
}

func TestIsConnectionFatal(t *testing.T) {
	req := require.New(t)
	req.True(IsConnectionFatal(ErrNoCredential))
	req.True(IsConnectionFatal(fmt.Errorf("%w: exp", ErrCredentialExpired)))
	req.True(IsConnectionFatal(ErrUnknownUser))
	req.False(IsConnectionFatal(ErrAccessDenied))
	req.False(IsConnectionFatal(ErrStorage))
}
