package search

import (
	"fitpulse-chat/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSearchQuery(t *testing.T) {
	tests := []struct {
		input string
		terms string
		from  *domain.UserID
		limit int
	}{
		{"protein shake", "protein shake", nil, DefaultLimit},
		{"/find leg day --from bob", "leg day", ptr("bob"), DefaultLimit},
		{"pace --limit 5", "pace", nil, 5},
		{"pace --limit 1000", "pace", nil, MaxLimit},
		{"pace --limit nope", "pace", nil, DefaultLimit},
		{"--unknown x marathon", "marathon", nil, DefaultLimit},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			req := require.New(t)
			query := NewSearchQuery(tt.input)
			req.Equal(tt.terms, query.Terms)
			req.Equal(tt.from, query.From)
			req.Equal(tt.limit, query.Limit)
		})
	}
}

func ptr(user domain.UserID) *domain.UserID {
	return &user
}
