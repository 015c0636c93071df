package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMapper(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		typ       string
		namespace string
		entityID  string
		timestamp string
	}{
		{"message of a direct conversation", "msg:c1:0000000000000000000:m1", "msg", "c1", "m1", "00:00:00"},
		{"message of a group conversation", "msg:group:g1:0000000003600000000:0123456789", "msg", "group:g1", "01234567", "00:00:03"},
		{"group conversation", "conv:group:g1", "conv", "default", "group:g1", "--:--:--"},
		{"user", "user:alice", "user", "default", "alice", "--:--:--"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			row := DefaultMapper(tt.key, 42)
			req.Equal(tt.typ, row.Type)
			req.Equal(tt.namespace, row.Namespace)
			req.Equal(tt.entityID, row.EntityID)
			req.Equal(tt.timestamp, row.Timestamp)
			req.Equal("Size: 42 bytes", row.Detail)
		})
	}
}
