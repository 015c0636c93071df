package services

import (
	"context"
	"encoding/json"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"testing"

	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, typ event.Type, data any) event.Inbound {
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return event.Inbound{Type: typ, Data: raw}
}

func lastError(t *testing.T, r *recorder) string {
	errs := r.Of(event.ErrorType)
	require.NotEmpty(t, errs)
	return errs[len(errs)-1].Payload.(event.Error).Message
}

func TestChatService_RoutesFrames(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.connect(t, "alice", "a1")
	bob := h.connect(t, "bob", "b1")
	group := h.group(t, "alice", "bob")

	h.chat.Handle(context.Background(), "alice", alice, frame(t, event.SendMessageType, text("direct:bob", "hello")))
	req.Len(alice.Of(event.MessageSentType), 1)
	msg := bob.Of(event.ReceiveMessageType)[0].Payload.(event.ReceiveMessage).Message

	h.chat.Handle(context.Background(), "bob", bob, frame(t, event.MarkAsReadType, domain.MarkReadCommand{ConversationID: string(msg.ConversationID), MessageID: msg.ID}))
	req.Len(alice.Of(event.MessageReadType), 1)

	h.chat.Handle(context.Background(), "bob", bob, frame(t, event.TypingType, domain.TypingCommand{ConversationID: string(msg.ConversationID), IsTyping: true}))
	req.Len(alice.Of(event.UserTypingType), 1)

	h.chat.Handle(context.Background(), "bob", bob, frame(t, event.LeaveGroupType, domain.GroupCommand{GroupID: group.ID}))
	h.chat.Handle(context.Background(), "alice", alice, frame(t, event.SendMessageType, text(string(group.ConversationID), "anyone?")))
	req.Len(bob.Of(event.ReceiveMessageType), 1)

	h.chat.Handle(context.Background(), "bob", bob, frame(t, event.JoinGroupType, domain.GroupCommand{GroupID: group.ID}))
	h.chat.Handle(context.Background(), "alice", alice, frame(t, event.SendMessageType, text(string(group.ConversationID), "anyone now?")))
	req.Len(bob.Of(event.ReceiveMessageType), 2)

	req.Empty(alice.Of(event.ErrorType))
	req.Empty(bob.Of(event.ErrorType))
}

func TestChatService_ErrorsStayOnConnection(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice", "a1")
	group := h.group(t, "bob", "carol")

	tests := []struct {
		name  string
		frame event.Inbound
		want  string
	}{
		{"unknown event", event.Inbound{Type: "dance", Data: json.RawMessage(`{}`)}, "invalid payload"},
		{"missing data", event.Inbound{Type: event.SendMessageType}, "invalid payload"},
		{"bad json", event.Inbound{Type: event.SendMessageType, Data: json.RawMessage(`{"content":`)}, "invalid payload"},
		{"not a member", frame(t, event.SendMessageType, text(string(group.ConversationID), "hi")), "access denied"},
		{"unknown group", frame(t, event.JoinGroupType, domain.GroupCommand{GroupID: "nope"}), "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.chat.Handle(context.Background(), "alice", alice, tt.frame)
			require.Contains(t, lastError(t, alice), tt.want)
		})
	}
	require.Equal(t, uint64(len(tests)), h.monitoring.ActionErrors)
}

func TestChatService_RecoversPanic(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.connect(t, "alice", "a1")
	h.user(t, "bob")

	// Given a service wired without its pipeline
	chat := NewChatService(h.log, nil, h.typing, h.receipts, h.groups, h.monitoring)

	req.NotPanics(func() {
		chat.Handle(context.Background(), "alice", alice, frame(t, event.SendMessageType, text("direct:bob", "boom")))
	})
	req.Equal("internal server error", lastError(t, alice))
}
