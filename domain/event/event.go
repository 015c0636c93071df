// Package event defines what travels over a connection and between workers.
package event

import (
	"encoding/json"
	"fitpulse-chat/domain"
	"time"
)

type Type string

// Client to server.
const (
	SendMessageType Type = "send_message"
	TypingType      Type = "typing"
	JoinGroupType   Type = "join_group"
	LeaveGroupType  Type = "leave_group"
	MarkAsReadType  Type = "mark_as_read"
)

// Server to client.
const (
	MessageSentType       Type = "message_sent"
	ReceiveMessageType    Type = "receive_message"
	UpdateUnreadCountType Type = "update_unread_count"
	UserTypingType        Type = "user_typing"
	StopTypingType        Type = "stop_typing"
	MessageReadType       Type = "message_read"
	UserOnlineType        Type = "user_online"
	UserOfflineType       Type = "user_offline"
	ErrorType             Type = "error"
)

// Event is the envelope written to and read from a connection.
type Event struct {
	Type      Type      `json:"event"`
	CreatedAt time.Time `json:"-"`
	Payload   any       `json:"data,omitempty"`
}

// Inbound is a client frame whose payload is decoded once its type is known.
type Inbound struct {
	Type Type            `json:"event"`
	Data json.RawMessage `json:"data"`
}

func New(t Type, payload any) Event {
	return Event{Type: t, CreatedAt: time.Now().UTC(), Payload: payload}
}

type MessageSent struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	Message        domain.Message        `json:"message"`
}

type ReceiveMessage struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	Message        domain.Message        `json:"message"`
	GroupName      string                `json:"groupName,omitempty"`
}

type UnreadCount struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	UnreadCount    int                   `json:"unreadCount"`
}

type UserTyping struct {
	UserID         domain.UserID         `json:"userId"`
	User           domain.UserSummary    `json:"user"`
	ConversationID domain.ConversationID `json:"conversationId"`
	GroupID        *domain.GroupID       `json:"groupId,omitempty"`
	IsTyping       bool                  `json:"isTyping"`
}

type MessageRead struct {
	MessageID      domain.MessageID      `json:"messageId"`
	ConversationID domain.ConversationID `json:"conversationId"`
	ReadBy         domain.UserID         `json:"readBy"`
	ReadAt         time.Time             `json:"readAt"`
}

// Presence is the user_online / user_offline payload.
type Presence struct {
	UserID   domain.UserID      `json:"userId"`
	User     domain.UserSummary `json:"user"`
	LastSeen time.Time          `json:"lastSeen"`
}

type Error struct {
	Message string `json:"message"`
}

// MessagePersisted is emitted on the internal bus once a message is durable.
type MessagePersisted struct {
	Message domain.Message
}

// OfflineDelivery lists recipients that had no live connection for a message.
type OfflineDelivery struct {
	Message    domain.Message
	GroupName  string
	Recipients []domain.UserID
}
