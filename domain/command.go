package domain

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SendMessageCommand is the send_message payload.
type SendMessageCommand struct {
	ConversationID string      `json:"conversationId" validate:"required"`
	Content        *string     `json:"content,omitempty" validate:"omitempty,max=4000"`
	Media          *Media      `json:"media,omitempty" validate:"omitempty"`
	MessageType    MessageType `json:"messageType" validate:"omitempty,oneof=text image video audio document"`
	ReplyTo        *MessageID  `json:"replyTo,omitempty"`
}

type TypingCommand struct {
	ConversationID string `json:"conversationId" validate:"required"`
	IsGroup        bool   `json:"isGroup"`
	IsTyping       bool   `json:"isTyping"`
}

// GroupCommand is the join_group / leave_group payload.
type GroupCommand struct {
	GroupID GroupID `json:"groupId" validate:"required"`
}

type MarkReadCommand struct {
	ConversationID string    `json:"conversationId" validate:"required"`
	MessageID      MessageID `json:"messageId" validate:"required"`
}

// Validate checks struct tags of any inbound command.
func Validate(cmd any) error {
	return validate.Struct(cmd)
}
