package domain

import (
	"fitpulse-chat/domain/mimetypes"
	"fmt"
	"time"
)

type MessageID string

type MessageType string

const (
	TextMessage     MessageType = "text"
	ImageMessage    MessageType = "image"
	VideoMessage    MessageType = "video"
	AudioMessage    MessageType = "audio"
	DocumentMessage MessageType = "document"
	SystemMessage   MessageType = "system"
)

// MessageStatus only moves forward: sent -> delivered -> read.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

var statusRank = map[MessageStatus]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// Advance returns the furthest of the two statuses and whether it changed.
func (s MessageStatus) Advance(next MessageStatus) (MessageStatus, bool) {
	if statusRank[next] > statusRank[s] {
		return next, true
	}
	return s, false
}

// Media describes an upload stored by the external blob service.
type Media struct {
	URL      string `json:"url" validate:"required,url"`
	MimeType string `json:"mimeType" validate:"required"`
	FileName string `json:"fileName,omitempty"`
	Size     int64  `json:"size,omitempty" validate:"gte=0"`
}

// Type infers the message type from the media mime type.
func (m Media) Type() (MessageType, error) {
	family, err := mimetypes.Classify(m.MimeType)
	if err != nil {
		return "", err
	}
	return MessageType(family), nil
}

// Message is stamped with exactly one of ReceiverID (direct) or GroupID (group)
// and carries content, media or both.
type Message struct {
	ID             MessageID      `json:"id"`
	ConversationID ConversationID `json:"conversationId"`
	SenderID       UserID         `json:"senderId"`
	ReceiverID     *UserID        `json:"receiverId,omitempty"`
	GroupID        *GroupID       `json:"groupId,omitempty"`
	Content        *string        `json:"content,omitempty"`
	Media          *Media         `json:"media,omitempty"`
	Type           MessageType    `json:"messageType"`
	Status         MessageStatus  `json:"status"`
	ReplyTo        *MessageID     `json:"replyTo,omitempty"`
	Edited         bool           `json:"edited"`
	EditedAt       *time.Time     `json:"editedAt,omitempty"`
	Deleted        bool           `json:"deleted"`
	DeletedAt      *time.Time     `json:"deletedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Preview is the conversation summary text: the content, or a marker
// naming the media type when the message has no text.
func (m Message) Preview() string {
	if m.Content != nil && *m.Content != "" {
		return *m.Content
	}
	return fmt.Sprintf("Sent %s", m.Type)
}

func (m Message) Summary() LastMessageSummary {
	return LastMessageSummary{
		MessageID: m.ID,
		Content:   m.Preview(),
		SenderID:  m.SenderID,
		At:        m.CreatedAt,
	}
}
