package domain

import (
	"strings"
	"time"
)

type ConversationID string

type ConversationKind string

const (
	DirectConversation ConversationKind = "direct"
	GroupConversation  ConversationKind = "group"
)

// Reserved identifier prefixes. A "group:" id names the conversation bound to a
// group, a "direct:" id addresses the direct conversation with a peer.
const (
	GroupPrefix  = "group:"
	DirectPrefix = "direct:"
)

// LastMessageSummary is the preview shown in conversation lists.
type LastMessageSummary struct {
	MessageID MessageID `json:"messageId"`
	Content   string    `json:"content"`
	SenderID  UserID    `json:"senderId"`
	At        time.Time `json:"at"`
}

type ParticipantSettings struct {
	Pinned          bool       `json:"pinned"`
	Muted           bool       `json:"muted"`
	LastReadMessage *MessageID `json:"lastReadMessage,omitempty"`
	LastReadAt      *time.Time `json:"lastReadAt,omitempty"`
}

// Conversation is a tagged variant: Kind decides whether GroupID is set
// (group) or Participants holds exactly two users (direct).
// Unread holds one counter per participant.
type Conversation struct {
	ID           ConversationID                 `json:"id"`
	Kind         ConversationKind               `json:"kind"`
	Participants []UserID                       `json:"participants"`
	GroupID      GroupID                        `json:"groupId,omitempty"`
	LastMessage  *LastMessageSummary            `json:"lastMessage,omitempty"`
	Settings     map[UserID]ParticipantSettings `json:"settings"`
	Unread       map[UserID]int                 `json:"unread"`
	CreatedAt    time.Time                      `json:"createdAt"`
	UpdatedAt    time.Time                      `json:"updatedAt"`

	// Group is loaded by the directory for group conversations, never stored.
	Group *Group `json:"-"`
}

func (c Conversation) IsGroup() bool {
	return c.Kind == GroupConversation
}

func (c Conversation) HasParticipant(user UserID) bool {
	for _, p := range c.Participants {
		if p == user {
			return true
		}
	}
	return false
}

// Peer returns the other participant of a direct conversation.
func (c Conversation) Peer(user UserID) (UserID, bool) {
	if c.IsGroup() || len(c.Participants) != 2 {
		return "", false
	}
	switch user {
	case c.Participants[0]:
		return c.Participants[1], true
	case c.Participants[1]:
		return c.Participants[0], true
	}
	return "", false
}

// Others returns every participant except user.
func (c Conversation) Others(user UserID) []UserID {
	others := make([]UserID, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != user {
			others = append(others, p)
		}
	}
	return others
}

func (c Conversation) UnreadFor(user UserID) int {
	return c.Unread[user]
}

// GroupConversationID is the conversation bound to a group.
func GroupConversationID(group GroupID) ConversationID {
	return ConversationID(GroupPrefix + string(group))
}

// DirectPair orders two users so that the pair is independent of who asks.
func DirectPair(a, b UserID) (UserID, UserID) {
	if b < a {
		return b, a
	}
	return a, b
}

type RefKind int

const (
	RefDirectID RefKind = iota
	RefDirectPeer
	RefGroup
)

// ConversationRef is a parsed conversation identifier.
type ConversationRef struct {
	Kind RefKind
	// ID is the conversation id, the peer id or the group id depending on Kind.
	ID string
}

// ParseConversationRef inspects the raw identifier once so that downstream code
// never looks at prefixes again.
func ParseConversationRef(raw string) (ConversationRef, bool) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, GroupPrefix):
		id := strings.TrimPrefix(raw, GroupPrefix)
		return ConversationRef{Kind: RefGroup, ID: id}, id != ""
	case strings.HasPrefix(raw, DirectPrefix):
		id := strings.TrimPrefix(raw, DirectPrefix)
		return ConversationRef{Kind: RefDirectPeer, ID: id}, id != ""
	default:
		return ConversationRef{Kind: RefDirectID, ID: raw}, raw != ""
	}
}

func (r ConversationRef) String() string {
	switch r.Kind {
	case RefGroup:
		return GroupPrefix + r.ID
	case RefDirectPeer:
		return DirectPrefix + r.ID
	default:
		return r.ID
	}
}
