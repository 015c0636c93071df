package domain

import "time"

type GroupID string

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type GroupMembership struct {
	UserID   UserID    `json:"userId"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
	AddedBy  UserID    `json:"addedBy"`
}

// Group owns the membership list. Its conversation mirrors the member ids.
type Group struct {
	ID             GroupID           `json:"id"`
	Name           string            `json:"name"`
	Members        []GroupMembership `json:"members"`
	ConversationID ConversationID    `json:"conversationId"`
	CreatedBy      UserID            `json:"createdBy"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func (g Group) Member(user UserID) (GroupMembership, bool) {
	for _, m := range g.Members {
		if m.UserID == user {
			return m, true
		}
	}
	return GroupMembership{}, false
}

func (g Group) HasMember(user UserID) bool {
	_, ok := g.Member(user)
	return ok
}

func (g Group) IsAdmin(user UserID) bool {
	m, ok := g.Member(user)
	return ok && m.Role == RoleAdmin
}

func (g Group) MemberIDs() []UserID {
	ids := make([]UserID, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// AddMember appends a membership unless the user is already present.
func (g *Group) AddMember(m GroupMembership) bool {
	if g.HasMember(m.UserID) {
		return false
	}
	g.Members = append(g.Members, m)
	return true
}

func (g *Group) RemoveMember(user UserID) bool {
	for i, m := range g.Members {
		if m.UserID == user {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return true
		}
	}
	return false
}
