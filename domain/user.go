// Package domain contains core concepts of the messaging system.
// No runtime, network, or storage logic should be added here.
package domain

import "time"

type UserID string

// User is owned by the external store. The core only keeps a read-through
// copy while the user is connected.
type User struct {
	ID        UserID    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	IsOnline  bool      `json:"isOnline"`
	LastSeen  time.Time `json:"lastSeen"`
}

// UserSummary is the public projection attached to presence and typing events.
type UserSummary struct {
	ID        UserID `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
}
