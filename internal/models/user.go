package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID `json:"_id"`
	Username    string    `json:"userName"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Summary returns the public projection pushed alongside requests and messages.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Email: u.Email}
}

// GreetingName is the name used in seeded conversation greetings.
func (u *User) GreetingName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

type UserSummary struct {
	ID       uuid.UUID `json:"_id"`
	Username string    `json:"userName"`
	Email    string    `json:"email,omitempty"`
}

// Friend is an entry in a user's friend list, ordered by latest conversation activity.
type Friend struct {
	UserSummary
	Online         bool       `json:"online"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`
}
