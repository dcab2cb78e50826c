package models

import (
	"strings"
	"time"
)

// User represents an account within the MealMates platform.
type User struct {
	ID        string
	Username  string
	Email     string
	Language  string
	AvatarURL string

	// PasswordScheme names the hashing scheme used for PasswordHash.
	PasswordScheme string
	PasswordHash   []byte
	PasswordSalt   []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FriendshipState describes where a pair of users sits in the friendship lifecycle.
type FriendshipState string

const (
	FriendshipNone     FriendshipState = "none"
	FriendshipPending  FriendshipState = "pending"
	FriendshipAccepted FriendshipState = "accepted"
)

// Friendship is a consent-based edge between two users. RequesterID is the
// user who initiated the request and TargetID the user who has to confirm it.
type Friendship struct {
	ID          string
	RequesterID string
	TargetID    string
	Accepted    bool
	Open        bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// State reports the lifecycle state of the edge.
func (f Friendship) State() FriendshipState {
	if f.Accepted {
		return FriendshipAccepted
	}
	return FriendshipPending
}

// Involves reports whether userID is one of the endpoints.
func (f Friendship) Involves(userID string) bool {
	return f.RequesterID == userID || f.TargetID == userID
}

// Connects reports whether the edge joins a and b, in either direction.
func (f Friendship) Connects(a, b string) bool {
	return (f.RequesterID == a && f.TargetID == b) || (f.RequesterID == b && f.TargetID == a)
}

// Other returns the endpoint opposite to userID.
func (f Friendship) Other(userID string) string {
	if f.RequesterID == userID {
		return f.TargetID
	}
	return f.RequesterID
}

// Event is a meal or get-together published by a user to their friends.
type Event struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	CreatedAt   time.Time
}

// LabelText holds the translations of a UI label.
type LabelText struct {
	Identifier string
	German     string
	English    string
}

// Text returns the German translation for "DE" and the English one otherwise.
func (l LabelText) Text(language string) string {
	if strings.EqualFold(strings.TrimSpace(language), "DE") {
		return l.German
	}
	return l.English
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
