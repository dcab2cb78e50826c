package handlers

import (
	"context"
	"io"

	"github.com/mealmates/backend/internal/accounts"
	"github.com/mealmates/backend/internal/friends"
	"github.com/mealmates/backend/internal/models"
)

// AccountService captures the account use cases required by the auth and user handlers.
type AccountService interface {
	Register(ctx context.Context, reg accounts.Registration) (models.User, error)
	Authenticate(ctx context.Context, identifier, password string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	EmailAvailable(ctx context.Context, email string) (bool, error)
	UpdateProfile(ctx context.Context, id string, update accounts.ProfileUpdate) (models.User, error)
	UpdateEmail(ctx context.Context, id, email string) (models.User, error)
	ChangePassword(ctx context.Context, id, current, next string) (models.User, error)
}

// SessionManager issues, refreshes and revokes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
	RevokeAll(ctx context.Context, userID string) error
}

// FriendService captures the friendship operations required by the friend handlers.
type FriendService interface {
	CreateOrAccept(ctx context.Context, requester, target string) (friends.Result, error)
	DeclineOrDelete(ctx context.Context, a, b string) (friends.Result, error)
	FriendsOf(ctx context.Context, userID string) ([]string, error)
	Requests(ctx context.Context, userID string) (friends.Requests, error)
	Relationship(ctx context.Context, a, b string) (models.FriendshipState, error)
}

// EventStore captures persistence for event sharing workflows.
type EventStore interface {
	Create(ctx context.Context, event models.Event) error
	ListFeed(ctx context.Context, userID string) ([]models.Event, error)
}

// LabelCatalog resolves localized label texts.
type LabelCatalog interface {
	Lookup(ctx context.Context, language string) (map[string]string, error)
}

// AvatarStorage stores uploaded avatar images and returns their public location.
type AvatarStorage interface {
	UploadAvatar(ctx context.Context, userID, contentType string, body io.Reader) (string, error)
}

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
