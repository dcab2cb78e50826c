package repositories

import (
	"context"

	"github.com/mealmates/backend/internal/models"
)

// FriendshipTx exposes the edge operations available inside one atomic
// read-modify-write unit. Edges read through FindEdgeBetween stay locked
// until the unit ends.
type FriendshipTx interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	// FindEdgeBetween returns the edge joining a and b in either direction, or ErrNotFound.
	FindEdgeBetween(ctx context.Context, a, b string) (models.Friendship, error)
	// SaveEdge inserts or updates the edge by ID. A second edge for the same
	// unordered pair yields ErrConflict.
	SaveEdge(ctx context.Context, edge models.Friendship) error
	DeleteEdge(ctx context.Context, edgeID string) error
}

// FriendRepository defines data access for friendship edges.
type FriendRepository interface {
	// WithinTx runs fn atomically; any error returned by fn discards its writes.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx FriendshipTx) error) error
	ListEdgesInvolving(ctx context.Context, userID string) ([]models.Friendship, error)
}
