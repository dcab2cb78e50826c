package repositories

import (
	"context"

	"github.com/mealmates/backend/internal/models"
)

// UserRepository defines the data access contract for users. Username and
// email uniqueness is enforced by the store and reported as ErrConflict.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	Count(ctx context.Context) (int, error)
}
