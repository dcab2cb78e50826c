package repositories

import (
	"context"

	"github.com/mealmates/backend/internal/models"
)

// EventRepository exposes data access for published events.
type EventRepository interface {
	Create(ctx context.Context, event models.Event) error
	ListFeed(ctx context.Context, userID string) ([]models.Event, error)
}

// LabelRepository loads the localized UI label texts.
type LabelRepository interface {
	ListLabels(ctx context.Context) ([]models.LabelText, error)
}

const feedLimit = 100
