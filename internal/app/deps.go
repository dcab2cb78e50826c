package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mealmates/backend/internal/accounts"
	"github.com/mealmates/backend/internal/auth"
	"github.com/mealmates/backend/internal/config"
	"github.com/mealmates/backend/internal/credentials"
	"github.com/mealmates/backend/internal/db"
	"github.com/mealmates/backend/internal/friends"
	"github.com/mealmates/backend/internal/handlers"
	"github.com/mealmates/backend/internal/labels"
	"github.com/mealmates/backend/internal/middleware"
	"github.com/mealmates/backend/internal/repositories"
	"github.com/mealmates/backend/internal/storage"
)

// stores bundles one storage backend's repositories.
type stores struct {
	users    repositories.UserRepository
	friends  friends.Store
	events   repositories.EventRepository
	labels   repositories.LabelRepository
	sessions auth.SessionStore
	pinger   handlers.Pinger
}

func postgresStores(pool db.Pool) stores {
	return stores{
		users:    repositories.NewPostgresUserRepository(pool),
		friends:  repositories.NewPostgresFriendRepository(pool),
		events:   repositories.NewPostgresEventRepository(pool),
		labels:   repositories.NewPostgresLabelRepository(pool),
		sessions: repositories.NewPostgresSessionStore(pool),
		pinger:   pool,
	}
}

// memoryStores keeps all state in process; the label catalog starts with the
// built-in defaults.
func memoryStores() stores {
	users := repositories.NewMemoryUserRepository()
	friendRepo := repositories.NewMemoryFriendRepository(users)
	return stores{
		users:    users,
		friends:  friendRepo,
		events:   repositories.NewMemoryEventRepository(friendRepo),
		labels:   repositories.NewMemoryLabelRepository(labels.Defaults),
		sessions: auth.NewMemorySessionStore(),
	}
}

func newHasher(cfg config.Config) *credentials.Hasher {
	return credentials.NewHasher(credentials.Params{
		Time:      cfg.Argon2Time,
		MemoryKiB: cfg.Argon2MemoryKiB,
		Threads:   cfg.Argon2Threads,
	})
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, st stores, cfg config.Config, reg prometheus.Registerer) (handlers.Dependencies, error) {
	sessions := auth.NewManager([]byte(cfg.TokenSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL, st.sessions)

	deps := handlers.Dependencies{
		Accounts:    accounts.NewService(st.users, newHasher(cfg), accounts.Options{MinPasswordLength: cfg.MinPasswordLength}),
		Sessions:    sessions,
		Tokens:      sessions,
		Friends:     friends.NewService(st.friends),
		Events:      st.events,
		Labels:      labels.NewCachingCatalog(st.labels, cfg.LabelCacheTTL),
		DB:          st.pinger,
		AuthLimiter: middleware.NewKeyedLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, 0),
		Metrics:     middleware.NewMetrics(reg),
	}

	if cfg.ObjectStore.Bucket != "" {
		avatars, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, fmt.Errorf("configure avatar storage: %w", err)
		}
		deps.Avatars = avatars
	}

	return deps, nil
}
