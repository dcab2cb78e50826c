package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mealmates/backend/internal/accounts"
	"github.com/mealmates/backend/internal/config"
	"github.com/mealmates/backend/internal/db"
	"github.com/mealmates/backend/internal/handlers"
	"github.com/mealmates/backend/internal/httpserver"
	"github.com/mealmates/backend/internal/logging"
	"github.com/mealmates/backend/internal/middleware"
	"github.com/mealmates/backend/internal/repositories"
)

const defaultSeedPassword = "password"

// Run bootstraps the MealMates backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	switch args[0] {
	case "serve":
		return serve(ctx, cfg, logger)
	case "migrate":
		return runMigrations(ctx, cfg, args[1:])
	case "seed":
		return runSeed(ctx, cfg, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var st stores
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		st = memoryStores()
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL, poolOptions(cfg))
		if err != nil {
			return err
		}
		defer pool.Close()
		st = postgresStores(pool)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps, err := buildDependencies(ctx, st, cfg, registry)
	if err != nil {
		return err
	}

	if pruner, ok := deps.Sessions.(sessionPruner); ok && cfg.SessionPruneInterval > 0 {
		go pruneSessions(ctx, pruner, cfg.SessionPruneInterval)
	}

	handler := newRouter(deps, registry, cfg)
	handler = middleware.RequestLogger(logger)(handler)

	srv := httpserver.New(cfg.AppPort, handler)
	logger.Info("starting http server", "port", cfg.AppPort, "storage", cfg.Storage)
	return srv.Run(ctx)
}

func poolOptions(cfg config.Config) db.PoolOptions {
	return db.PoolOptions{
		MaxConns:        int32(cfg.DBMaxConns),
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	}
}

type sessionPruner interface {
	Prune(ctx context.Context) (int64, error)
}

// pruneSessions purges expired refresh tokens every interval until ctx ends.
func pruneSessions(ctx context.Context, pruner sessionPruner, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := pruner.Prune(ctx)
			if err != nil {
				slog.WarnContext(ctx, "prune sessions", "error", err)
				continue
			}
			if removed > 0 {
				slog.InfoContext(ctx, "pruned expired sessions", "count", removed)
			}
		}
	}
}

// newRouter mounts the API, the metrics endpoint and CORS handling.
func newRouter(deps handlers.Dependencies, gatherer prometheus.Gatherer, cfg config.Config) http.Handler {
	router := mux.NewRouter()
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Instrument)
	}

	metricsHandler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	router.Handle("/metrics", middleware.BasicAuth(cfg.Metrics.Username, cfg.Metrics.Password)(metricsHandler)).Methods(http.MethodGet)

	handlers.RegisterRoutes(router, deps)

	cors := ghandlers.CORS(
		ghandlers.AllowedOrigins(cfg.CORSOrigins),
		ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		ghandlers.AllowedHeaders([]string{"Authorization", "Content-Type", middleware.RequestIDHeader}),
		ghandlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
	)
	return cors(router)
}

func runMigrations(ctx context.Context, cfg config.Config, args []string) error {
	if cfg.Storage == config.StorageMemory {
		return errors.New("migrations require postgres storage")
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, poolOptions(cfg))
	if err != nil {
		return err
	}
	defer pool.Close()

	return db.Migrate(ctx, pool, command)
}

// runSeed applies seeds/<name>_seed.sql, or with "users <n> [password]"
// creates n test accounts.
func runSeed(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("expected seed name (e.g. dev) or users <n>")
	}
	if cfg.Storage == config.StorageMemory {
		return errors.New("seeding requires postgres storage")
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, poolOptions(cfg))
	if err != nil {
		return err
	}
	defer pool.Close()

	if args[0] == "users" {
		return seedUsers(ctx, cfg, repositories.NewPostgresUserRepository(pool), args[1:])
	}

	seedDir := cfg.SeedDir
	if !filepath.IsAbs(seedDir) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		seedDir = filepath.Join(wd, seedDir)
	}

	seedName := args[0]
	if !strings.HasSuffix(seedName, ".sql") {
		seedName = fmt.Sprintf("%s_seed.sql", seedName)
	}

	contents, err := os.ReadFile(filepath.Join(seedDir, seedName))
	if err != nil {
		return fmt.Errorf("read seed %s: %w", seedName, err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, string(contents)); err != nil {
		return fmt.Errorf("apply seed %s: %w", seedName, err)
	}

	slog.InfoContext(ctx, "applied seed", "seed", seedName)
	return nil
}

func seedUsers(ctx context.Context, cfg config.Config, users repositories.UserRepository, args []string) error {
	if len(args) == 0 {
		return errors.New("expected number of users to seed")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid user count %q", args[0])
	}
	password := defaultSeedPassword
	if len(args) > 1 {
		password = args[1]
	}

	service := accounts.NewService(users, newHasher(cfg), accounts.Options{})
	created, err := service.SeedTestUsers(ctx, n, password)
	if err != nil {
		return err
	}

	for _, user := range created {
		slog.InfoContext(ctx, "seeded user", "username", user.Username, "email", user.Email)
	}
	return nil
}
