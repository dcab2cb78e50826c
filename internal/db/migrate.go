package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mealmates/backend/migrations"
)

const migrationMaxAttempts = 3

var gooseMu sync.Mutex

// goose commands are seams for tests.
var (
	gooseUp = func(ctx context.Context, db *sql.DB) error {
		return goose.UpContext(ctx, db, ".")
	}
	gooseDown = func(ctx context.Context, db *sql.DB) error {
		return goose.DownContext(ctx, db, ".")
	}
	gooseStatus = func(ctx context.Context, db *sql.DB) error {
		return goose.StatusContext(ctx, db, ".")
	}
)

// Migrate runs a goose command (up, down or status) against the embedded
// migrations using the pool's connection settings.
func Migrate(ctx context.Context, pool *pgxpool.Pool, command string) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	return MigrateDB(ctx, sqlDB, command)
}

// MigrateDB runs a goose command against sqlDB. Transient serialization and
// locking failures are retried with backoff.
func MigrateDB(ctx context.Context, sqlDB *sql.DB, command string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	var run func(context.Context, *sql.DB) error
	switch command {
	case "up", "":
		run = gooseUp
	case "down":
		run = gooseDown
	case "status":
		run = gooseStatus
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}

	var err error
	for attempt := 0; attempt < migrationMaxAttempts; attempt++ {
		if attempt > 0 {
			if berr := Backoff(ctx, attempt); berr != nil {
				return berr
			}
		}

		err = run(ctx, sqlDB)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return fmt.Errorf("migrate %s: %w", command, err)
		}
		slog.WarnContext(ctx, "transient error running migrations",
			"command", command, "attempt", attempt+1, "max_attempts", migrationMaxAttempts, "error", err)
	}

	return fmt.Errorf("migrate %s: exceeded max attempts (%d): %w", command, migrationMaxAttempts, err)
}
