package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mealmates/backend/internal/auth"
	"github.com/mealmates/backend/internal/db"
)

const (
	insertSessionSQL = `INSERT INTO sessions (token_hash, user_id, issued_at, expires_at) VALUES ($1, $2, $3, $4)`
	takeSessionSQL   = `DELETE FROM sessions WHERE token_hash = $1 RETURNING token_hash, user_id, issued_at, expires_at`
	deleteSessionSQL = `DELETE FROM sessions WHERE token_hash = $1`
	deleteUserSQL    = `DELETE FROM sessions WHERE user_id = $1`
	deleteExpiredSQL = `DELETE FROM sessions WHERE expires_at < $1`
)

// PostgresSessionStore keeps refresh token digests in the sessions table.
type PostgresSessionStore struct {
	pool db.Pool
}

func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

func (s *PostgresSessionStore) Save(ctx context.Context, session auth.Session) error {
	issuedAt := session.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	_, err := s.exec(ctx, insertSessionSQL, session.TokenHash, session.UserID, issuedAt.UTC(), session.ExpiresAt.UTC())
	if err != nil {
		return translateWriteError(err, "insert session")
	}
	return nil
}

// Take deletes the session and hands back what was stored, in one statement.
func (s *PostgresSessionStore) Take(ctx context.Context, tokenHash string) (auth.Session, error) {
	conn, err := acquire(ctx, s.pool)
	if err != nil {
		return auth.Session{}, err
	}
	defer conn.Release()

	var session auth.Session
	err = conn.QueryRow(ctx, takeSessionSQL, tokenHash).
		Scan(&session.TokenHash, &session.UserID, &session.IssuedAt, &session.ExpiresAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return auth.Session{}, auth.ErrSessionNotFound
	case err != nil:
		return auth.Session{}, fmt.Errorf("take session: %w", err)
	}

	session.IssuedAt = session.IssuedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}

func (s *PostgresSessionStore) Delete(ctx context.Context, tokenHash string) error {
	tag, err := s.exec(ctx, deleteSessionSQL, tokenHash)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

func (s *PostgresSessionStore) DeleteForUser(ctx context.Context, userID string) error {
	if _, err := s.exec(ctx, deleteUserSQL, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.exec(ctx, deleteExpiredSQL, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresSessionStore) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	conn, err := acquire(ctx, s.pool)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	defer conn.Release()
	return conn.Exec(ctx, sql, args...)
}

var _ auth.SessionStore = (*PostgresSessionStore)(nil)
