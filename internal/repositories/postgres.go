package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mealmates/backend/internal/db"
	"github.com/mealmates/backend/internal/models"
)

const userColumns = `id, username, email, language, avatar_url, password_scheme, password_salt, password_hash, created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, user.ID, user.Username, user.Email, user.Language, user.AvatarURL, user.PasswordScheme,
		nonNil(user.PasswordSalt), user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return translateWriteError(err, "insert user")
	}

	return nil
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.User{}, ErrNotFound
	}
	return r.findOne(ctx, "id", id)
}

// FindByUsername fetches a user by their username.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, "username", username)
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, column, value string) (models.User, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return models.User{}, err
	}
	defer conn.Release()

	// column is one of a fixed set chosen by the callers above.
	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}

	return user, nil
}

// Update modifies an existing user record.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	if _, err := uuid.Parse(user.ID); err != nil {
		return ErrNotFound
	}

	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET username = $2, email = $3, language = $4, avatar_url = $5,
            password_scheme = $6, password_salt = $7, password_hash = $8, updated_at = $9
        WHERE id = $1
    `, user.ID, user.Username, user.Email, user.Language, user.AvatarURL,
		user.PasswordScheme, nonNil(user.PasswordSalt), user.PasswordHash, user.UpdatedAt)
	if err != nil {
		return translateWriteError(err, "update user")
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Count returns the number of registered users.
func (r *PostgresUserRepository) Count(ctx context.Context) (int, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var count int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Language, &user.AvatarURL,
		&user.PasswordScheme, &user.PasswordSalt, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return models.User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// PostgresFriendRepository provides PostgreSQL-backed persistence for friendship edges.
type PostgresFriendRepository struct {
	pool db.Pool
}

// NewPostgresFriendRepository constructs a friend repository backed by PostgreSQL.
func NewPostgresFriendRepository(pool db.Pool) *PostgresFriendRepository {
	return &PostgresFriendRepository{pool: pool}
}

// WithinTx runs fn inside a serializable transaction, retrying transient
// serialization failures.
func (r *PostgresFriendRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx FriendshipTx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &postgresFriendshipTx{tx: tx})
	})
}

// ListEdgesInvolving returns every edge where the user is requester or target.
func (r *PostgresFriendRepository) ListEdgesInvolving(ctx context.Context, userID string) ([]models.Friendship, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, nil
	}

	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, requester_id, target_id, accepted, open, created_at, updated_at
        FROM friendships
        WHERE requester_id = $1 OR target_id = $1
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query friendships: %w", err)
	}
	defer rows.Close()

	var edges []models.Friendship
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friendships: %w", err)
	}

	return edges, nil
}

type postgresFriendshipTx struct {
	tx pgx.Tx
}

func (t *postgresFriendshipTx) UserExists(ctx context.Context, userID string) (bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return false, nil
	}

	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (t *postgresFriendshipTx) FindEdgeBetween(ctx context.Context, a, b string) (models.Friendship, error) {
	// Ids that are not UUIDs cannot name a user, so no edge can join them.
	if _, err := uuid.Parse(a); err != nil {
		return models.Friendship{}, ErrNotFound
	}
	if _, err := uuid.Parse(b); err != nil {
		return models.Friendship{}, ErrNotFound
	}

	row := t.tx.QueryRow(ctx, `
        SELECT id, requester_id, target_id, accepted, open, created_at, updated_at
        FROM friendships
        WHERE (requester_id = $1 AND target_id = $2)
           OR (requester_id = $2 AND target_id = $1)
        FOR UPDATE
    `, a, b)

	edge, err := scanEdge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Friendship{}, ErrNotFound
		}
		return models.Friendship{}, fmt.Errorf("select friendship: %w", err)
	}
	return edge, nil
}

func (t *postgresFriendshipTx) SaveEdge(ctx context.Context, edge models.Friendship) error {
	_, err := t.tx.Exec(ctx, `
        INSERT INTO friendships (id, requester_id, target_id, accepted, open, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id)
        DO UPDATE SET accepted = EXCLUDED.accepted, open = EXCLUDED.open, updated_at = EXCLUDED.updated_at
    `, edge.ID, edge.RequesterID, edge.TargetID, edge.Accepted, edge.Open, edge.CreatedAt, edge.UpdatedAt)
	if err != nil {
		return translateWriteError(err, "upsert friendship")
	}
	return nil
}

func (t *postgresFriendshipTx) DeleteEdge(ctx context.Context, edgeID string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM friendships WHERE id = $1`, edgeID)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEdge(row pgx.Row) (models.Friendship, error) {
	var edge models.Friendship
	if err := row.Scan(&edge.ID, &edge.RequesterID, &edge.TargetID, &edge.Accepted, &edge.Open, &edge.CreatedAt, &edge.UpdatedAt); err != nil {
		return models.Friendship{}, err
	}
	edge.CreatedAt = edge.CreatedAt.UTC()
	edge.UpdatedAt = edge.UpdatedAt.UTC()
	return edge, nil
}

// PostgresEventRepository provides PostgreSQL-backed persistence for events.
type PostgresEventRepository struct {
	pool db.Pool
}

// NewPostgresEventRepository constructs an event repository backed by PostgreSQL.
func NewPostgresEventRepository(pool db.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

// Create stores a new event record.
func (r *PostgresEventRepository) Create(ctx context.Context, event models.Event) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO events (id, owner_id, title, description, location, starts_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, event.ID, event.OwnerID, event.Title, event.Description, event.Location, event.StartsAt, event.CreatedAt)
	if err != nil {
		return translateWriteError(err, "insert event")
	}

	return nil
}

// ListFeed returns the user's own events and those of accepted friends, newest first.
func (r *PostgresEventRepository) ListFeed(ctx context.Context, userID string) ([]models.Event, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, nil
	}

	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        WITH accepted_friends AS (
            SELECT DISTINCT
                CASE
                    WHEN f.requester_id = $1 THEN f.target_id
                    ELSE f.requester_id
                END AS friend_id
            FROM friendships f
            WHERE f.accepted
              AND (f.requester_id = $1 OR f.target_id = $1)
        )
        SELECT id, owner_id, title, description, location, starts_at, created_at
        FROM events
        WHERE owner_id = $1 OR owner_id IN (SELECT friend_id FROM accepted_friends)
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, feedLimit)
	if err != nil {
		return nil, fmt.Errorf("query event feed: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.OwnerID, &event.Title, &event.Description, &event.Location, &event.StartsAt, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.StartsAt = event.StartsAt.UTC()
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event feed: %w", err)
	}

	return events, nil
}

// PostgresLabelRepository reads label texts from PostgreSQL.
type PostgresLabelRepository struct {
	pool db.Pool
}

// NewPostgresLabelRepository constructs a label repository backed by PostgreSQL.
func NewPostgresLabelRepository(pool db.Pool) *PostgresLabelRepository {
	return &PostgresLabelRepository{pool: pool}
}

// ListLabels returns every label ordered by identifier.
func (r *PostgresLabelRepository) ListLabels(ctx context.Context) ([]models.LabelText, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT identifier, lbl_german, lbl_english FROM label_texts ORDER BY identifier`)
	if err != nil {
		return nil, fmt.Errorf("query label texts: %w", err)
	}
	defer rows.Close()

	var labels []models.LabelText
	for rows.Next() {
		var label models.LabelText
		if err := rows.Scan(&label.Identifier, &label.German, &label.English); err != nil {
			return nil, fmt.Errorf("scan label text: %w", err)
		}
		labels = append(labels, label)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate label texts: %w", err)
	}

	return labels, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ FriendRepository = (*PostgresFriendRepository)(nil)
var _ EventRepository = (*PostgresEventRepository)(nil)
var _ LabelRepository = (*PostgresLabelRepository)(nil)
