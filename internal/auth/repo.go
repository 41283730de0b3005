package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memberdesk/memberdesk/internal/shared"
)

// NewUser carries the fields required to create an account. The digest is
// already hashed by the caller.
type NewUser struct {
	Email          string
	PasswordDigest string
	Role           string
	FirstName      string
	LastName       string
}

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user NewUser) (*User, error)
	CreateLoginSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteLoginSession(ctx context.Context, id string) error
	DeleteExpiredLoginSessions(ctx context.Context, before time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user by email. Returns shared.ErrNotFound when no
// account matches.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	const query = `SELECT id, email, password, role, first_name, last_name, created_at, updated_at
		FROM users WHERE email = $1`
	var user User
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordDigest, &user.Role,
		&user.FirstName, &user.LastName, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create inserts a new account. The unique index on email surfaces duplicates
// as shared.ErrUserExists instead of a raw constraint error.
func (r *PGRepository) Create(ctx context.Context, user NewUser) (*User, error) {
	const query = `INSERT INTO users (email, password, role, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, email, password, role, first_name, last_name, created_at, updated_at`
	var created User
	err := r.pool.QueryRow(ctx, query,
		user.Email, user.PasswordDigest, user.Role, user.FirstName, user.LastName,
	).Scan(
		&created.ID, &created.Email, &created.PasswordDigest, &created.Role,
		&created.FirstName, &created.LastName, &created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrUserExists
		}
		return nil, err
	}
	return &created, nil
}

// CreateLoginSession records a login session for auditing.
func (r *PGRepository) CreateLoginSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	const query = `INSERT INTO login_sessions (id, user_id, created_at, expires_at, ip, ua)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		ON CONFLICT (id) DO UPDATE SET user_id = $2, expires_at = $4`
	_, err := r.pool.Exec(ctx, query, id, userID, time.Now().UTC(), expiresAt.UTC(), ip, ua)
	return err
}

// DeleteLoginSession removes a session audit record.
func (r *PGRepository) DeleteLoginSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE id = $1`, id)
	return err
}

// DeleteExpiredLoginSessions prunes audit records that expired before the
// given instant and reports how many were removed.
func (r *PGRepository) DeleteExpiredLoginSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
