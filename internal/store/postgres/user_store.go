package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const userColumns = `
	user_id, email, name, COALESCE(password_hash, ''),
	is_staff, email_verified, created_at, updated_at, last_login_at
`

// UserStore implements store.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new PostgreSQL-backed user store.
// It shares the connection pool with other stores.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (
			user_id, email, name, password_hash,
			is_staff, email_verified, created_at, updated_at
		) VALUES (
			$1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8
		)
	`

	_, err := s.pool.Exec(ctx, query,
		user.UserID,
		models.NormalizeEmail(user.Email),
		user.Name,
		user.PasswordHash,
		user.IsStaff,
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	log.Debug().
		Str("user_id", user.UserID.String()).
		Bool("is_staff", user.IsStaff).
		Msg("Created user")

	return nil
}

func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, models.NormalizeEmail(email))
}

func (s *UserStore) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.UserID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.IsStaff,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2, name = $3, password_hash = NULLIF($4, ''), is_staff = $5,
		    email_verified = $6, last_login_at = $7, updated_at = now()
		WHERE user_id = $1
		RETURNING updated_at
	`

	err := s.pool.QueryRow(ctx, query,
		user.UserID,
		models.NormalizeEmail(user.Email),
		user.Name,
		user.PasswordHash,
		user.IsStaff,
		user.EmailVerified,
		user.LastLoginAt,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return store.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// VerificationStore implements store.VerificationStore using PostgreSQL.
type VerificationStore struct {
	pool *pgxpool.Pool
}

func NewVerificationStore(pool *pgxpool.Pool) *VerificationStore {
	return &VerificationStore{pool: pool}
}

func (s *VerificationStore) Create(ctx context.Context, v *models.EmailVerification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO email_verifications (token, user_id, created_at, verified_at)
		VALUES ($1, $2, $3, $4)
	`, v.Token, v.UserID, v.CreatedAt, v.VerifiedAt)
	if err != nil {
		return fmt.Errorf("failed to create verification token: %w", mapPostgresError(err))
	}
	return nil
}

func (s *VerificationStore) Get(ctx context.Context, token uuid.UUID) (*models.EmailVerification, error) {
	var v models.EmailVerification
	err := s.pool.QueryRow(ctx, `
		SELECT token, user_id, created_at, verified_at
		FROM email_verifications WHERE token = $1
	`, token).Scan(&v.Token, &v.UserID, &v.CreatedAt, &v.VerifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to get verification token: %w", err)
	}
	return &v, nil
}

// MarkVerified consumes the token. The account flag is updated by the caller.
func (s *VerificationStore) MarkVerified(ctx context.Context, token uuid.UUID, at time.Time) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE email_verifications SET verified_at = $2
		WHERE token = $1 AND verified_at IS NULL
	`, token, at)
	if err != nil {
		return mapPostgresError(err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM email_verifications WHERE token = $1)`, token).Scan(&exists)
	switch {
	case err != nil:
		return mapPostgresError(err)
	case exists:
		return store.ErrAlreadyVerified
	default:
		return store.ErrVerificationNotFound
	}
}

func (s *VerificationStore) DeleteStale(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM email_verifications
		WHERE verified_at IS NULL AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale verification tokens: %w", err)
	}
	return int(result.RowsAffected()), nil
}
