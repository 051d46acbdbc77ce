package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// pq error code for unique constraint violations
const pqUniqueViolation = "23505"

// Store persists users and sessions in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates a store on an existing connection pool
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the users and sessions tables if they don't exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		agency VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(50) NOT NULL DEFAULT '',
		access_tier VARCHAR(50) NOT NULL DEFAULT 'standard',
		admin_level VARCHAR(50) NOT NULL DEFAULT 'none',
		account_status VARCHAR(30) NOT NULL DEFAULT 'pending_verification',
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		mfa_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		verification_token VARCHAR(255),
		verification_expires_at TIMESTAMP WITH TIME ZONE,
		failed_login_attempts INTEGER NOT NULL DEFAULT 0,
		lock_until TIMESTAMP WITH TIME ZONE,
		last_login_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_users_verification_token ON users(verification_token);

	CREATE TABLE IF NOT EXISTS sessions (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash VARCHAR(128) NOT NULL,
		ip_address VARCHAR(45) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_active_expires ON sessions(active, expires_at);
	`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

const userColumns = `
	id, email, password_hash, first_name, last_name, agency, phone,
	access_tier, admin_level, account_status, email_verified, mfa_enabled,
	verification_token, verification_expires_at,
	failed_login_attempts, lock_until, last_login_at,
	created_at, updated_at`

// CreateUser inserts a new user. Returns ErrEmailTaken when the email
// is already registered.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (
			email, password_hash, first_name, last_name, agency, phone,
			access_tier, admin_level, account_status, email_verified, mfa_enabled,
			verification_token, verification_expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13
		) RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		strings.ToLower(user.Email), user.PasswordHash,
		user.FirstName, user.LastName, user.Agency, user.Phone,
		user.AccessTier, user.AdminLevel, user.Status, user.EmailVerified, user.MFAEnabled,
		nullString(user.VerificationToken), user.VerificationExpiresAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.Email = strings.ToLower(user.Email)
	return nil
}

// GetUserByEmail looks up a user by case-normalized email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, strings.ToLower(email)))
}

// GetUserByID looks up a user by id
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// ConsumeVerificationToken activates the account holding an unexpired
// verification token and clears the token in the same statement, so a
// token can never be used twice. Returns ErrVerificationInvalid when
// no matching row exists.
func (s *Store) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*User, error) {
	query := `
		UPDATE users
		SET email_verified = TRUE,
			account_status = $2,
			verification_token = NULL,
			verification_expires_at = NULL,
			updated_at = $3
		WHERE verification_token = $1
			AND verification_expires_at > $3
			AND email_verified = FALSE
		RETURNING ` + userColumns

	user, err := s.scanUser(s.db.QueryRowContext(ctx, query, token, StatusActive, now))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrVerificationInvalid
	}
	return user, err
}

// RecordLoginFailure atomically increments the failed-login counter
// and sets lock_until when the new count reaches the threshold. Both
// happen in one statement so concurrent failures cannot lose updates.
func (s *Store) RecordLoginFailure(ctx context.Context, userID int64, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
			lock_until = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN $3
				ELSE lock_until
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts, lock_until
	`

	var failures int
	var lockedUntil sql.NullTime
	err := s.db.QueryRowContext(ctx, query, userID, threshold, lockUntil).Scan(&failures, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrUserNotFound
		}
		return 0, nil, fmt.Errorf("failed to record login failure: %w", err)
	}

	if lockedUntil.Valid {
		t := lockedUntil.Time
		return failures, &t, nil
	}
	return failures, nil, nil
}

// ResetLoginFailures clears the failure counter and lock, and stamps
// the successful login time.
func (s *Store) ResetLoginFailures(ctx context.Context, userID int64, now time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0,
			lock_until = NULL,
			last_login_at = $2,
			updated_at = $2
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, userID, now)
	if err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateSession inserts a session row
func (s *Store) CreateSession(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (user_id, token_hash, ip_address, user_agent, active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		session.UserID, session.TokenHash, session.IPAddress, session.UserAgent,
		session.Active, session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// DeactivateUserSessions marks all of a user's active sessions
// inactive, returning how many were affected.
func (s *Store) DeactivateUserSessions(ctx context.Context, userID int64) (int64, error) {
	query := `UPDATE sessions SET active = FALSE WHERE user_id = $1 AND active = TRUE`

	result, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate sessions: %w", err)
	}
	return result.RowsAffected()
}

// DeactivateExpiredSessions marks expired sessions inactive,
// returning how many were affected.
func (s *Store) DeactivateExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE sessions SET active = FALSE WHERE active = TRUE AND expires_at <= $1`

	result, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// CountActiveSessions returns the number of active, unexpired sessions
func (s *Store) CountActiveSessions(ctx context.Context, now time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM sessions WHERE active = TRUE AND expires_at > $1`

	var count int64
	if err := s.db.QueryRowContext(ctx, query, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	var agency, phone, verificationToken sql.NullString
	var verificationExpiresAt, lockUntil, lastLoginAt sql.NullTime

	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash,
		&user.FirstName, &user.LastName, &agency, &phone,
		&user.AccessTier, &user.AdminLevel, &user.Status,
		&user.EmailVerified, &user.MFAEnabled,
		&verificationToken, &verificationExpiresAt,
		&user.FailedLoginAttempts, &lockUntil, &lastLoginAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.Agency = agency.String
	user.Phone = phone.String
	user.VerificationToken = verificationToken.String
	if verificationExpiresAt.Valid {
		t := verificationExpiresAt.Time
		user.VerificationExpiresAt = &t
	}
	if lockUntil.Valid {
		t := lockUntil.Time
		user.LockUntil = &t
	}
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		user.LastLoginAt = &t
	}

	return user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
