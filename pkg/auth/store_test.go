package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func userRow(id int64, email string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "first_name", "last_name", "agency", "phone",
		"access_tier", "admin_level", "account_status", "email_verified", "mfa_enabled",
		"verification_token", "verification_expires_at",
		"failed_login_attempts", "lock_until", "last_login_at",
		"created_at", "updated_at",
	}).AddRow(
		id, email, "$2a$12$hash", "Ada", "Lovelace", "OCME", "",
		"standard", "none", string(StatusActive), true, false,
		nil, nil,
		0, nil, nil,
		now, now,
	)
}

func TestStore_CreateUser(t *testing.T) {
	t.Run("success normalizes email", func(t *testing.T) {
		store, mock := setupStore(t)
		now := time.Now().UTC()

		mock.ExpectQuery("INSERT INTO users").
			WithArgs(
				"ada@example.com", "$2a$12$hash", "Ada", "Lovelace", "", "",
				"standard", "none", StatusPendingVerification, false, false,
				sqlmock.AnyArg(), sqlmock.AnyArg(),
			).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, now, now))

		expiry := now.Add(24 * time.Hour)
		user := &User{
			Email:                 "Ada@Example.COM",
			PasswordHash:          "$2a$12$hash",
			FirstName:             "Ada",
			LastName:              "Lovelace",
			AccessTier:            "standard",
			AdminLevel:            "none",
			Status:                StatusPendingVerification,
			VerificationToken:     "tok-verify",
			VerificationExpiresAt: &expiry,
		}

		err := store.CreateUser(context.Background(), user)
		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		assert.Equal(t, "ada@example.com", user.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectQuery("INSERT INTO users").
			WillReturnError(&pq.Error{Code: "23505"})

		err := store.CreateUser(context.Background(), &User{Email: "taken@example.com"})
		assert.ErrorIs(t, err, ErrEmailTaken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_GetUserByEmail(t *testing.T) {
	t.Run("found, lookup is lowercased", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
			WithArgs("ada@example.com").
			WillReturnRows(userRow(1, "ada@example.com"))

		user, err := store.GetUserByEmail(context.Background(), "Ada@Example.COM")
		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		assert.Equal(t, StatusActive, user.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
			WillReturnError(sql.ErrNoRows)

		_, err := store.GetUserByEmail(context.Background(), "nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestStore_ConsumeVerificationToken(t *testing.T) {
	t.Run("valid token activates account", func(t *testing.T) {
		store, mock := setupStore(t)
		now := time.Now().UTC()

		mock.ExpectQuery("UPDATE users").
			WithArgs("tok-verify", StatusActive, now).
			WillReturnRows(userRow(5, "ada@example.com"))

		user, err := store.ConsumeVerificationToken(context.Background(), "tok-verify", now)
		require.NoError(t, err)
		assert.Equal(t, int64(5), user.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown or expired token", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectQuery("UPDATE users").
			WillReturnError(sql.ErrNoRows)

		_, err := store.ConsumeVerificationToken(context.Background(), "bogus", time.Now().UTC())
		assert.ErrorIs(t, err, ErrVerificationInvalid)
	})
}

func TestStore_RecordLoginFailure(t *testing.T) {
	t.Run("below threshold", func(t *testing.T) {
		store, mock := setupStore(t)
		lockUntil := time.Now().UTC().Add(30 * time.Minute)

		mock.ExpectQuery("UPDATE users").
			WithArgs(int64(1), 5, lockUntil).
			WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts", "lock_until"}).AddRow(3, nil))

		failures, locked, err := store.RecordLoginFailure(context.Background(), 1, 5, lockUntil)
		require.NoError(t, err)
		assert.Equal(t, 3, failures)
		assert.Nil(t, locked)
	})

	t.Run("threshold crossed sets lock", func(t *testing.T) {
		store, mock := setupStore(t)
		lockUntil := time.Now().UTC().Add(30 * time.Minute)

		mock.ExpectQuery("UPDATE users").
			WithArgs(int64(1), 5, lockUntil).
			WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts", "lock_until"}).AddRow(5, lockUntil))

		failures, locked, err := store.RecordLoginFailure(context.Background(), 1, 5, lockUntil)
		require.NoError(t, err)
		assert.Equal(t, 5, failures)
		require.NotNil(t, locked)
		assert.WithinDuration(t, lockUntil, *locked, time.Second)
	})

	t.Run("unknown user", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectQuery("UPDATE users").
			WillReturnError(sql.ErrNoRows)

		_, _, err := store.RecordLoginFailure(context.Background(), 99, 5, time.Now())
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestStore_ResetLoginFailures(t *testing.T) {
	store, mock := setupStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE users").
		WithArgs(int64(1), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.ResetLoginFailures(context.Background(), 1, now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateSession(t *testing.T) {
	store, mock := setupStore(t)
	now := time.Now().UTC()
	expires := now.Add(7 * 24 * time.Hour)

	mock.ExpectQuery("INSERT INTO sessions").
		WithArgs(int64(1), "deadbeef", "10.0.0.1", "curl/8.0", true, expires).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, now))

	session := &Session{
		UserID:    1,
		TokenHash: "deadbeef",
		IPAddress: "10.0.0.1",
		UserAgent: "curl/8.0",
		Active:    true,
		ExpiresAt: expires,
	}

	err := store.CreateSession(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, int64(11), session.ID)
}

func TestStore_DeactivateSessions(t *testing.T) {
	t.Run("by user", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectExec("UPDATE sessions SET active").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 2))

		n, err := store.DeactivateUserSessions(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("expired", func(t *testing.T) {
		store, mock := setupStore(t)
		now := time.Now().UTC()

		mock.ExpectExec("UPDATE sessions SET active").
			WithArgs(now).
			WillReturnResult(sqlmock.NewResult(0, 7))

		n, err := store.DeactivateExpiredSessions(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
	})
}
