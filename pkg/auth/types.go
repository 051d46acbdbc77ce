// Package auth implements the credential and session lifecycle layer:
// registration, login with brute-force lockout, JWT issuance and
// verification, refresh, revocation, and email verification.
package auth

import (
	"time"
)

// AccountStatus represents the lifecycle state of a user account
type AccountStatus string

const (
	StatusPendingVerification AccountStatus = "pending_verification"
	StatusActive              AccountStatus = "active"
	StatusSuspended           AccountStatus = "suspended"
	StatusDeactivated         AccountStatus = "deactivated"
)

// User is the identity record persisted in the users table.
// Invariants: email is globally unique and stored lowercased;
// StatusPendingVerification implies EmailVerified == false; LockUntil
// is set only when FailedLoginAttempts crosses the lockout threshold
// and cleared on the next successful login.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Agency       string
	Phone        string

	// Role/tier values are opaque strings passed through to tokens
	AccessTier string
	AdminLevel string

	Status        AccountStatus
	EmailVerified bool
	MFAEnabled    bool

	VerificationToken     string
	VerificationExpiresAt *time.Time

	FailedLoginAttempts int
	LockUntil           *time.Time
	LastLoginAt         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocked reports whether the account is locked out at the given time
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && now.Before(*u.LockUntil)
}

// Session records an issued refresh credential lineage for a user.
// Rows are deactivated rather than deleted.
type Session struct {
	ID        int64
	UserID    int64
	TokenHash string
	IPAddress string
	UserAgent string
	Active    bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// CachedToken is the cache value stored per issued token. Presence of
// the entry is the revocation check: a token with a valid signature
// whose entry is gone is treated as revoked or expired.
type CachedToken struct {
	UserID     int64  `json:"user_id"`
	AccessTier string `json:"access_tier"`
}

// UserProfile is the public view of a user returned by the API
type UserProfile struct {
	ID            int64   `json:"id"`
	Email         string  `json:"email"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Agency        string  `json:"agency,omitempty"`
	AccessTier    string  `json:"access_tier"`
	AdminLevel    string  `json:"admin_level"`
	Status        string  `json:"status"`
	EmailVerified bool    `json:"email_verified"`
	MFAEnabled    bool    `json:"mfa_enabled"`
	LastLoginAt   *string `json:"last_login_at,omitempty"`
}

// Profile returns the public view of the user
func (u *User) Profile() UserProfile {
	p := UserProfile{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Agency:        u.Agency,
		AccessTier:    u.AccessTier,
		AdminLevel:    u.AdminLevel,
		Status:        string(u.Status),
		EmailVerified: u.EmailVerified,
		MFAEnabled:    u.MFAEnabled,
	}
	if u.LastLoginAt != nil {
		s := u.LastLoginAt.UTC().Format(time.RFC3339)
		p.LastLoginAt = &s
	}
	return p
}

// TokenPair is the result of a successful login
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access token lifetime in seconds
}
