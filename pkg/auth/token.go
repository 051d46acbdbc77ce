package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes access tokens from refresh tokens
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims is the JWT claim set for both token kinds. TokenType is
// mandatory and every consumer must check it so that a refresh token
// cannot be replayed where an access token is expected, and vice versa.
type Claims struct {
	jwt.RegisteredClaims
	UserID     int64     `json:"user_id"`
	Email      string    `json:"email"`
	AccessTier string    `json:"access_tier,omitempty"`
	AdminLevel string    `json:"admin_level,omitempty"`
	TokenType  TokenKind `json:"type"`
}

// TokenCodec issues and verifies HMAC-signed JWTs with a single
// shared secret.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenCodec creates a codec signing with the given secret
func NewTokenCodec(secret []byte, accessTTL, refreshTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// AccessTTL returns the configured access token lifetime
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess issues a short-lived access token carrying the user's
// identity, tier, and admin level.
func (c *TokenCodec) IssueAccess(user *User) (string, error) {
	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
		UserID:     user.ID,
		Email:      user.Email,
		AccessTier: user.AccessTier,
		AdminLevel: user.AdminLevel,
		TokenType:  TokenKindAccess,
	}
	return c.sign(claims)
}

// IssueRefresh issues a long-lived refresh token carrying only the
// user's identity.
func (c *TokenCodec) IssueRefresh(user *User) (string, error) {
	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
		UserID:    user.ID,
		Email:     user.Email,
		TokenType: TokenKindRefresh,
	}
	return c.sign(claims)
}

func (c *TokenCodec) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, requiring the given kind.
// Returns ErrTokenExpired, ErrTokenSignature, ErrTokenMalformed, or
// ErrTokenWrongType on failure.
func (c *TokenCodec) Verify(tokenString string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}

	if !token.Valid {
		return nil, ErrTokenSignature
	}

	if claims.TokenType != kind {
		return nil, ErrTokenWrongType
	}

	return claims, nil
}
