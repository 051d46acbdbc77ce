package auth

import "errors"

// Sentinel errors returned by the auth service. Handlers map these to
// HTTP status codes; the messages are safe to return to clients.
var (
	// Credential errors
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account temporarily locked due to repeated failed logins")
	ErrAccountUnverified  = errors.New("email address has not been verified")
	ErrAccountDisabled    = errors.New("account is not active")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrUserNotFound       = errors.New("user not found")

	// Token errors
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenSignature = errors.New("token signature is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenWrongType = errors.New("token is not valid for this operation")
	ErrTokenRevoked   = errors.New("token has been revoked")

	// Verification errors
	ErrVerificationInvalid = errors.New("verification token is invalid or expired")

	// Bot mitigation
	ErrBotCheckFailed = errors.New("request failed bot verification")
)

// ValidationError describes rejected input. The message is safe to
// return to clients.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// NewValidationError creates a client-safe validation error
func NewValidationError(msg string) error {
	return &ValidationError{msg: msg}
}

// IsValidationError reports whether err is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
