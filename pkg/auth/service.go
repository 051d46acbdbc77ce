package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/casetrail/authd/pkg/audit"
	"github.com/casetrail/authd/pkg/botcheck"
	"github.com/casetrail/authd/pkg/mailer"
	"github.com/casetrail/authd/pkg/observability"
)

// MinPasswordLength is the minimum accepted password length
const MinPasswordLength = 8

// CredentialStore is the persistence interface the service depends on
type CredentialStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*User, error)
	RecordLoginFailure(ctx context.Context, userID int64, threshold int, lockUntil time.Time) (int, *time.Time, error)
	ResetLoginFailures(ctx context.Context, userID int64, now time.Time) error
	CreateSession(ctx context.Context, session *Session) error
	DeactivateUserSessions(ctx context.Context, userID int64) (int64, error)
}

// SessionCache is the token cache interface the service depends on
type SessionCache interface {
	PutAccess(ctx context.Context, token string, value CachedToken, ttl time.Duration) error
	PutRefresh(ctx context.Context, token string, value CachedToken, ttl time.Duration) error
	GetAccess(ctx context.Context, token string) (*CachedToken, error)
	GetRefresh(ctx context.Context, token string) (*CachedToken, error)
	DeleteAccess(ctx context.Context, token string) error
	DeleteRefresh(ctx context.Context, token string) error
}

// Service implements the credential and session lifecycle operations
type Service struct {
	store    CredentialStore
	cache    SessionCache
	hasher   *PasswordHasher
	codec    *TokenCodec
	lockout  LockoutPolicy
	recorder *audit.Recorder
	botcheck botcheck.Verifier
	mailer   mailer.Sender
	metrics  *observability.Metrics
	log      *observability.Logger

	verificationTTL time.Duration
	// returnVerificationToken echoes the verification token in the
	// register result instead of relying solely on email delivery.
	// Off in production.
	returnVerificationToken bool

	now func() time.Time
}

// ServiceOptions configures a Service
type ServiceOptions struct {
	Store    CredentialStore
	Cache    SessionCache
	Hasher   *PasswordHasher
	Codec    *TokenCodec
	Lockout  LockoutPolicy
	Recorder *audit.Recorder
	BotCheck botcheck.Verifier
	Mailer   mailer.Sender
	Metrics  *observability.Metrics
	Logger   *observability.Logger

	VerificationTTL         time.Duration
	ReturnVerificationToken bool
}

// NewService creates the auth service
func NewService(opts ServiceOptions) *Service {
	if opts.Hasher == nil {
		opts.Hasher = NewPasswordHasher(DefaultBcryptCost)
	}
	if opts.Lockout.Threshold == 0 {
		opts.Lockout = DefaultLockoutPolicy()
	}
	if opts.BotCheck == nil {
		opts.BotCheck = botcheck.Disabled{}
	}
	if opts.Mailer == nil {
		opts.Mailer = mailer.NewLogSender(opts.Logger)
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.Recorder == nil {
		opts.Recorder = audit.NewRecorder(audit.NoopLogger{}, opts.Logger)
	}
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = 24 * time.Hour
	}

	return &Service{
		store:                   opts.Store,
		cache:                   opts.Cache,
		hasher:                  opts.Hasher,
		codec:                   opts.Codec,
		lockout:                 opts.Lockout,
		recorder:                opts.Recorder,
		botcheck:                opts.BotCheck,
		mailer:                  opts.Mailer,
		metrics:                 opts.Metrics,
		log:                     opts.Logger,
		verificationTTL:         opts.VerificationTTL,
		returnVerificationToken: opts.ReturnVerificationToken,
		now:                     time.Now,
	}
}

// RegisterRequest carries the registration input
type RegisterRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Agency    string
	Phone     string
	BotToken  string
}

// RegisterResult is the outcome of a successful registration
type RegisterResult struct {
	User *User
	// VerificationToken is populated only when the service is
	// configured to return it directly.
	VerificationToken string
}

// Register creates a new account in pending_verification state and
// generates a single-use email verification token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	// Bot verification happens before any store access
	ok, err := s.botcheck.Verify(ctx, req.BotToken, audit.GetRequestInfo(ctx).IPAddress)
	if err != nil {
		s.log.WithError(err).Warn("bot verification call failed")
		return nil, ErrBotCheckFailed
	}
	if !ok {
		return nil, ErrBotCheckFailed
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	verificationToken := uuid.NewString()
	expiresAt := now.Add(s.verificationTTL)

	user := &User{
		Email:                 strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:          hash,
		FirstName:             strings.TrimSpace(req.FirstName),
		LastName:              strings.TrimSpace(req.LastName),
		Agency:                strings.TrimSpace(req.Agency),
		Phone:                 strings.TrimSpace(req.Phone),
		AccessTier:            "standard",
		AdminLevel:            "none",
		Status:                StatusPendingVerification,
		EmailVerified:         false,
		VerificationToken:     verificationToken,
		VerificationExpiresAt: &expiresAt,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if err == ErrEmailTaken {
			s.countRegistration("failure")
			return nil, err
		}
		s.countRegistration("failure")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	event := audit.NewEvent(ctx, audit.EventTypeAuthRegister, audit.EventStatusSuccess)
	event.UserID = &user.ID
	event.Email = user.Email
	event.ResourceType = audit.ResourceTypeUser
	event.ResourceID = fmt.Sprintf("%d", user.ID)
	s.recorder.Record(ctx, event)

	s.countRegistration("success")

	if err := s.mailer.SendVerification(ctx, user.Email, verificationToken); err != nil {
		// Delivery failure is not fatal; the user can re-request.
		s.log.WithError(err).WithField("email", user.Email).Error("failed to send verification email")
	}

	result := &RegisterResult{User: user}
	if s.returnVerificationToken {
		result.VerificationToken = verificationToken
	}
	return result, nil
}

// LoginRequest carries the login input
type LoginRequest struct {
	Email    string
	Password string
}

// LoginResult is the outcome of a successful login
type LoginResult struct {
	Tokens TokenPair
	User   UserProfile
}

// Login authenticates a user, enforcing lockout and verification
// checks in order, and issues an access/refresh token pair.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, NewValidationError("email and password are required")
	}

	now := s.now().UTC()

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if err == ErrUserNotFound {
			s.auditLoginFailure(ctx, nil, email, "unknown email")
			s.countLogin("failure")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// Lockout check comes first so attackers cannot probe passwords
	// on a locked account.
	if user.IsLocked(now) {
		event := audit.NewEvent(ctx, audit.EventTypeAuthLoginLocked, audit.EventStatusDenied)
		event.UserID = &user.ID
		event.Email = user.Email
		s.recorder.Record(ctx, event)
		s.countLogin("locked")
		return nil, ErrAccountLocked
	}

	if !user.EmailVerified {
		event := audit.NewEvent(ctx, audit.EventTypeAuthLoginFailed, audit.EventStatusDenied)
		event.UserID = &user.ID
		event.Email = user.Email
		event.ErrorMessage = "email not verified"
		s.recorder.Record(ctx, event)
		s.countLogin("unverified")
		return nil, ErrAccountUnverified
	}

	if user.Status != StatusActive {
		event := audit.NewEvent(ctx, audit.EventTypeAuthLoginFailed, audit.EventStatusDenied)
		event.UserID = &user.ID
		event.Email = user.Email
		event.ErrorMessage = "account is " + string(user.Status)
		s.recorder.Record(ctx, event)
		s.countLogin("failure")
		return nil, ErrAccountDisabled
	}

	if !s.hasher.Verify(user.PasswordHash, req.Password) {
		failures, lockedUntil, ferr := s.store.RecordLoginFailure(ctx, user.ID, s.lockout.Threshold, s.lockout.LockUntil(now))
		if ferr != nil {
			s.log.WithError(ferr).WithField("user_id", user.ID).Error("failed to record login failure")
		}

		event := audit.NewEvent(ctx, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure)
		event.UserID = &user.ID
		event.Email = user.Email
		event.ErrorMessage = "wrong password"
		event.Metadata["failed_attempts"] = failures
		s.recorder.Record(ctx, event)

		if lockedUntil != nil {
			lockEvent := audit.NewEvent(ctx, audit.EventTypeAccountLocked, audit.EventStatusSuccess)
			lockEvent.UserID = &user.ID
			lockEvent.Email = user.Email
			lockEvent.Metadata["lock_until"] = lockedUntil.UTC().Format(time.RFC3339)
			s.recorder.Record(ctx, lockEvent)
		}

		s.countLogin("failure")
		return nil, ErrInvalidCredentials
	}

	if err := s.store.ResetLoginFailures(ctx, user.ID, now); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("failed to reset login failures")
	}
	user.FailedLoginAttempts = 0
	user.LockUntil = nil
	user.LastLoginAt = &now

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	event := audit.NewEvent(ctx, audit.EventTypeAuthLogin, audit.EventStatusSuccess)
	event.UserID = &user.ID
	event.Email = user.Email
	event.ResourceType = audit.ResourceTypeSession
	s.recorder.Record(ctx, event)

	s.countLogin("success")

	return &LoginResult{
		Tokens: *tokens,
		User:   user.Profile(),
	}, nil
}

// issueTokens creates the access/refresh pair, caches both, and
// records the session row.
func (s *Service) issueTokens(ctx context.Context, user *User) (*TokenPair, error) {
	accessToken, err := s.codec.IssueAccess(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refreshToken, err := s.codec.IssueRefresh(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	cached := CachedToken{UserID: user.ID, AccessTier: user.AccessTier}
	if err := s.cache.PutAccess(ctx, accessToken, cached, s.codec.AccessTTL()); err != nil {
		return nil, fmt.Errorf("failed to cache access token: %w", err)
	}
	if err := s.cache.PutRefresh(ctx, refreshToken, cached, s.codec.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("failed to cache refresh token: %w", err)
	}

	info := audit.GetRequestInfo(ctx)
	session := &Session{
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
		Active:    true,
		ExpiresAt: s.now().UTC().Add(s.codec.RefreshTTL()),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

// RefreshResult is the outcome of a token refresh
type RefreshResult struct {
	AccessToken string
	ExpiresIn   int64
}

// Refresh exchanges a valid refresh token for a new access token.
// The refresh token itself is not rotated. Absence of the cache entry
// means the token was revoked or has expired, regardless of signature.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, NewValidationError("refresh token is required")
	}

	claims, err := s.codec.Verify(refreshToken, TokenKindRefresh)
	if err != nil {
		s.countRefresh("failure")
		return nil, err
	}

	cached, err := s.cache.GetRefresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if cached == nil {
		event := audit.NewEvent(ctx, audit.EventTypeAuthTokenRejected, audit.EventStatusDenied)
		event.UserID = &claims.UserID
		event.Email = claims.Email
		event.ErrorMessage = "refresh token not found or expired"
		s.recorder.Record(ctx, event)
		s.countRefresh("failure")
		return nil, ErrTokenRevoked
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if err == ErrUserNotFound {
			s.countRefresh("failure")
			return nil, ErrTokenRevoked
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user.Status != StatusActive {
		s.countRefresh("failure")
		return nil, ErrAccountDisabled
	}

	accessToken, err := s.codec.IssueAccess(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	if err := s.cache.PutAccess(ctx, accessToken, CachedToken{UserID: user.ID, AccessTier: user.AccessTier}, s.codec.AccessTTL()); err != nil {
		return nil, fmt.Errorf("failed to cache access token: %w", err)
	}

	event := audit.NewEvent(ctx, audit.EventTypeAuthTokenRefresh, audit.EventStatusSuccess)
	event.UserID = &user.ID
	event.Email = user.Email
	s.recorder.Record(ctx, event)

	s.countRefresh("success")

	return &RefreshResult{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the presented access token and deactivates the
// user's sessions. Deleting the cache entry makes the token invalid
// immediately even though its signature stays valid until expiry.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.codec.Verify(accessToken, TokenKindAccess)
	if err != nil {
		return err
	}

	if err := s.cache.DeleteAccess(ctx, accessToken); err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}

	if _, err := s.store.DeactivateUserSessions(ctx, claims.UserID); err != nil {
		s.log.WithError(err).WithField("user_id", claims.UserID).Error("failed to deactivate sessions")
	}

	event := audit.NewEvent(ctx, audit.EventTypeAuthLogout, audit.EventStatusSuccess)
	event.UserID = &claims.UserID
	event.Email = claims.Email
	s.recorder.Record(ctx, event)

	if s.metrics != nil {
		s.metrics.LogoutsTotal.Inc()
	}
	return nil
}

// VerifyEmail consumes a single-use verification token, activating
// the account it belongs to.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, NewValidationError("verification token is required")
	}

	user, err := s.store.ConsumeVerificationToken(ctx, token, s.now().UTC())
	if err != nil {
		if err == ErrVerificationInvalid {
			event := audit.NewEvent(ctx, audit.EventTypeAuthEmailVerifyFailed, audit.EventStatusFailure)
			event.ErrorMessage = "verification token invalid or expired"
			s.recorder.Record(ctx, event)
			s.countVerification("failure")
		}
		return nil, err
	}

	event := audit.NewEvent(ctx, audit.EventTypeAuthEmailVerified, audit.EventStatusSuccess)
	event.UserID = &user.ID
	event.Email = user.Email
	event.Changes = &audit.ChangeDetails{
		Before: map[string]interface{}{"account_status": string(StatusPendingVerification), "email_verified": false},
		After:  map[string]interface{}{"account_status": string(StatusActive), "email_verified": true},
	}
	s.recorder.Record(ctx, event)

	s.countVerification("success")
	return user, nil
}

// Authenticate validates an access token for request authentication.
// A token is valid only while its cache entry exists; logout removes
// the entry.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := s.codec.Verify(accessToken, TokenKindAccess)
	if err != nil {
		return nil, err
	}

	cached, err := s.cache.GetAccess(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to look up access token: %w", err)
	}
	if cached == nil {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// GetProfile returns the public profile for a user id
func (s *Service) GetProfile(ctx context.Context, userID int64) (*UserProfile, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

func validateRegistration(req RegisterRequest) error {
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return NewValidationError("first and last name are required")
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return NewValidationError("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return NewValidationError("email is not valid")
	}
	if len(req.Password) < MinPasswordLength {
		return NewValidationError(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

// hashToken returns a stable fingerprint of a token for session rows,
// so raw refresh tokens are never persisted in Postgres.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Service) auditLoginFailure(ctx context.Context, userID *int64, email, reason string) {
	event := audit.NewEvent(ctx, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure)
	event.UserID = userID
	event.Email = email
	event.ErrorMessage = reason
	s.recorder.Record(ctx, event)
}

func (s *Service) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countRegistration(outcome string) {
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countRefresh(outcome string) {
	if s.metrics != nil {
		s.metrics.TokenRefreshTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countVerification(outcome string) {
	if s.metrics != nil {
		s.metrics.VerificationsTotal.WithLabelValues(outcome).Inc()
	}
}
