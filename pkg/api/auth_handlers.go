package api

import (
	"net/http"

	"github.com/casetrail/authd/pkg/auth"
	"github.com/casetrail/authd/pkg/httputil"
	"github.com/casetrail/authd/pkg/observability"
)

// handleRegister handles POST /register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := s.service.Register(r.Context(), auth.RegisterRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Agency:    req.Agency,
		Phone:     req.Phone,
		BotToken:  req.BotToken,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, registerResponse{
		Success:           true,
		Message:           "registration accepted; check your email to verify the account",
		VerificationToken: result.VerificationToken,
	})
}

// handleLogin handles POST /login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := s.service.Login(r.Context(), auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, loginResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    result.Tokens.ExpiresIn,
		User:         result.User,
	})
}

// handleRefresh handles POST /refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := s.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, refreshResponse{
		AccessToken: result.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   result.ExpiresIn,
	})
}

// handleLogout handles POST /logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := httputil.BearerToken(r)
	if token == "" {
		httputil.WriteUnauthorized(w, "missing or malformed authorization header")
		return
	}

	if err := s.service.Logout(r.Context(), token); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, messageResponse{
		Success: true,
		Message: "logged out",
	})
}

// handleVerifyEmail handles POST /verify-email
func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if _, err := s.service.VerifyEmail(r.Context(), req.Token); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, messageResponse{
		Success: true,
		Message: "email verified; the account is now active",
	})
}

// handleMe handles GET /me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	profile, err := s.service.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, profile)
}

// writeServiceError maps service errors onto the error envelope.
// Unrecognized errors are logged with full detail and surfaced to the
// client only as a 500 carrying the request's correlation id.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if auth.IsValidationError(err) {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	switch err {
	case auth.ErrEmailTaken:
		httputil.WriteConflict(w, err.Error())
	case auth.ErrAccountLocked:
		httputil.WriteLocked(w, err.Error())
	case auth.ErrAccountUnverified:
		httputil.WriteForbidden(w, err.Error())
	case auth.ErrInvalidCredentials, auth.ErrAccountDisabled,
		auth.ErrTokenExpired, auth.ErrTokenSignature, auth.ErrTokenMalformed,
		auth.ErrTokenWrongType, auth.ErrTokenRevoked:
		httputil.WriteUnauthorized(w, err.Error())
	case auth.ErrVerificationInvalid, auth.ErrBotCheckFailed:
		httputil.WriteValidationError(w, err.Error())
	case auth.ErrUserNotFound:
		httputil.WriteNotFound(w, err.Error())
	default:
		// FromContext carries the request id and, on authenticated
		// routes, the user id.
		observability.FromContext(r.Context()).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
		httputil.WriteInternalError(w, observability.GetRequestID(r.Context()))
	}
}
