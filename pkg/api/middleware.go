package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/casetrail/authd/pkg/audit"
	"github.com/casetrail/authd/pkg/auth"
	"github.com/casetrail/authd/pkg/httputil"
	"github.com/casetrail/authd/pkg/observability"
)

// withRequestInfo attaches client metadata to the context so the
// service layer can stamp audit events without seeing the request.
func withRequestInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := audit.WithRequestInfo(r.Context(), audit.RequestInfo{
			IPAddress: httputil.ClientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// claimsKey is the context key for authenticated token claims
type claimsKey struct{}

// ClaimsFromContext retrieves the authenticated claims, if any
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}

// RequireAuth rejects requests without a valid, unrevoked access
// token and stores the claims in the request context.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := httputil.BearerToken(r)
		if token == "" {
			httputil.WriteUnauthorized(w, "missing or malformed authorization header")
			return
		}

		claims, err := s.service.Authenticate(r.Context(), token)
		if err != nil {
			httputil.WriteUnauthorized(w, authErrorMessage(err))
			return
		}

		ctx := observability.WithUserID(r.Context(), strconv.FormatInt(claims.UserID, 10))
		ctx = context.WithValue(ctx, claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authErrorMessage returns the client-facing message for a token
// validation failure. All token errors carry safe messages.
func authErrorMessage(err error) string {
	switch err {
	case auth.ErrTokenExpired, auth.ErrTokenSignature, auth.ErrTokenMalformed,
		auth.ErrTokenWrongType, auth.ErrTokenRevoked:
		return err.Error()
	default:
		return "invalid or expired token"
	}
}
