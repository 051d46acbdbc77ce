package api

import "github.com/casetrail/authd/pkg/auth"

// registerRequest is the POST /register body
type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Agency    string `json:"agency,omitempty"`
	Phone     string `json:"phone,omitempty"`
	BotToken  string `json:"bot_token,omitempty"`
}

// registerResponse is the POST /register reply
type registerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// VerificationToken is present only when the service is configured
	// to return it directly (non-production environments).
	VerificationToken string `json:"verificationToken,omitempty"`
}

// loginRequest is the POST /login body
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the POST /login reply
type loginResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int64            `json:"expires_in"`
	User         auth.UserProfile `json:"user"`
}

// refreshRequest is the POST /refresh body
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refreshResponse is the POST /refresh reply
type refreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// verifyEmailRequest is the POST /verify-email body
type verifyEmailRequest struct {
	Token string `json:"token"`
}

// messageResponse is a generic success reply
type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
