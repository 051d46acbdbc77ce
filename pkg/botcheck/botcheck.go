// Package botcheck verifies bot-mitigation tokens against an external
// verification endpoint.
package botcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verifier checks a client-supplied bot-mitigation token
type Verifier interface {
	// Verify returns whether the token passed verification. A network
	// or decode error is returned separately so callers can decide
	// whether to fail open or closed.
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// Disabled accepts every request without calling out. Used when bot
// mitigation is turned off.
type Disabled struct{}

func (Disabled) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	return true, nil
}

// HTTPVerifier verifies tokens against a siteverify-style endpoint:
// a form POST with the shared secret and the client token, answered
// with a JSON body carrying a success flag.
type HTTPVerifier struct {
	endpoint string
	secret   string
	client   *http.Client
}

// NewHTTPVerifier creates a verifier for the given endpoint
func NewHTTPVerifier(endpoint, secret string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPVerifier{
		endpoint: endpoint,
		secret:   secret,
		client:   &http.Client{Timeout: timeout},
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// Verify posts the token to the verification endpoint
func (v *HTTPVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if token == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("bot verification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("bot verification returned status %d", resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode verification response: %w", err)
	}

	return body.Success, nil
}
