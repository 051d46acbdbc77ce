// Package mailer delivers verification emails. The service treats
// delivery as best-effort; the default implementation only logs.
package mailer

import (
	"context"

	"github.com/casetrail/authd/pkg/observability"
)

// Sender delivers account emails to users
type Sender interface {
	// SendVerification delivers the email verification token
	SendVerification(ctx context.Context, email, token string) error
}

// LogSender writes deliveries to the structured log instead of
// sending email. Used in development and as the default when no real
// transport is configured.
type LogSender struct {
	log *observability.Logger
}

// NewLogSender creates a log-only sender
func NewLogSender(log *observability.Logger) *LogSender {
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &LogSender{log: log}
}

func (s *LogSender) SendVerification(ctx context.Context, email, token string) error {
	s.log.WithFields(map[string]interface{}{
		"email": email,
		"token": token,
	}).Info("verification email (log delivery)")
	return nil
}
