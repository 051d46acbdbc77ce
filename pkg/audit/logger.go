// Package audit provides security audit logging for authentication and
// session lifecycle events. Events are written to an append-only
// audit_logs table and are never updated or deleted by the service.
package audit

import (
	"context"
	"time"

	"github.com/casetrail/authd/pkg/observability"
)

// Logger is the interface for audit event sinks
type Logger interface {
	// Log records a single audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Search queries recorded events
	Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error)

	// Close releases any resources held by the logger
	Close() error
}

// NoopLogger discards all events. Used in tests and when audit
// logging is disabled.
type NoopLogger struct{}

func (NoopLogger) Log(ctx context.Context, event *AuditEvent) error { return nil }

func (NoopLogger) Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error) {
	return nil, nil
}

func (NoopLogger) Close() error { return nil }

// requestInfoKey is the context key for request metadata
type requestInfoKey struct{}

// RequestInfo carries request-scoped metadata into audit events
// recorded below the HTTP layer.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// WithRequestInfo attaches request metadata to the context
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// GetRequestInfo retrieves request metadata from the context
func GetRequestInfo(ctx context.Context) RequestInfo {
	if info, ok := ctx.Value(requestInfoKey{}).(RequestInfo); ok {
		return info
	}
	return RequestInfo{}
}

// NewEvent builds an event populated with the timestamp and any
// request metadata present in the context.
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	info := GetRequestInfo(ctx)
	return &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
		RequestID: observability.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
}
