package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthRegister      EventType = "auth.register"
	EventTypeAuthLogin         EventType = "auth.login"
	EventTypeAuthLoginFailed   EventType = "auth.login_failed"
	EventTypeAuthLoginLocked   EventType = "auth.login_locked"
	EventTypeAuthLogout        EventType = "auth.logout"
	EventTypeAuthTokenRefresh  EventType = "auth.token_refresh"
	EventTypeAuthTokenRejected EventType = "auth.token_rejected"
	EventTypeAuthEmailVerified EventType = "auth.email_verified"
	EventTypeAuthEmailVerifyFailed EventType = "auth.email_verify_failed"

	// Account lifecycle events
	EventTypeAccountLocked      EventType = "account.locked"
	EventTypeAccountUnlocked    EventType = "account.unlocked"
	EventTypeAccountSuspended   EventType = "account.suspended"
	EventTypeAccountDeactivated EventType = "account.deactivated"

	// Session events
	EventTypeSessionCreated EventType = "session.created"
	EventTypeSessionRevoked EventType = "session.revoked"
	EventTypeSessionExpired EventType = "session.expired"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being acted on
type ResourceType string

const (
	ResourceTypeUser    ResourceType = "user"
	ResourceTypeSession ResourceType = "session"
	ResourceTypeToken   ResourceType = "token"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	// Core fields
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID *int64 `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	// Additional details
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`

	// Changes tracking (before/after for state transitions)
	Changes *ChangeDetails `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*AuditEvent, error) {
	var event AuditEvent
	err := json.Unmarshal(data, &event)
	return &event, err
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	// Time range
	StartTime *time.Time
	EndTime   *time.Time

	// Actor filters
	UserID *int64
	Email  string

	// Event filters
	EventTypes []EventType
	Status     *EventStatus

	// Request context filters
	IPAddress string

	// Pagination
	Limit  int
	Offset int
}
