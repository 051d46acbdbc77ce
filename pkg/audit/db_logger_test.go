package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func TestNewDBLogger(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		// Expect the table creation query
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnResult(sqlmock.NewResult(0, 0))

		logger, err := NewDBLogger(db)
		require.NoError(t, err)
		assert.NotNil(t, logger)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil database", func(t *testing.T) {
		logger, err := NewDBLogger(nil)
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "database connection is required")
	})

	t.Run("table creation error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnError(errors.New("table creation failed"))

		logger, err := NewDBLogger(db)
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "failed to ensure audit_logs table")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDBLogger_Log(t *testing.T) {
	t.Run("success - login event", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		logger := &DBLogger{db: db}
		ctx := context.Background()
		userID := int64(123)

		event := &AuditEvent{
			Timestamp:    time.Now().UTC(),
			EventType:    EventTypeAuthLogin,
			Status:       EventStatusSuccess,
			UserID:       &userID,
			Email:        "analyst@example.com",
			ResourceType: ResourceTypeUser,
			ResourceID:   "123",
			IPAddress:    "192.168.1.1",
			UserAgent:    "Mozilla/5.0",
			RequestID:    "req-123",
			Message:      "user logged in",
			Metadata:     map[string]interface{}{"access_tier": "standard"},
		}

		// Use sqlmock.AnyArg() for the JSON fields
		mock.ExpectQuery("INSERT INTO audit_logs").
			WithArgs(
				sqlmock.AnyArg(), event.EventType, event.Status,
				event.UserID, event.Email,
				event.ResourceType, event.ResourceID,
				event.IPAddress, event.UserAgent, event.RequestID,
				event.Message, event.ErrorMessage, sqlmock.AnyArg(), sqlmock.AnyArg(),
			).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		err := logger.Log(ctx, event)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), event.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success - failure event without user", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		logger := &DBLogger{db: db}
		ctx := context.Background()

		event := &AuditEvent{
			Timestamp:    time.Now().UTC(),
			EventType:    EventTypeAuthLoginFailed,
			Status:       EventStatusFailure,
			Email:        "unknown@example.com",
			IPAddress:    "10.0.0.7",
			ErrorMessage: "invalid credentials",
		}

		mock.ExpectQuery("INSERT INTO audit_logs").
			WithArgs(
				sqlmock.AnyArg(), event.EventType, event.Status,
				nil, event.Email,
				event.ResourceType, event.ResourceID,
				event.IPAddress, event.UserAgent, event.RequestID,
				event.Message, event.ErrorMessage, sqlmock.AnyArg(), sqlmock.AnyArg(),
			).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

		err := logger.Log(ctx, event)
		assert.NoError(t, err)
		assert.Equal(t, int64(2), event.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		logger := &DBLogger{db: db}

		event := &AuditEvent{
			Timestamp: time.Now().UTC(),
			EventType: EventTypeAuthLogout,
			Status:    EventStatusSuccess,
		}

		mock.ExpectQuery("INSERT INTO audit_logs").WillReturnError(errors.New("connection lost"))

		err := logger.Log(context.Background(), event)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert audit log")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDBLogger_Search(t *testing.T) {
	t.Run("filter by user and event types", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		logger := &DBLogger{db: db}
		userID := int64(42)

		rows := sqlmock.NewRows([]string{
			"id", "timestamp", "event_type", "status",
			"user_id", "email",
			"resource_type", "resource_id",
			"ip_address", "user_agent", "request_id",
			"message", "error_message", "metadata", "changes",
		}).AddRow(
			int64(7), time.Now().UTC(), string(EventTypeAuthLoginFailed), string(EventStatusFailure),
			userID, "analyst@example.com",
			"user", "42",
			"10.0.0.1", "curl/8.0", "req-7",
			"", "invalid credentials", []byte(`{"attempt":3}`), nil,
		)

		mock.ExpectQuery("SELECT (.+) FROM audit_logs").
			WillReturnRows(rows)

		events, err := logger.Search(context.Background(), SearchFilter{
			UserID:     &userID,
			EventTypes: []EventType{EventTypeAuthLoginFailed},
			Limit:      10,
		})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeAuthLoginFailed, events[0].EventType)
		assert.Equal(t, "invalid credentials", events[0].ErrorMessage)
		assert.Equal(t, float64(3), events[0].Metadata["attempt"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		logger := &DBLogger{db: db}

		mock.ExpectQuery("SELECT (.+) FROM audit_logs").WillReturnError(errors.New("syntax error"))

		events, err := logger.Search(context.Background(), SearchFilter{})
		assert.Error(t, err)
		assert.Nil(t, events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNewEvent(t *testing.T) {
	ctx := WithRequestInfo(context.Background(), RequestInfo{
		IPAddress: "203.0.113.9",
		UserAgent: "test-agent",
	})

	event := NewEvent(ctx, EventTypeAuthRegister, EventStatusSuccess)
	assert.Equal(t, EventTypeAuthRegister, event.EventType)
	assert.Equal(t, EventStatusSuccess, event.Status)
	assert.Equal(t, "203.0.113.9", event.IPAddress)
	assert.Equal(t, "test-agent", event.UserAgent)
	assert.False(t, event.Timestamp.IsZero())
	assert.NotNil(t, event.Metadata)
}
