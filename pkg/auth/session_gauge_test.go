package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/casetrail/authd/pkg/observability"
)

type staticSessionCounter struct {
	count int64
	err   error
}

func (c staticSessionCounter) CountActiveSessions(ctx context.Context, now time.Time) (int64, error) {
	return c.count, c.err
}

func TestReportActiveSessions(t *testing.T) {
	log := observability.NewLogger(observability.ErrorLevel, io.Discard)

	// A cancelled context stops the loop after the initial refresh.
	t.Run("sets the gauge", func(t *testing.T) {
		metrics := observability.NewMetrics(prometheus.NewRegistry())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		ReportActiveSessions(ctx, staticSessionCounter{count: 7}, metrics, log, time.Hour)

		assert.Equal(t, float64(7), testutil.ToFloat64(metrics.SessionsActive))
	})

	t.Run("count failure keeps the last value", func(t *testing.T) {
		metrics := observability.NewMetrics(prometheus.NewRegistry())
		metrics.SessionsActive.Set(3)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		ReportActiveSessions(ctx, staticSessionCounter{err: errors.New("db down")}, metrics, log, time.Hour)

		assert.Equal(t, float64(3), testutil.ToFloat64(metrics.SessionsActive))
	})
}
