package auth

import (
	"context"
	"time"

	"github.com/casetrail/authd/pkg/observability"
)

// ActiveSessionCounter counts non-expired active session rows.
type ActiveSessionCounter interface {
	CountActiveSessions(ctx context.Context, now time.Time) (int64, error)
}

// ReportActiveSessions keeps the active-session gauge in sync with the
// sessions table. It refreshes once immediately, then on every interval
// tick until the context is cancelled.
func ReportActiveSessions(ctx context.Context, counter ActiveSessionCounter, metrics *observability.Metrics, log *observability.Logger, interval time.Duration) {
	refreshSessionGauge(ctx, counter, metrics, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshSessionGauge(ctx, counter, metrics, log)
		}
	}
}

// refreshSessionGauge leaves the gauge at its last good value when the
// count fails.
func refreshSessionGauge(ctx context.Context, counter ActiveSessionCounter, metrics *observability.Metrics, log *observability.Logger) {
	active, err := counter.CountActiveSessions(ctx, time.Now().UTC())
	if err != nil {
		log.WithError(err).Error("failed to count active sessions")
		return
	}
	metrics.SessionsActive.Set(float64(active))
}
