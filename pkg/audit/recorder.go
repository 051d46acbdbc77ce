package audit

import (
	"context"
	"time"

	"github.com/casetrail/authd/pkg/observability"
)

// Recorder writes audit events asynchronously so that a slow or failing
// audit sink never blocks or fails the request being audited. Failures
// are logged and dropped.
type Recorder struct {
	sink    Logger
	log     *observability.Logger
	timeout time.Duration
}

// NewRecorder wraps an audit sink with fire-and-forget semantics
func NewRecorder(sink Logger, log *observability.Logger) *Recorder {
	if sink == nil {
		sink = NoopLogger{}
	}
	return &Recorder{
		sink:    sink,
		log:     log,
		timeout: 5 * time.Second,
	}
}

// Record submits an event for asynchronous persistence. The write uses
// a context detached from the request so that it completes even when
// the caller's request has already finished.
func (r *Recorder) Record(ctx context.Context, event *AuditEvent) {
	detached := context.WithoutCancel(ctx)

	go func() {
		defer observability.RecoverPanic(r.log, "audit record")

		writeCtx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()

		if err := r.sink.Log(writeCtx, event); err != nil {
			r.log.WithError(err).
				WithField("event_type", string(event.EventType)).
				Error("failed to record audit event")
		}
	}()
}

// Close flushes and closes the underlying sink
func (r *Recorder) Close() error {
	return r.sink.Close()
}
