// Package errtrack reports unexpected errors to an external tracker.
package errtrack

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// Tracker captures errors with a set of tags.
type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// Compile-time interface checks.
var _ Tracker = (*SentryTracker)(nil)
var _ Tracker = Noop{}

// SentryTracker implements Tracker via Sentry.
type SentryTracker struct {
	hub *sentry.Hub
}

// NewSentry initializes the Sentry SDK and returns a tracker bound to the
// current hub.
func NewSentry(dsn, environment, release string) (*SentryTracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, err
	}
	return &SentryTracker{hub: sentry.CurrentHub()}, nil
}

// CaptureError sends err to Sentry with tags attached to a cloned scope.
func (t *SentryTracker) CaptureError(_ context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	hub.CaptureException(err)
}

// Flush waits for buffered events to be sent.
func (t *SentryTracker) Flush(timeout time.Duration) {
	t.hub.Flush(timeout)
}

// Noop discards everything. Used when no DSN is configured.
type Noop struct{}

// CaptureError does nothing.
func (Noop) CaptureError(context.Context, error, map[string]string) {}

// Flush does nothing.
func (Noop) Flush(time.Duration) {}

// New returns a Sentry tracker when dsn is set, otherwise Noop.
func New(dsn, environment, release string) (Tracker, error) {
	if dsn == "" {
		return Noop{}, nil
	}
	return NewSentry(dsn, environment, release)
}
