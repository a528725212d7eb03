package reconnect

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Status is the connection status reported to observers.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// ErrGaveUp is returned by Run once MaxElapsed passed without a connection.
var ErrGaveUp = errors.New("reconnect: gave up")

// errSessionEnded stands in for a Serve that returned without an error, so
// the session is dialled again.
var errSessionEnded = errors.New("session ended")

// Session is one connection at a time. Dial establishes it and Serve uses it
// until it ends; both are called again for every reconnect.
type Session interface {
	Dial(ctx context.Context) error
	Serve(ctx context.Context) error
}

// Permanent marks err as final: Run returns it instead of reconnecting.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Reconnector keeps a Session connected, waiting Backoff between attempts.
// Retries are unlimited unless MaxElapsed is set.
type Reconnector struct {
	Backoff    Backoff
	MaxElapsed time.Duration
	// OnStatus, when set, is called on every status change with the error
	// that caused a disconnect.
	OnStatus func(status Status, err error)
	// OnRetry, when set, is called before each wait with the delay chosen.
	OnRetry func(err error, delay time.Duration)

	status atomic.Value
	clock  backoff.Clock
	timer  backoff.Timer
}

// New creates a reconnector.
func New(b Backoff, maxElapsed time.Duration) *Reconnector {
	r := &Reconnector{
		Backoff:    b,
		MaxElapsed: maxElapsed,
	}
	r.status.Store(StatusDisconnected)
	return r
}

// Status returns the current status.
func (r *Reconnector) Status() Status {
	if s, ok := r.status.Load().(Status); ok {
		return s
	}
	return StatusDisconnected
}

// Run dials and serves s until ctx is cancelled, s fails permanently or the
// reconnect window closes. The backoff starts over after every session that
// got connected, and the window is measured from when it ended.
func (r *Reconnector) Run(ctx context.Context, s Session) error {
	eb := r.Backoff.exponential(r.MaxElapsed, r.clock)
	policy := backoff.WithContext(eb, ctx)

	permanent := false
	operation := func() error {
		r.report(StatusConnecting, nil)
		if err := s.Dial(ctx); err != nil {
			permanent = isPermanent(err)
			return err
		}

		r.report(StatusConnected, nil)
		err := s.Serve(ctx)
		eb.Reset()
		if err == nil {
			err = errSessionEnded
		}
		permanent = isPermanent(err)
		return err
	}
	notify := func(err error, delay time.Duration) {
		r.report(StatusDisconnected, err)
		if r.OnRetry != nil {
			r.OnRetry(err, delay)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, policy, notify, r.timer)
	r.report(StatusDisconnected, err)

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case permanent:
		return err
	default:
		return fmt.Errorf("%w after %s: %v", ErrGaveUp, r.MaxElapsed, err)
	}
}

func isPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}

func (r *Reconnector) report(status Status, err error) {
	if r.Status() == status && err == nil {
		return
	}
	r.status.Store(status)
	if r.OnStatus != nil {
		r.OnStatus(status, err)
	}
}
