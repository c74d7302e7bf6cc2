// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/accounts/internal/account"
)

// Delivery results reported to the result hook.
const (
	ResultSent     = "sent"
	ResultFailed   = "failed"
	ResultDropped  = "dropped"
	ResultDisabled = "disabled"
)

// Dispatcher defaults.
const (
	DefaultQueueSize    = 64
	DefaultRetryBackoff = time.Second
)

// ErrDispatcherClosed is returned by Notify after Close.
var ErrDispatcherClosed = errors.New("notification dispatcher closed")

// ResultHook observes the outcome of every event handed to a Dispatcher.
type ResultHook func(kind account.EventKind, result string)

type job struct {
	ctx   context.Context
	event account.Event
}

// Dispatcher is an account.Notifier that queues events and delivers them
// on a single background worker. Notify never blocks: a full queue drops
// the event and returns an error.
type Dispatcher struct {
	next    account.Notifier
	logger  *slog.Logger
	onDone  ResultHook
	retries uint64
	backoff time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan job

	abortCtx context.Context
	abort    context.CancelFunc
	done     chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize sets how many events may wait for delivery.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan job, n)
		}
	}
}

// WithRetries sets how many times a failed delivery is retried.
// Zero means a failure is final.
func WithRetries(n uint64) DispatcherOption {
	return func(d *Dispatcher) { d.retries = n }
}

// WithRetryBackoff sets the base of the exponential retry backoff.
func WithRetryBackoff(base time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if base > 0 {
			d.backoff = base
		}
	}
}

// WithDispatcherLogger sets the logger for delivery failures.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithResultHook registers fn to observe delivery outcomes.
func WithResultHook(fn ResultHook) DispatcherOption {
	return func(d *Dispatcher) { d.onDone = fn }
}

// NewDispatcher starts a Dispatcher delivering through next.
// Callers must Close it to stop the worker.
func NewDispatcher(next account.Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		next:    next,
		logger:  slog.Default(),
		onDone:  func(account.EventKind, string) {},
		backoff: DefaultRetryBackoff,
		queue:   make(chan job, DefaultQueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.abortCtx, d.abort = context.WithCancel(context.Background())

	go d.run()
	return d
}

// Notify queues event for delivery. The delivery outlives ctx's
// cancellation but keeps its values.
func (d *Dispatcher) Notify(ctx context.Context, event account.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return oops.Code("MAIL_DISPATCHER_CLOSED").With("kind", string(event.Kind)).Wrap(ErrDispatcherClosed)
	}

	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		d.onDone(event.Kind, ResultDropped)
		return oops.Code("MAIL_QUEUE_FULL").
			With("kind", string(event.Kind)).
			With("capacity", cap(d.queue)).
			Errorf("notification queue full, event dropped")
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
// If ctx ends first, in-flight and queued deliveries are abandoned and
// Close returns once the worker exits.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	select {
	case <-d.done:
		d.abort()
		return nil
	case <-ctx.Done():
		d.abort()
		<-d.done
		return oops.Code("MAIL_DRAIN_TIMEOUT").Wrap(ctx.Err())
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.queue {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(d.abortCtx, cancel)
	defer stop()

	backoff := retry.WithMaxRetries(d.retries, retry.NewExponential(d.backoff))
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := d.next.Notify(ctx, j.event)
		if err == nil || errors.Is(err, ErrNotConfigured) {
			return err
		}
		return retry.RetryableError(err)
	})

	switch {
	case err == nil:
		d.onDone(j.event.Kind, ResultSent)
	case errors.Is(err, ErrNotConfigured):
		d.onDone(j.event.Kind, ResultDisabled)
		d.logger.WarnContext(ctx, "best-effort notification skipped",
			"operation", "deliver",
			"kind", string(j.event.Kind),
			"error", err)
	default:
		d.onDone(j.event.Kind, ResultFailed)
		d.logger.WarnContext(ctx, "best-effort notification delivery failed",
			"operation", "deliver",
			"kind", string(j.event.Kind),
			"to", j.event.To,
			"attempts", attempts,
			"error", err)
	}
}

var _ account.Notifier = (*Dispatcher)(nil)
