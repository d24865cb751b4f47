// Package reactor implements the reactor/executor (spec component C2):
// a single-worker run loop wrapping pkg/queue, exposing post/run/stop/
// drain. Only one goroutine is ever allowed to drive Run.
package reactor

import (
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/kiosk404/pluginkit/pkg/log"
	"github.com/kiosk404/pluginkit/pkg/queue"
)

// ErrDrained is returned by Post once the reactor has been drained;
// per spec.md §9, work posted after a stop hook begins draining must
// never execute.
var ErrDrained = errors.New("reactor: drained, no longer accepting work")

// ErrAlreadyRunning is returned by Run if called while already running.
var ErrAlreadyRunning = errors.New("reactor: already running")

// Reactor is the single-worker dispatcher. The zero value is not
// usable; construct with New.
type Reactor struct {
	q   *queue.Queue
	log log.Logger

	wake chan struct{}
	stop chan struct{}

	running atomic.Bool
	drained atomic.Bool

	drainGroup singleflight.Group
	stopOnce   sync.Once
}

// New constructs a Reactor. logger may be nil, in which case a discard
// logger is used.
func New(logger log.Logger) *Reactor {
	if logger == nil {
		logger = log.Discard()
	}
	return &Reactor{
		q:    queue.New(),
		log:  logger,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// Post enqueues action at priority and wakes the worker. Thread-safe;
// may be called from any goroutine, including from within a posted
// action.
func (r *Reactor) Post(priority int, action queue.Action) error {
	if r.drained.Load() {
		return ErrDrained
	}
	r.q.Push(priority, action)
	r.signal()
	return nil
}

func (r *Reactor) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run drives the worker loop on the calling goroutine until Stop is
// called or a posted action panics, in which case Run returns the
// recovered panic as an error immediately (without executing further queued
// items) so the caller (the application facade) can run its shutdown
// sequence. Run does not itself drain — callers that want queued items
// discarded must call Drain.
func (r *Reactor) Run() error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	for {
		select {
		case <-r.stop:
			return nil
		default:
		}

		if r.q.Len() == 0 {
			select {
			case <-r.stop:
				return nil
			case <-r.wake:
				continue
			}
		}

		item, more, err := r.q.ExecuteHighest()
		if err != nil {
			r.log.WithField("op", "run").WithField("item", item.ID).Error("task raised: ", err)
			return err
		}
		r.log.WithField("op", "run").WithField("item", item.ID).Debug("dispatched")
		if !more {
			continue
		}
	}
}

// Stop causes Run to return at the next opportunity. Thread-safe, may
// be called from any goroutine including from within a posted action.
func (r *Reactor) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}

// Drain clears the pending queue and marks the reactor as no longer
// accepting work, so that no further user actions execute — including
// ones posted by a plugin's own stop hook (spec.md §9).
//
// Concurrent Drain calls collapse into a single pass via singleflight,
// matching the "quit cancels all remaining queued work atomically"
// guarantee of spec.md §5 even when multiple goroutines race to quit.
func (r *Reactor) Drain() {
	_, _, _ = r.drainGroup.Do("drain", func() (any, error) {
		r.drained.Store(true)
		r.q.Clear()
		return nil, nil
	})
}

// Pending reports the number of queued-but-not-yet-executed items.
func (r *Reactor) Pending() int { return r.q.Len() }
