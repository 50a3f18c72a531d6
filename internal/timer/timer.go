// Package timer provides the registration contract with the exact-wakeup
// facility and an in-process implementation of it.
package timer

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Port registers and cancels future wakeup callbacks keyed by alarm id.
// Implementations guarantee at most one pending callback per id; arming an id
// atomically replaces any prior registration for that id.
type Port interface {
	Arm(id int64, at time.Time) error
	Disarm(id int64) error
}

// FireFunc receives fire callbacks from the registry worker.
type FireFunc func(id int64, at time.Time)

// ErrClosed is returned when arming against a stopped registry.
var ErrClosed = errors.New("timer: registry closed")

// Registry is an in-process Port backed by one time.Timer per armed id.
//
// Fires are handed to the callback on a single dedicated worker goroutine, so
// callback invocations are serialized. A disarm that races a firing timer wins:
// the generation check drops the stale fire before it reaches the worker.
type Registry struct {
	mu      sync.Mutex
	pending map[int64]*registration
	lastSeq uint64
	closed  bool

	fires  chan fireEvent
	done   chan struct{}
	fire   FireFunc
	logger *slog.Logger
	now    func() time.Time
}

type registration struct {
	timer *time.Timer
	at    time.Time
	seq   uint64
}

type fireEvent struct {
	id int64
	at time.Time
}

// NewRegistry constructs a registry delivering fires to fn and starts its
// worker.
func NewRegistry(fn FireFunc, logger *slog.Logger, now func() time.Time) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	r := &Registry{
		pending: make(map[int64]*registration),
		fires:   make(chan fireEvent, 16),
		done:    make(chan struct{}),
		fire:    fn,
		logger:  logger,
		now:     now,
	}
	go r.run()
	return r
}

func (r *Registry) run() {
	for {
		select {
		case <-r.done:
			return
		case event := <-r.fires:
			if r.fire != nil {
				r.fire(event.id, event.at)
			}
		}
	}
}

// Arm schedules a fire for id at the supplied instant, replacing any pending
// registration for the same id.
func (r *Registry) Arm(id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	if existing, ok := r.pending[id]; ok {
		existing.timer.Stop()
	}

	r.lastSeq++
	seq := r.lastSeq
	delay := at.Sub(r.now())

	reg := &registration{at: at, seq: seq}
	reg.timer = time.AfterFunc(delay, func() {
		r.fired(id, seq, at)
	})
	r.pending[id] = reg

	r.logger.Debug("timer armed", "alarm_id", id, "at", at, "delay", delay)
	return nil
}

// Disarm cancels any pending fire for id. Disarming an unknown id is a no-op.
func (r *Registry) Disarm(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reg, ok := r.pending[id]; ok {
		reg.timer.Stop()
		delete(r.pending, id)
		r.logger.Debug("timer disarmed", "alarm_id", id)
	}
	return nil
}

// Pending reports whether a fire is registered for id, and the instant.
func (r *Registry) Pending(id int64) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.pending[id]
	if !ok {
		return time.Time{}, false
	}
	return reg.at, true
}

// Close stops every pending timer and shuts down the worker. Fires already in
// flight may still be delivered.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for id, reg := range r.pending {
		reg.timer.Stop()
		delete(r.pending, id)
	}
	r.mu.Unlock()

	close(r.done)
}

func (r *Registry) fired(id int64, seq uint64, at time.Time) {
	r.mu.Lock()
	reg, ok := r.pending[id]
	if !ok || reg.seq != seq {
		// Disarmed or re-armed while the timer was firing.
		r.mu.Unlock()
		return
	}
	delete(r.pending, id)
	closed := r.closed
	r.mu.Unlock()

	if closed {
		return
	}

	select {
	case r.fires <- fireEvent{id: id, at: at}:
	case <-r.done:
	}
}
