// Package debounce collapses bursts of calls into a single deferred call.
//
// A Debouncer is either idle or pending a single invocation with a deadline
// and the most recent argument. Every Trigger moves it to pending with a new
// deadline; when the deadline passes it runs the action once and returns to
// idle. Calls are dropped, never queued.
package debounce

import (
	"sync"
	"time"
)

// Option configures a Debouncer.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock sets the timer facility, normally a FakeClock in tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// Debouncer runs action with the latest argument once wait has elapsed
// without another Trigger. It is safe for concurrent use. The action runs on
// the clock's timer goroutine, outside the Debouncer's lock.
type Debouncer[T any] struct {
	action func(T)
	wait   time.Duration
	clock  Clock

	mu       sync.Mutex
	timer    Timer
	gen      uint64
	pending  bool
	deadline time.Time
	arg      T
	stopped  bool
}

// New returns an idle Debouncer.
func New[T any](action func(T), wait time.Duration, opts ...Option) *Debouncer[T] {
	o := options{clock: RealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	if wait < 0 {
		wait = 0
	}
	return &Debouncer[T]{action: action, wait: wait, clock: o.clock}
}

// Func is the closure form of New: each call of the returned function is a
// Trigger.
func Func[T any](action func(T), wait time.Duration, opts ...Option) func(T) {
	return New(action, wait, opts...).Trigger
}

// Trigger cancels any pending invocation and schedules a new one carrying
// arg. It is a no-op after Stop.
func (d *Debouncer[T]) Trigger(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	d.gen++
	gen := d.gen
	d.arg = arg
	d.pending = true
	d.deadline = d.clock.Now().Add(d.wait)
	d.timer = d.clock.AfterFunc(d.wait, func() { d.fire(gen) })
}

// fire runs the action if gen is still the newest schedule. A timer whose
// Stop lost the race with its own expiry lands here with an old gen.
func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	arg := d.take()
	d.mu.Unlock()

	d.action(arg)
}

// take moves to idle and returns the pending argument. Callers hold d.mu.
func (d *Debouncer[T]) take() T {
	arg := d.arg
	var zero T
	d.arg = zero
	d.pending = false
	d.deadline = time.Time{}
	d.timer = nil
	return arg
}

// Flush runs a pending invocation now instead of at its deadline. It
// reports whether anything was pending.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	arg := d.take()
	d.mu.Unlock()

	d.action(arg)
	return true
}

// Stop cancels any pending invocation and disables the Debouncer. It is
// teardown for the owner; later Triggers do nothing.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	d.stopped = true
	d.take()
}

// Pending reports whether an invocation is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Deadline returns when the pending invocation is due. ok is false when the
// Debouncer is idle.
func (d *Debouncer[T]) Deadline() (deadline time.Time, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deadline, d.pending
}

// Wait returns the configured delay.
func (d *Debouncer[T]) Wait() time.Duration {
	return d.wait
}
