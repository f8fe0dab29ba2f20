// Package event implements the OS-event objects a suspendable task can
// await, and the single-thread multiplexer that turns their completion
// into a scheduler resume. An Event is the owning object; a Ref is the
// non-owning handle tasks actually hold and pass to Yielder.AwaitEvent.
package event

import (
	"errors"
	"sync"
)

// ErrUnsupportedPlatform is returned by NewMultiplexer on platforms with
// no multi-wait primitive wired up.
var ErrUnsupportedPlatform = errors.New("event: no OS multiplexing primitive available on this platform")

// errTooManyHandles is returned by Register once 63 user handles are
// already outstanding (the 64th multi-wait slot is reserved for the
// multiplexer's own wakeup descriptor).
var errTooManyHandles = errors.New("event: too many outstanding registrations")

// Event is an OS-backed event, either manual-reset (stays signaled until
// Reset) or auto-reset (a Wait that observes it signaled clears it on the
// way out, waking at most one waiter per Signal). It is safe for
// concurrent use.
type Event struct {
	mu       sync.Mutex
	cond     *sync.Cond
	signaled bool
	manual   bool
	label    string

	// fd is the backing eventfd (or -1 on platforms without one). It is
	// read by the multiplexer backend; Event itself only ever writes to it
	// through Signal.
	fd int
}

// Ref is the non-owning handle to an Event that a suspension point waits
// on. It is deliberately small and comparable so it can be used as a
// registration key.
type Ref struct {
	e *Event
}

// NewRef returns a Ref referring to e. Multiple Refs may point at the same
// Event and all observe its signaled state. A Multiplexer holds at most one
// outstanding registration per Event: registering a second Ref to the same
// Event while the first is still pending fails, so only one task at a time
// can await a given Event through it.
func (e *Event) NewRef() *Ref { return &Ref{e: e} }

// IsSignaled reports whether the event is currently signaled.
func (e *Event) IsSignaled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.signaled
}

// AwaitReady reports the same thing as IsSignaled; it is the name the
// awaitable form of Event exposes to a suspension point.
func (e *Event) AwaitReady() bool { return e.IsSignaled() }

// Label returns the diagnostic name the event was constructed with, or ""
// if none was given.
func (e *Event) Label() string { return e.label }

// Reset clears the signaled state.
func (e *Event) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signaled = false
}

// Wait blocks until the event is signaled. A manual-reset event leaves the
// signaled state untouched, so every concurrent waiter (and every later
// IsSignaled/Wait) observes it. An auto-reset event clears the signaled
// state on the way out of Wait, so at most one waiter per Signal proceeds.
func (e *Event) Wait() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for !e.signaled {
		e.cond.Wait()
	}
	if !e.manual {
		e.signaled = false
	}
}

// IsSignaled reports whether the referenced event is currently signaled.
// It implements task.EventWaiter, which is how Yielder.AwaitEvent decides
// whether to suspend at all.
func (r *Ref) IsSignaled() bool {
	return r.e.IsSignaled()
}

// fd exposes the backing descriptor to the multiplexer package; it is not
// part of the public API surface a task-writing caller needs.
func (r *Ref) fd() int { return r.e.fd }
