// Package task implements the suspendable-function fabric: frames,
// continuations, and the task handles built on top of them. A Task[T] is
// realized as a dedicated goroutine carrying the frame's "stack"; the
// goroutine parks at every suspension point and is woken either by a
// worker thread (engine.Queue) or, for Await, directly by the awaited
// frame's own final-exit path. See frame.go for the continuation handoff
// protocol this is all built on.
package task

import (
	"runtime"
	"runtime/debug"
)

// Task is a handle to a suspended or completed, awaitable task frame.
// A zero-value handle, or one whose frame has reached final exit, is
// considered Ready; only a live, not yet consumed one may be Awaited or
// Discarded.
type Task[T any] struct {
	f *frame[T]
}

// VoidTask is a task that produces no value.
type VoidTask = Task[struct{}]

// JoinTask is a handle to a joinable task frame: it can be waited on from
// any number of goroutines via Join, but it has no Await method, so it can
// never be installed as another task's continuation. That asymmetry is
// this package's structural stand-in for a move-only, single-owner
// awaitable type.
type JoinTask[T any] struct {
	f *frame[T]
}

// JoinVoidTask is a joinable task that produces no value.
type JoinVoidTask = JoinTask[struct{}]

// Go creates and begins executing a new awaitable task frame, returning
// once fn reaches its first suspension point or returns. sched receives
// every Suspend/Await/AwaitEvent registration made through the Yielder
// passed to fn.
func Go[T any](sched Scheduler, fn func(*Yielder) T) Task[T] {
	f := newFrame[T](false)
	runFrame(f, sched, fn)
	return Task[T]{f: f}
}

// GoVoid is Go specialized to VoidTask.
func GoVoid(sched Scheduler, fn func(*Yielder)) VoidTask {
	return Go(sched, func(y *Yielder) struct{} {
		fn(y)
		return struct{}{}
	})
}

// Joinable creates and begins executing a new joinable task frame.
func Joinable[T any](sched Scheduler, fn func(*Yielder) T) JoinTask[T] {
	f := newFrame[T](true)
	runFrame(f, sched, fn)
	return JoinTask[T]{f: f}
}

// JoinableVoid is Joinable specialized to JoinVoidTask.
func JoinableVoid(sched Scheduler, fn func(*Yielder)) JoinVoidTask {
	return Joinable(sched, func(y *Yielder) struct{} {
		fn(y)
		return struct{}{}
	})
}

func runFrame[T any](f *frame[T], sched Scheduler, fn func(*Yielder) T) {
	y := &Yielder{sched: sched, self: f.park, lastCPU: -1}
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer func() {
			if r := recover(); r != nil {
				sched.ReportPanic(y.lastCPU, r, debug.Stack())
				f.finish()
			}
		}()
		result := fn(y)
		f.data = result
		f.finish()
	}()
	<-f.park.gate
}

// Ready reports whether the task needs no waiting: either the handle has no
// frame (zero value) or the frame has reached final exit. Whether the
// handle was already consumed does not affect it.
func (t Task[T]) Ready() bool {
	return t.f == nil || t.f.completed.Load()
}

// Await suspends the calling task (via y) until t's frame reaches final
// exit, then returns its result. Calling Await a second time on the same
// handle, or on a zero-value handle, panics with ErrAlreadyConsumed.
//
// If t's body panicked, Await does not re-raise it: a task's failure is
// never propagated through an await/join return value, only reported to
// the Scheduler's PanicHandler (see runFrame). Await then returns f.data
// at its zero value.
func (t Task[T]) Await(y *Yielder) T {
	f := t.f
	if f == nil || !f.consumed.CompareAndSwap(false, true) {
		panic(ErrAlreadyConsumed)
	}
	if !f.completed.Load() {
		y.awaitFrame(f.installContinuation)
	}
	return f.data
}

// Discard abandons the frame without reading its result. It still
// enforces the single-consumption rule so a Discard race with an Await
// can't both succeed.
func (t Task[T]) Discard() {
	if t.f == nil || !t.f.consumed.CompareAndSwap(false, true) {
		panic(ErrAlreadyConsumed)
	}
	// The frame may still be in flight: its goroutine keeps running to
	// final exit and its result is simply never read.
}

// Ready reports whether Join would return immediately.
func (t JoinTask[T]) Ready() bool {
	return t.f == nil || t.f.completed.Load()
}

// Join blocks the calling goroutine, without suspending any task frame,
// until t's frame reaches final exit, then returns its result. Unlike
// Await it may be called from outside any task and from more than one
// goroutine; every caller sees the same result once it is ready.
//
// As with Await, a panic inside t's body is never re-raised here; Join
// returns f.data at its zero value and the panic is only visible through
// the Scheduler's PanicHandler.
func (t JoinTask[T]) Join() T {
	f := t.f
	if f == nil {
		panic(ErrAlreadyConsumed)
	}
	<-f.joinSem
	return f.data
}

// Discard abandons a joinable frame's result without blocking on it.
func (t JoinTask[T]) Discard() {
	if t.f == nil || !t.f.consumed.CompareAndSwap(false, true) {
		panic(ErrAlreadyConsumed)
	}
}
