package event

import (
	"testing"
	"time"
)

// TestEvent_SignalAndReset verifies the manual-reset signaled state.
func TestEvent_SignalAndReset(t *testing.T) {
	e, err := NewEvent()
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if e.IsSignaled() {
		t.Fatal("a fresh event should not be signaled")
	}

	if err := e.Signal(); err != nil {
		t.Fatalf("Signal() error = %v", err)
	}
	if !e.IsSignaled() {
		t.Fatal("event should be signaled after Signal")
	}

	e.Reset()
	if e.IsSignaled() {
		t.Fatal("event should not be signaled after Reset")
	}
}

// TestEvent_WaitManualResetDoesNotConsume verifies Wait on a manual-reset
// event returns immediately once signaled and leaves it signaled for a
// second Wait, matching "one additional wait() still returns immediately".
func TestEvent_WaitManualResetDoesNotConsume(t *testing.T) {
	e, err := NewEvent()
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if err := e.Signal(); err != nil {
		t.Fatalf("Signal() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		e.Wait()
		e.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait on an already-signaled manual-reset event should not block")
	}
	if !e.IsSignaled() {
		t.Fatal("manual-reset event should still be signaled after Wait")
	}
}

// TestEvent_WaitAutoResetConsumesSignal verifies Wait on an auto-reset
// event clears the signaled state on the way out, so a second Wait blocks
// until another Signal arrives.
func TestEvent_WaitAutoResetConsumesSignal(t *testing.T) {
	e, err := Init(false, "auto")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if e.Label() != "auto" {
		t.Fatalf("Label() = %q, want %q", e.Label(), "auto")
	}

	if err := e.Signal(); err != nil {
		t.Fatalf("Signal() error = %v", err)
	}
	e.Wait()
	if e.IsSignaled() {
		t.Fatal("auto-reset event should clear on Wait")
	}

	secondWaitReturned := make(chan struct{})
	go func() {
		e.Wait()
		close(secondWaitReturned)
	}()

	select {
	case <-secondWaitReturned:
		t.Fatal("second Wait should block until another Signal")
	case <-time.After(20 * time.Millisecond):
	}

	if err := e.Signal(); err != nil {
		t.Fatalf("Signal() error = %v", err)
	}
	select {
	case <-secondWaitReturned:
	case <-time.After(time.Second):
		t.Fatal("second Wait never returned after a second Signal")
	}
}

// TestRef_TracksUnderlyingEvent verifies a Ref observes the same signaled
// state as the Event it was taken from, and that multiple Refs share it.
func TestRef_TracksUnderlyingEvent(t *testing.T) {
	e, err := NewEvent()
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	r1 := e.NewRef()
	r2 := e.NewRef()

	if r1.IsSignaled() || r2.IsSignaled() {
		t.Fatal("fresh refs should not report signaled")
	}

	_ = e.Signal()
	if !r1.IsSignaled() || !r2.IsSignaled() {
		t.Fatal("every ref to a signaled event should report signaled")
	}
}
