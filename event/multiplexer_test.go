package event

import (
	"errors"
	"testing"
	"time"
)

func newTestMultiplexer(t *testing.T) *Multiplexer {
	t.Helper()
	m, err := NewMultiplexer()
	if errors.Is(err, ErrUnsupportedPlatform) {
		t.Skip("no OS multi-wait backend on this platform")
	}
	if err != nil {
		t.Fatalf("NewMultiplexer() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// TestMultiplexer_FiresOnSignal verifies that Register's onFire callback
// runs once the underlying event is signaled.
func TestMultiplexer_FiresOnSignal(t *testing.T) {
	m := newTestMultiplexer(t)

	e, err := NewEvent()
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	ref := e.NewRef()

	fired := make(chan struct{})
	if err := m.Register(ref, func() { close(fired) }); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := e.Signal(); err != nil {
		t.Fatalf("Signal() error = %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onFire was never called after Signal")
	}
}

// TestMultiplexer_RegistrationCapIsEnforced verifies Register rejects the
// 64th outstanding registration (63 user slots plus the reserved wakeup fd).
func TestMultiplexer_RegistrationCapIsEnforced(t *testing.T) {
	m := newTestMultiplexer(t)

	events := make([]*Event, 0, maxUserHandles+1)
	var lastErr error
	for i := 0; i < maxUserHandles+1; i++ {
		e, err := NewEvent()
		if err != nil {
			t.Fatalf("NewEvent() error = %v", err)
		}
		events = append(events, e)
		lastErr = m.Register(e.NewRef(), func() {})
	}

	if lastErr == nil {
		t.Fatal("Register should fail once maxUserHandles registrations are outstanding")
	}
}

// TestMultiplexer_CloseIsIdempotent verifies Close can be called more than
// once without blocking or panicking.
func TestMultiplexer_CloseIsIdempotent(t *testing.T) {
	m := newTestMultiplexer(t)
	if err := m.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
