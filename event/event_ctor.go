package event

import "sync"

// NewEvent creates a new, initially unsignaled manual-reset event with no
// label. It is the common case: most callers don't need Init's full
// manual_reset/label configurability.
func NewEvent() (*Event, error) {
	return Init(true, "")
}

// Init creates a new, initially unsignaled event with the given reset
// behavior and diagnostic label. manualReset true means Signal's effect
// persists until Reset; false means a single Wait consumes it. On platforms with an OS multiplexing backend
// the event is also backed by a real OS descriptor so a Multiplexer can
// block waiting on it; on others it still works for polling and Wait, but
// cannot be awaited through ScheduleEvent.
func Init(manualReset bool, label string) (*Event, error) {
	fd, err := newEventDescriptor()
	if err != nil {
		return nil, err
	}
	e := &Event{fd: fd, manual: manualReset, label: label}
	e.cond = sync.NewCond(&e.mu)
	return e, nil
}

// Signal marks the event signaled, waking every Wait call and every
// multiplexer currently blocked waiting on it. For an auto-reset event,
// only one waiter actually proceeds past Wait; the rest loop back and
// observe it cleared again.
func (e *Event) Signal() error {
	e.mu.Lock()
	e.signaled = true
	e.mu.Unlock()
	e.cond.Broadcast()
	return signalEventDescriptor(e.fd)
}
