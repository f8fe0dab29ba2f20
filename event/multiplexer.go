package event

import (
	"sync"
)

// maxUserHandles is the largest number of caller-registered events a
// Multiplexer will track; one more backend slot is reserved for the
// multiplexer's own wakeup descriptor, for a hard cap of 64 in total.
const maxUserHandles = 63

// registration is a pending wait: fd is what the backend blocks on, and
// onFire runs (exactly once) when it becomes readable. The Multiplexer
// never interprets cpu affinity or priority itself; onFire is a closure
// supplied by engine.Scheduler that re-enters the normal dispatch path.
type registration struct {
	fd     int
	ref    *Ref
	onFire func()
}

// Multiplexer runs a single goroutine blocking in an OS multi-wait
// primitive over every registered event, dispatching onFire callbacks as
// they become ready. There is exactly one such thread regardless of how
// many events are registered.
type Multiplexer struct {
	backend backend

	mu   sync.Mutex
	regs []*registration // geometrically grown, unordered; compacted on removal

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

type backend interface {
	add(fd int) error
	remove(fd int) error
	// wait blocks until at least one added fd is ready or the multiplexer's
	// own wakeup fd fires, returning the ready fds (the wakeup fd is never
	// included). timeoutMs < 0 means wait indefinitely.
	wait(timeoutMs int) ([]int, error)
	wake() error
	close() error
}

// NewMultiplexer creates a Multiplexer using the platform's multi-wait
// primitive. It returns ErrUnsupportedPlatform where none is wired up.
func NewMultiplexer() (*Multiplexer, error) {
	b, err := newBackend()
	if err != nil {
		return nil, err
	}
	m := &Multiplexer{
		backend: b,
		regs:    make([]*registration, 0, 8),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go m.run()
	return m, nil
}

// Register starts watching ref's backing descriptor, calling onFire
// exactly once the first time it becomes ready. It fails once maxUserHandles
// registrations are already outstanding.
func (m *Multiplexer) Register(ref *Ref, onFire func()) error {
	fd := ref.fd()
	if fd < 0 {
		return ErrUnsupportedPlatform
	}

	m.mu.Lock()
	if len(m.regs) >= maxUserHandles {
		m.mu.Unlock()
		return errTooManyHandles
	}
	if err := m.backend.add(fd); err != nil {
		m.mu.Unlock()
		return err
	}
	m.growLocked()
	m.regs = append(m.regs, &registration{fd: fd, ref: ref, onFire: onFire})
	m.mu.Unlock()
	return m.backend.wake()
}

// growLocked doubles the backing array's capacity when it is about to run
// out, copying the old contents into the new, larger array: always forward
// into fresh storage, never the reverse, so a growth never silently drops
// pending registrations.
func (m *Multiplexer) growLocked() {
	if len(m.regs) < cap(m.regs) {
		return
	}
	grown := make([]*registration, len(m.regs), cap(m.regs)*2)
	copy(grown, m.regs)
	m.regs = grown
}

// removeLocked drops the registration for fd using swap-with-last, which
// is safe because registration order carries no meaning: every fired fd is
// matched by its fd, never by position.
func (m *Multiplexer) removeLocked(fd int) {
	for i, r := range m.regs {
		if r.fd != fd {
			continue
		}
		last := len(m.regs) - 1
		m.regs[i] = m.regs[last]
		m.regs[last] = nil
		m.regs = m.regs[:last]
		_ = m.backend.remove(fd)
		return
	}
}

func (m *Multiplexer) run() {
	defer close(m.done)
	for {
		select {
		case <-m.stop:
			return
		default:
		}

		ready, err := m.backend.wait(-1)
		if err != nil {
			continue
		}

		select {
		case <-m.stop:
			return
		default:
		}

		for _, fd := range ready {
			m.mu.Lock()
			var fired *registration
			for _, r := range m.regs {
				if r.fd == fd {
					fired = r
					break
				}
			}
			if fired != nil {
				m.removeLocked(fd)
			}
			m.mu.Unlock()

			if fired != nil {
				drainEventDescriptor(fired.fd)
				fired.onFire()
			}
		}
	}
}

// Close stops the multiplexer's goroutine and releases its backend. Only
// the first call releases the backend; later calls wait for the goroutine
// to have exited and return nil.
func (m *Multiplexer) Close() error {
	first := false
	m.stopOnce.Do(func() {
		first = true
		close(m.stop)
		_ = m.backend.wake()
	})
	<-m.done
	if !first {
		return nil
	}
	return m.backend.close()
}
