//go:build linux

package event

import "golang.org/x/sys/unix"

// epollBackend is the Linux multi-wait primitive: one epoll instance plus
// a dedicated eventfd used only to interrupt a blocked epoll_wait when a
// new registration arrives or the multiplexer is asked to stop, the same
// EINTR-tolerant retry shape as the poll-based backend in the reference
// async runtime this package is modeled on.
type epollBackend struct {
	epfd   int
	wakeFD int
}

func newBackend() (backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFD)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &ev); err != nil {
		unix.Close(wakeFD)
		unix.Close(epfd)
		return nil, err
	}
	return &epollBackend{epfd: epfd, wakeFD: wakeFD}, nil
}

func (b *epollBackend) add(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (b *epollBackend) remove(fd int) error {
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (b *epollBackend) wait(timeoutMs int) ([]int, error) {
	var events [maxUserHandles + 1]unix.EpollEvent
	for {
		n, err := unix.EpollWait(b.epfd, events[:], timeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}

		ready := make([]int, 0, n)
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == b.wakeFD {
				drainEventDescriptor(b.wakeFD)
				continue
			}
			ready = append(ready, fd)
		}
		return ready, nil
	}
}

func (b *epollBackend) wake() error {
	return signalEventDescriptor(b.wakeFD)
}

func (b *epollBackend) close() error {
	unix.Close(b.wakeFD)
	return unix.Close(b.epfd)
}
