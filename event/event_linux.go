//go:build linux

package event

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

func newEventDescriptor() (int, error) {
	return unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
}

func signalEventDescriptor(fd int) error {
	if fd < 0 {
		return nil
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(fd, buf[:])
	if err == unix.EAGAIN {
		// The counter is already saturated; the multiplexer will still
		// observe the fd as readable.
		return nil
	}
	return err
}

func drainEventDescriptor(fd int) {
	var buf [8]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != nil {
			return
		}
	}
}
