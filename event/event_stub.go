//go:build !linux

package event

func newEventDescriptor() (int, error) {
	return -1, nil
}

func signalEventDescriptor(fd int) error {
	return nil
}

func drainEventDescriptor(fd int) {}
