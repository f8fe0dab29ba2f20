//go:build linux

package affinity

import "golang.org/x/sys/unix"

// Pin restricts the calling OS thread to cpu using sched_setaffinity. The
// caller must already be bound to its own OS thread (runtime.LockOSThread)
// for this to have any lasting effect.
func Pin(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	// tid 0 means "the calling thread" to sched_setaffinity.
	return unix.SchedSetaffinity(0, &set)
}

// NumCPU returns the number of CPUs the calling thread is currently
// allowed to run on, used by the scheduler to size its per-CPU queues.
func NumCPU() (int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0, err
	}
	return set.Count(), nil
}
