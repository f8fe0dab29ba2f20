//go:build !linux

package affinity

import "runtime"

// Pin always fails on platforms without a CPU-affinity syscall wired up.
// The rest of the engine keeps working: workers simply run unpinned.
func Pin(cpu int) error {
	return ErrUnsupported
}

// NumCPU falls back to the number of logical CPUs Go itself reports.
func NumCPU() (int, error) {
	return runtime.NumCPU(), nil
}
