// Package affinity pins the calling OS thread to a single CPU. It backs
// both the per-CPU worker threads in package engine and the self-pin a
// resumed task performs after waking on a worker-assigned CPU.
//
// Callers must have already called runtime.LockOSThread; pinning a
// goroutine that the Go scheduler is free to move to another OS thread
// would make the affinity meaningless.
package affinity

import "errors"

// ErrUnsupported is returned by Pin on platforms with no CPU-affinity
// syscall wired up.
var ErrUnsupported = errors.New("affinity: CPU pinning is not supported on this platform")
