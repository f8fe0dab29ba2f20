package engine

import (
	"fmt"
	"time"

	"github.com/corofab/corofab/task"
)

// PanicHandler is invoked when a resumed continuation panics. The worker
// loop always recovers the panic itself and keeps draining its queue
// afterward; a PanicHandler only observes it.
type PanicHandler interface {
	HandlePanic(cpu int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler prints panic details to stdout.
type DefaultPanicHandler struct{}

func (h *DefaultPanicHandler) HandlePanic(cpu int, panicInfo any, stackTrace []byte) {
	fmt.Printf("[worker cpu=%d] panic: %v\nstack trace:\n%s", cpu, panicInfo, stackTrace)
}

// Metrics collects observability data about the scheduler and its
// per-CPU queues. All methods must be non-blocking; implementations should
// tolerate being called from many worker goroutines concurrently.
type Metrics interface {
	RecordResumeDuration(cpu int, priority task.Priority, d time.Duration)
	RecordPanic(cpu int, panicInfo any)
	RecordQueueDepth(cpu int, priority task.Priority, depth int)
	RecordRejected(reason string)
}

// NilMetrics discards everything. It is the default when no Metrics is
// configured via WithMetrics.
type NilMetrics struct{}

func (NilMetrics) RecordResumeDuration(cpu int, priority task.Priority, d time.Duration) {}
func (NilMetrics) RecordPanic(cpu int, panicInfo any)                                    {}
func (NilMetrics) RecordQueueDepth(cpu int, priority task.Priority, depth int)           {}
func (NilMetrics) RecordRejected(reason string)                                          {}
