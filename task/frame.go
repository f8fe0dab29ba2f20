package task

import "sync/atomic"

// Priority is the two-level scheduling hint carried by every suspension
// point and every pending-event registration.
type Priority uint8

const (
	// PriorityNormal is the default priority.
	PriorityNormal Priority = 0
	// PriorityHigh is attempted before PriorityNormal on every worker queue.
	PriorityHigh Priority = 1
)

// ClampPriority folds any out-of-range value into the nearest valid level.
func ClampPriority(p Priority) Priority {
	if p > PriorityHigh {
		return PriorityHigh
	}
	return p
}

// CPUSet is a 64-bit affinity mask; bit i set means CPU i is permitted.
// The zero value means "any CPU" and is normalized by the scheduler.
type CPUSet uint64

// AllCPUs is the sentinel meaning "no restriction"; schedulers normalize
// it to every valid CPU bit before use.
const AllCPUs CPUSet = 0

// Has reports whether cpu is permitted by the mask.
func (s CPUSet) Has(cpu int) bool {
	if cpu < 0 || cpu >= 64 {
		return false
	}
	return s&(1<<uint(cpu)) != 0
}

// parkState is the goroutine-park/wake rendezvous shared by a frame and its
// Yielder. It realizes the "hand the resumable handle to the scheduler,
// then yield" suspension step: the task's own background goroutine blocks
// on wake, and whoever resumes it (a worker thread via Scheduler.Schedule,
// or a finishing awaitee via the continuation handoff protocol) sends the
// CPU id it should pin itself to, or -1 if none.
type parkState struct {
	wake     chan int
	stepDone chan struct{}
	gate     chan struct{}
	gateOpen atomic.Bool

	// workerResumed records how the slice that boundary() is about to close
	// out was resumed: true for a Scheduler-mediated resume (a worker is
	// blocked on stepDone waiting for this exact signal), false for a
	// continuation handoff (nothing is waiting, so there is nothing to
	// signal). It is only ever touched by the frame's own dedicated
	// goroutine, which calls resumeOnWake and boundary in strict sequence.
	workerResumed bool
}

func newParkState() *parkState {
	return &parkState{
		wake:     make(chan int, 1),
		stepDone: make(chan struct{}, 1),
		gate:     make(chan struct{}),
	}
}

// boundary marks the end of a resumption slice: the first call opens the
// gate that releases the goroutine which invoked Go/Joinable (satisfying
// "begins executing synchronously on the caller's thread up to the first
// suspension"); every later call signals stepDone, but only if the slice
// being closed out was itself entered through a Scheduler-mediated resume
// — that is the only case where a worker is blocked inside engine.Queue
// waiting on exactly this signal. A slice entered through a continuation
// handoff (see Yielder.awaitFrame) has no such worker to release; sending
// stepDone anyway would leave a token no one drains, which a later worker-
// mediated boundary call could then find the buffer already full and block
// on permanently.
func (p *parkState) boundary() {
	if p.gateOpen.CompareAndSwap(false, true) {
		close(p.gate)
		return
	}
	if p.workerResumed {
		p.stepDone <- struct{}{}
	}
}

// frame is the heap-allocated record backing one task invocation: the
// continuation, the flag guarding its installation, the joinable semaphore,
// and the final result.
type frame[T any] struct {
	park *parkState

	continuation func()
	flag         atomic.Bool // the single-bit rendezvous token
	completed    atomic.Bool // true once the body has returned and data is final
	consumed     atomic.Bool // guards against a second Await/Discard

	data    T
	joinSem chan struct{} // non-nil only for joinable frames
}

func newFrame[T any](joinable bool) *frame[T] {
	f := &frame[T]{park: newParkState()}
	if joinable {
		f.joinSem = make(chan struct{})
	}
	return f
}

// installContinuation is the awaiter-side install half of the continuation
// handoff protocol.
func (f *frame[T]) installContinuation(cont func()) {
	f.continuation = cont
	if !f.flag.CompareAndSwap(false, true) {
		// The awaitee already reached final exit and found no continuation
		// installed (by construction: await-ready guards a second await on
		// an already-finished task, so this is the sole lost-race case).
		// No handoff is possible through the frame any more; resume now.
		cont()
	}
}

// finish is the awaitee-side final-exit half of the continuation handoff
// protocol. Joinable frames skip the flag/continuation protocol entirely.
func (f *frame[T]) finish() {
	f.completed.Store(true)
	switch {
	case f.joinSem != nil:
		close(f.joinSem)
	case !f.flag.CompareAndSwap(false, true):
		// The installer arrived first and left a continuation: resume it.
		// Go has no guaranteed tail call, so this is a plain call; because
		// each frame owns its own goroutine, invoking it only sends on a
		// channel (see Yielder.awaitFrame), never grows this goroutine's stack.
		f.continuation()
	}
	f.park.boundary()
}
