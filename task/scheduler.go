package task

// Scheduler is the dispatcher surface a suspension point needs: enough to
// hand a resume closure back across the boundary without the task package
// importing the engine that implements it. engine.Scheduler satisfies this
// interface structurally.
//
// resume is invoked by a worker goroutine that already has a CPU identity;
// it must run resume synchronously and not dequeue further work until
// resume returns, so that at most one frame is active per worker at a time.
type Scheduler interface {
	// Schedule places resume on a ready queue chosen by mask and priority.
	Schedule(resume func(cpu int), mask CPUSet, priority Priority)

	// ScheduleEvent registers resume to run once waiter becomes signaled,
	// honoring mask and priority the same way Schedule does. It returns an
	// error if the platform has no event-multiplexing backend.
	ScheduleEvent(resume func(cpu int), waiter EventWaiter, mask CPUSet, priority Priority) error

	// ReportPanic is called once by a frame's own goroutine when its body
	// panics. The panic is not re-raised: the frame then finishes with its
	// result at the zero value. cpu is the last CPU a worker resumed the
	// frame on, or -1 if no worker has resumed it.
	ReportPanic(cpu int, panicInfo any, stack []byte)
}

// EventWaiter is the minimal view of an OS-event handle a suspension point
// needs. *event.Ref implements it without event importing task.
type EventWaiter interface {
	IsSignaled() bool
}
