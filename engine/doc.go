// Package engine provides the affinity-aware work dispatcher that resumes
// suspended task frames: one Queue per CPU, each with its own pinned OS
// thread, and a Scheduler that decides which queue a given suspension
// point lands on.
//
// # Quick Start
//
//	sched := engine.NewScheduler(0) // 0 asks the platform for its CPU count
//	defer sched.Shutdown()
//
//	t := task.Go(sched, func(y *task.Yielder) int {
//		y.Suspend(engine.AllCPUs, engine.PriorityNormal)
//		return 42
//	})
//
// # Key Concepts
//
// Queue: one per CPU, with two FIFO ready rings (normal and high priority)
// and a counting semaphore that bounds how far a producer can outrun its
// worker. The worker goroutine locks itself to its OS thread and pins that
// thread to its CPU before draining either ring.
//
// Scheduler: chooses a Queue for every Suspend and AwaitEvent registration
// (Await resumes through the awaited task's continuation handoff and makes
// no scheduling decision). It first looks for an idle queue among the CPUs a mask
// permits; if none is idle it falls back to a golden-ratio tie-break that
// spreads contested resumptions evenly across the permitted CPUs instead
// of favoring the lowest-numbered one.
//
// # Thread Safety
//
// Schedule, ScheduleEvent, ScheduleAfter, and Stats may all be called
// concurrently from any goroutine, including from inside a resumed task.
package engine
