package task

import "github.com/corofab/corofab/affinity"

// Yielder is the capability passed to a suspendable function's body. It is
// the only way to reach a suspension point; there is no implicit
// suspension anywhere else in a task's execution.
type Yielder struct {
	sched   Scheduler
	self    *parkState
	lastCPU int // -1 until the first scheduler-mediated resume
}

// Suspend yields the running task back to the scheduler, to be resumed on
// a worker whose CPU matches mask at the given priority. It is the
// building block every other suspension point is expressed in terms of.
func (y *Yielder) Suspend(mask CPUSet, priority Priority) {
	y.sched.Schedule(func(cpu int) {
		y.self.wake <- cpu
		<-y.self.stepDone
	}, mask, priority)
	y.resumeOnWake()
}

// AwaitEvent suspends until ref becomes signaled, then resumes on a worker
// matching mask and priority. If ref is already signaled this returns
// immediately without suspending.
func (y *Yielder) AwaitEvent(ref EventWaiter, mask CPUSet, priority Priority) error {
	if ref.IsSignaled() {
		return nil
	}
	if err := y.sched.ScheduleEvent(func(cpu int) {
		y.self.wake <- cpu
		<-y.self.stepDone
	}, ref, mask, priority); err != nil {
		return err
	}
	y.resumeOnWake()
	return nil
}

// resumeOnWake marks the current resumption slice as over, blocks until
// something sends a CPU id on self.wake, then re-pins to that CPU if one
// was given. Scheduler-mediated resumes always give a real CPU id; a
// continuation handoff from Task.Await gives -1, leaving affinity exactly
// as it was before the suspension: no new scheduling decision is made.
func (y *Yielder) resumeOnWake() {
	y.self.boundary()
	cpu := <-y.self.wake
	y.self.workerResumed = cpu >= 0
	if cpu >= 0 {
		y.lastCPU = cpu
		_ = affinity.Pin(cpu)
	}
}

// awaitFrame is the Await-side half of the continuation handoff protocol,
// shared by Task[T].Await regardless of T.
func (y *Yielder) awaitFrame(install func(cont func())) {
	install(func() {
		// Fire-and-forget: the awaitee's own goroutine (or whichever
		// goroutine is running its final-exit path) just notifies us and
		// moves on; it never blocks on our next suspension.
		y.self.wake <- -1
	})
	y.resumeOnWake()
}
