package engine

import (
	"testing"
	"time"

	"github.com/corofab/corofab/task"
)

func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	opts = append([]Option{WithLogger(&NoOpLogger{})}, opts...)
	s := NewScheduler(2, opts...)
	t.Cleanup(s.Shutdown)
	return s
}

// TestScheduler_ScheduleRunsOnPermittedCPU verifies a Schedule call with a
// one-bit mask always lands on that CPU.
func TestScheduler_ScheduleRunsOnPermittedCPU(t *testing.T) {
	s := newTestScheduler(t)

	done := make(chan int, 1)
	s.Schedule(func(cpu int) { done <- cpu }, task.CPUSet(1<<1), task.PriorityNormal)

	select {
	case cpu := <-done:
		if cpu != 1 {
			t.Fatalf("resume ran on cpu %d, want 1", cpu)
		}
	case <-time.After(time.Second):
		t.Fatal("Schedule never ran the resume closure")
	}
}

// TestScheduler_ScheduleAfterDelaysExecution verifies ScheduleAfter does not
// run its resume closure before the requested delay elapses.
func TestScheduler_ScheduleAfterDelaysExecution(t *testing.T) {
	s := newTestScheduler(t)

	start := time.Now()
	done := make(chan time.Duration, 1)
	s.ScheduleAfter(30*time.Millisecond, func(cpu int) {
		done <- time.Since(start)
	}, task.AllCPUs, task.PriorityNormal)

	select {
	case elapsed := <-done:
		if elapsed < 20*time.Millisecond {
			t.Fatalf("ScheduleAfter fired after %s, want >= 20ms", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ScheduleAfter never fired")
	}
}

// TestScheduler_ReportPanicForwardsToHandler verifies ReportPanic calls both
// the configured Metrics and PanicHandler.
func TestScheduler_ReportPanicForwardsToHandler(t *testing.T) {
	seen := make(chan any, 1)
	handler := panicHandlerFunc(func(cpu int, panicInfo any, stack []byte) {
		seen <- panicInfo
	})
	s := newTestScheduler(t, WithPanicHandler(handler))

	s.ReportPanic(0, "kaboom", nil)

	select {
	case got := <-seen:
		if got != "kaboom" {
			t.Fatalf("HandlePanic got %v, want kaboom", got)
		}
	case <-time.After(time.Second):
		t.Fatal("ReportPanic never invoked the panic handler")
	}
}

// TestScheduler_StatsReflectsNumCPU verifies Stats reports one QueueStats
// entry per configured CPU.
func TestScheduler_StatsReflectsNumCPU(t *testing.T) {
	s := newTestScheduler(t)
	stats := s.Stats()
	if stats.NumCPU != 2 {
		t.Fatalf("Stats().NumCPU = %d, want 2", stats.NumCPU)
	}
	if len(stats.Queues) != 2 {
		t.Fatalf("len(Stats().Queues) = %d, want 2", len(stats.Queues))
	}
}

// TestScheduler_ShutdownIsIdempotent verifies Shutdown can be called more
// than once without blocking.
func TestScheduler_ShutdownIsIdempotent(t *testing.T) {
	s := NewScheduler(1, WithLogger(&NoOpLogger{}))
	s.Shutdown()
	s.Shutdown()
}

// TestScheduler_ScheduleEventFailsWithoutMultiplexer verifies ScheduleEvent
// surfaces task.ErrUnsupportedEvent when the multiplexer was disabled.
func TestScheduler_ScheduleEventFailsWithoutMultiplexer(t *testing.T) {
	s := newTestScheduler(t, WithoutEventMultiplexer())

	err := s.ScheduleEvent(func(cpu int) {}, fakeWaiter{}, task.AllCPUs, task.PriorityNormal)
	if err != task.ErrUnsupportedEvent {
		t.Fatalf("ScheduleEvent error = %v, want ErrUnsupportedEvent", err)
	}
}

// TestScheduler_ChainedSequentialAwaits verifies a task resumed by a real
// per-CPU worker can still perform more than one sequential task.Await,
// each resolved through the continuation handoff rather than another
// worker-mediated resume, without deadlocking. This is the scenario a
// single worker's queue would starve permanently if a handoff resume's
// slice left a stale token behind for task.Await's internal boundary
// bookkeeping.
func TestScheduler_ChainedSequentialAwaits(t *testing.T) {
	s := newTestScheduler(t, WithWorkerCount(1))

	newProducer := func(v int) task.Task[int] {
		return task.Go(s, func(y *task.Yielder) int {
			y.Suspend(task.AllCPUs, task.PriorityNormal)
			return v
		})
	}
	t1 := newProducer(1)
	t2 := newProducer(2)
	t3 := newProducer(3)

	chain := task.Joinable(s, func(y *task.Yielder) int {
		y.Suspend(task.AllCPUs, task.PriorityNormal)
		a := t1.Await(y)
		b := t2.Await(y)
		c := t3.Await(y)
		return a + b + c
	})

	done := make(chan int, 1)
	go func() { done <- chain.Join() }()

	select {
	case got := <-done:
		if got != 6 {
			t.Fatalf("chain.Join() = %d, want 6", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("chain of three sequential handoff-resolved awaits deadlocked")
	}
}

// TestScheduler_RecentHistoryReflectsSchedule verifies RecentHistory surfaces
// a completed resume on the CPU it actually ran on, and rejects an
// out-of-range CPU index.
func TestScheduler_RecentHistoryReflectsSchedule(t *testing.T) {
	s := newTestScheduler(t)

	done := make(chan struct{})
	s.Schedule(func(cpu int) { close(done) }, task.CPUSet(1<<0), task.PriorityNormal)
	<-done

	var records []ResumeRecord
	for i := 0; i < 100; i++ {
		var ok bool
		records, ok = s.RecentHistory(0, 0)
		if !ok {
			t.Fatal("RecentHistory(0, ...) ok = false, want true")
		}
		if len(records) == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if len(records) != 1 {
		t.Fatalf("RecentHistory(0, 0) returned %d records, want 1", len(records))
	}
	if records[0].CPU != 0 {
		t.Fatalf("record CPU = %d, want 0", records[0].CPU)
	}

	if _, ok := s.RecentHistory(99, 0); ok {
		t.Fatal("RecentHistory(99, ...) ok = true, want false for out-of-range CPU")
	}
}

type panicHandlerFunc func(cpu int, panicInfo any, stack []byte)

func (f panicHandlerFunc) HandlePanic(cpu int, panicInfo any, stack []byte) {
	f(cpu, panicInfo, stack)
}

type fakeWaiter struct{}

func (fakeWaiter) IsSignaled() bool { return false }
