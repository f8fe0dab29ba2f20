// Package engine implements the affinity-aware work dispatcher: a fixed
// set of per-CPU Queues plus the Scheduler that decides which one a given
// suspension point lands on. It imports both task (to satisfy
// task.Scheduler) and event (to drive the multiplexer).
package engine

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/corofab/corofab/affinity"
	"github.com/corofab/corofab/event"
	"github.com/corofab/corofab/task"
)

func detectNumCPU() (int, error) {
	return affinity.NumCPU()
}

// CPUSet and Priority are re-exported so callers of engine rarely need to
// import task directly for the primitive types it owns.
type (
	CPUSet   = task.CPUSet
	Priority = task.Priority
)

const (
	PriorityNormal = task.PriorityNormal
	PriorityHigh   = task.PriorityHigh
	AllCPUs        = task.AllCPUs
)

// maxSchedulerCPUs matches the 64-bit width of CPUSet: a scheduler can
// never usefully address more CPUs than a single mask can name.
const maxSchedulerCPUs = 64

// Scheduler is the affinity-aware dispatcher. It owns one Queue per CPU, a
// delayed-task timer goroutine, and (where supported) an OS-event
// multiplexer.
type Scheduler struct {
	queues  []*Queue
	numCPU  int
	counter uint64
	counMu  sync.Mutex // guards counter; contention is rare enough a mutex beats CAS-retry here

	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler

	delay *delayManager
	mux   *event.Multiplexer

	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewScheduler builds a Scheduler with numCPU queues, applying opts; a
// WithWorkerCount option overrides numCPU, and if neither gives a positive
// count the platform's reported CPU count is used.
// It panics if the resolved CPU count is zero or exceeds 64: both are
// precondition violations no caller can recover from, the same way
// ParallelTaskRunner panics on a broken internal invariant rather than
// returning a half-usable value.
func NewScheduler(numCPU int, opts ...Option) *Scheduler {
	cfg := defaultConfig()
	if numCPU > 0 {
		cfg.numCPU = numCPU
	}
	for _, opt := range opts {
		opt(cfg)
	}

	n := cfg.numCPU
	if n <= 0 {
		detected, err := detectNumCPU()
		if err != nil || detected <= 0 {
			panic(fmt.Sprintf("engine: could not determine CPU count: %v", err))
		}
		n = detected
	}
	if n == 0 || n > maxSchedulerCPUs {
		panic(fmt.Sprintf("engine: invalid CPU count %d (must be 1..%d)", n, maxSchedulerCPUs))
	}

	s := &Scheduler{
		numCPU:       n,
		counter:      seedTieBreakCounter(),
		logger:       cfg.logger,
		metrics:      cfg.metrics,
		panicHandler: cfg.panicHandler,
	}
	s.queues = make([]*Queue, n)
	for i := 0; i < n; i++ {
		s.queues[i] = newQueue(i, s.logger, s.metrics, s.panicHandler)
	}
	s.delay = newDelayManager(func(resume func(cpu int), mask task.CPUSet, priority task.Priority) {
		s.Schedule(resume, mask, priority)
	})

	if cfg.withEvents {
		mux, err := event.NewMultiplexer()
		if err != nil {
			s.logger.Warn("event multiplexer unavailable", F("err", err))
		} else {
			s.mux = mux
		}
	}

	return s
}

var (
	defaultScheduler     *Scheduler
	defaultSchedulerOnce sync.Once
)

// DefaultScheduler returns a process-wide Scheduler sized to the host's
// CPU count, built on first use.
func DefaultScheduler() *Scheduler {
	defaultSchedulerOnce.Do(func() {
		defaultScheduler = NewScheduler(0)
	})
	return defaultScheduler
}

// NumCPU reports how many per-CPU queues this scheduler owns.
func (s *Scheduler) NumCPU() int { return s.numCPU }

// Schedule implements task.Scheduler: it picks a queue honoring mask and
// priority and pushes resume onto it. The first pass looks for any idle
// queue among the permitted CPUs (so a waking task lands on free
// capacity); if every permitted queue is busy, a golden-ratio tie-break
// spreads the decision evenly across them instead of always picking the
// same one.
func (s *Scheduler) Schedule(resume func(cpu int), mask task.CPUSet, priority task.Priority) {
	mask = normalizeMask(mask, s.numCPU)
	priority = task.ClampPriority(priority)

	for _, cpu := range cpuBits(mask) {
		if s.queues[cpu].idle() {
			s.queues[cpu].push(workItem{resume: resume, priority: priority})
			return
		}
	}

	cpu := s.nextTieBreak(mask)
	if cpu < 0 {
		// mask named no valid CPU at all: normalizeMask expands an empty
		// mask to every CPU, so this only happens when every bit set in mask
		// is at or beyond numCPU.
		cpu = 0
	}
	s.queues[cpu].push(workItem{resume: resume, priority: priority})
}

// seedTieBreakCounter draws a starting point for the golden-ratio tie-break
// sequence from a weak entropy source, so two schedulers started moments
// apart don't walk the same low-discrepancy sequence in lockstep.
func seedTieBreakCounter() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	// Only 32 bits of the draw are kept: counter*phi then stays well inside
	// float64's exact range, so its fractional part keeps varying between
	// tie-breaks instead of collapsing to 0.
	return binary.LittleEndian.Uint64(buf[:]) >> 32
}

func (s *Scheduler) nextTieBreak(mask task.CPUSet) int {
	s.counMu.Lock()
	s.counter++
	c := s.counter
	s.counMu.Unlock()
	return pickTieBreak(c, mask)
}

// ScheduleEvent implements task.Scheduler. It registers resume to run,
// through the normal Schedule path, once waiter becomes signaled.
func (s *Scheduler) ScheduleEvent(resume func(cpu int), waiter task.EventWaiter, mask task.CPUSet, priority task.Priority) error {
	if s.mux == nil {
		return task.ErrUnsupportedEvent
	}
	ref, ok := waiter.(*event.Ref)
	if !ok {
		return task.ErrUnsupportedEvent
	}
	return s.mux.Register(ref, func() {
		s.Schedule(resume, mask, priority)
	})
}

// ScheduleAfter registers resume to run, through the normal Schedule path,
// once after elapses. It is the supplemented delayed-scheduling feature.
func (s *Scheduler) ScheduleAfter(after time.Duration, resume func(cpu int), mask task.CPUSet, priority task.Priority) {
	s.delay.add(after, resume, mask, priority)
}

// ReportPanic implements task.Scheduler.
func (s *Scheduler) ReportPanic(cpu int, panicInfo any, stack []byte) {
	s.metrics.RecordPanic(cpu, panicInfo)
	s.panicHandler.HandlePanic(cpu, panicInfo, stack)
}

// RecentHistory returns up to limit of the most recently completed
// resumptions on the given CPU's queue, most recent first. limit <= 0
// returns everything retained. It reports false if cpu is out of range.
func (s *Scheduler) RecentHistory(cpu, limit int) ([]ResumeRecord, bool) {
	if cpu < 0 || cpu >= len(s.queues) {
		return nil, false
	}
	return s.queues[cpu].recentHistory(limit), true
}

// Stats snapshots every queue plus the scheduler-wide counters.
func (s *Scheduler) Stats() SchedulerStats {
	out := SchedulerStats{Queues: make([]QueueStats, len(s.queues)), NumCPU: s.numCPU}
	for i, q := range s.queues {
		out.Queues[i] = q.stats()
	}
	out.DelayedTasks = s.delay.count()
	s.shutdownMu.Lock()
	out.ShuttingDown = s.shuttingDown
	s.shutdownMu.Unlock()
	return out
}

// Shutdown stops the event multiplexer, then every per-CPU worker, then the
// delay timer. It blocks until all of them have exited.
func (s *Scheduler) Shutdown() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.mux != nil {
		_ = s.mux.Close()
	}
	for _, q := range s.queues {
		q.shutdown()
	}
	s.delay.stop()
}
