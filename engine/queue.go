package engine

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corofab/corofab/affinity"
	"github.com/corofab/corofab/internal/queue"
	"github.com/corofab/corofab/task"
)

// workItem is one entry on a per-CPU ready queue: a resume closure plus
// the priority it was scheduled at (carried along only for metrics/stats;
// dispatch order is already decided by which of the two rings it landed in).
type workItem struct {
	resume   func(cpu int)
	priority task.Priority
}

// Queue is the per-CPU work queue: one pinned OS thread, two
// priority-ordered ready queues, and a counting semaphore that tracks how
// many resumable items are outstanding across both of them.
type Queue struct {
	cpu int

	high   *queue.Ring[workItem]
	normal *queue.Ring[workItem]
	sem    chan struct{}

	active atomic.Bool

	resumedTotal  atomic.Int64
	rejectedTotal atomic.Int64
	history       resumeHistory

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler
}

// semCapacity bounds the counting semaphore. It is large enough that a
// burst of scheduled work never blocks a producer; the ready queues
// themselves, not the semaphore, hold the actual backlog.
const semCapacity = 1 << 20

func newQueue(cpu int, logger Logger, metrics Metrics, panicHandler PanicHandler) *Queue {
	q := &Queue{
		cpu:          cpu,
		high:         queue.NewRing[workItem](),
		normal:       queue.NewRing[workItem](),
		sem:          make(chan struct{}, semCapacity),
		history:      newResumeHistory(defaultResumeHistoryCapacity),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger,
		metrics:      metrics,
		panicHandler: panicHandler,
	}
	go q.run()
	return q
}

// push enqueues item on the ring matching its priority and signals the
// worker. It never blocks: the semaphore capacity is sized so producers
// never stall behind a slow worker. Resource exhaustion (the semaphore
// already at its 1<<20 cap) is surfaced at this allocation site rather
// than silently dropping the item: a dropped item's resume closure would
// never run, so whatever task handed it to the scheduler would suspend
// and never be woken again. The queue does not try to recover from that.
func (q *Queue) push(item workItem) {
	select {
	case q.sem <- struct{}{}:
	default:
		q.rejectedTotal.Add(1)
		q.metrics.RecordRejected("semaphore saturated")
		q.logger.Error("queue saturated, dropping resume", F("cpu", q.cpu), F("priority", item.priority))
		panic(fmt.Sprintf("engine: queue for cpu %d saturated at %d outstanding items", q.cpu, semCapacity))
	}
	priority := task.ClampPriority(item.priority)
	if priority == task.PriorityHigh {
		q.high.Push(item)
	} else {
		q.normal.Push(item)
	}
	q.metrics.RecordQueueDepth(q.cpu, priority, q.high.Len()+q.normal.Len())
}

func (q *Queue) run() {
	defer close(q.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := affinity.Pin(q.cpu); err != nil {
		q.logger.Warn("worker cpu pin failed", F("cpu", q.cpu), F("err", err))
	}

	for {
		select {
		case <-q.stop:
			return
		case <-q.sem:
		}

		// A token only promises that a push happened, not that its ring
		// store is visible yet (push sends on sem before it pushes onto the
		// ring), so a dequeue can legitimately come up empty right after
		// waking. Retry within this same token until a handle is obtained;
		// giving up and waiting on the semaphore again would strand the
		// token's item until some future push supplies another one.
		item, ok := q.dequeue()
		for !ok {
			select {
			case <-q.stop:
				return
			default:
			}
			runtime.Gosched()
			item, ok = q.dequeue()
		}

		q.active.Store(true)
		q.resumeOne(item)
		q.active.Store(false)
	}
}

func (q *Queue) dequeue() (workItem, bool) {
	if item, ok := q.high.Pop(); ok {
		return item, true
	}
	return q.normal.Pop()
}

// resumeOne runs item.resume to completion. For a Suspend-registered
// closure this blocks until the resumed frame either suspends again or
// finishes, satisfying "no further dispatch until resume returns."
func (q *Queue) resumeOne(item workItem) {
	start := time.Now()
	panicked := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				// item.resume itself should never panic (it only parks and
				// unparks a frame's own goroutine); a panic here means a
				// caller-supplied resume closure misbehaved.
				panicked = true
				q.metrics.RecordPanic(q.cpu, r)
				q.panicHandler.HandlePanic(q.cpu, r, debug.Stack())
			}
		}()
		item.resume(q.cpu)
	}()
	finished := time.Now()
	q.resumedTotal.Add(1)
	q.metrics.RecordResumeDuration(q.cpu, item.priority, finished.Sub(start))
	q.history.add(ResumeRecord{
		CPU:        q.cpu,
		Priority:   item.priority,
		StartedAt:  start,
		FinishedAt: finished,
		Duration:   finished.Sub(start),
		Panicked:   panicked,
	})
}

// recentHistory returns up to limit of this queue's most recently completed
// resumptions, most recent first. limit <= 0 returns everything retained.
func (q *Queue) recentHistory(limit int) []ResumeRecord {
	return q.history.recent(limit)
}

// idle reports whether the queue has no outstanding work and no resume in
// flight, the condition Scheduler.Schedule's first pass scans for.
func (q *Queue) idle() bool {
	return !q.active.Load() && q.high.IsEmpty() && q.normal.IsEmpty()
}

func (q *Queue) stats() QueueStats {
	return QueueStats{
		CPU:           q.cpu,
		NormalDepth:   q.normal.Len(),
		HighDepth:     q.high.Len(),
		Active:        q.active.Load(),
		ResumedTotal:  q.resumedTotal.Load(),
		RejectedTotal: q.rejectedTotal.Load(),
	}
}

func (q *Queue) shutdown() {
	q.stopOnce.Do(func() { close(q.stop) })
	<-q.done
}
