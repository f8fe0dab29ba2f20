package engine

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/corofab/corofab/task"
)

// delayedItem is one pending ScheduleAfter registration.
type delayedItem struct {
	runAt    time.Time
	resume   func(cpu int)
	mask     task.CPUSet
	priority task.Priority
	index    int // heap.Interface bookkeeping
}

// delayedItemPool recycles delayedItem nodes the same way the task
// allocator in b97tsk-async recycles whole task structs: delayed
// registrations are created and destroyed constantly under timer-driven
// workloads, and the node's fields are trivial to reset between uses.
var delayedItemPool = sync.Pool{New: func() any { return &delayedItem{} }}

func acquireDelayedItem() *delayedItem {
	return delayedItemPool.Get().(*delayedItem)
}

// releaseDelayedItem returns it to the pool. It must only be called once
// the item has been popped off the heap and handed to the scheduler, never
// while it might still be referenced by heap internals.
func releaseDelayedItem(it *delayedItem) {
	*it = delayedItem{}
	delayedItemPool.Put(it)
}

type delayedHeap []*delayedItem

func (h delayedHeap) Len() int           { return len(h) }
func (h delayedHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }
func (h delayedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedHeap) Push(x any) {
	item := x.(*delayedItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

func (h delayedHeap) peek() *delayedItem {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// delayManager is the min-heap timer goroutine backing
// Scheduler.ScheduleAfter. It wakes once per change to the soonest
// deadline rather than polling.
type delayManager struct {
	mu     sync.Mutex
	pq     delayedHeap
	wakeup chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	fire func(resume func(cpu int), mask task.CPUSet, priority task.Priority)
}

func newDelayManager(fire func(func(cpu int), task.CPUSet, task.Priority)) *delayManager {
	ctx, cancel := context.WithCancel(context.Background())
	dm := &delayManager{
		pq:     make(delayedHeap, 0),
		wakeup: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		fire:   fire,
	}
	heap.Init(&dm.pq)
	go dm.loop()
	return dm
}

func (dm *delayManager) add(after time.Duration, resume func(cpu int), mask task.CPUSet, priority task.Priority) {
	dm.mu.Lock()
	item := acquireDelayedItem()
	item.runAt = time.Now().Add(after)
	item.resume = resume
	item.mask = mask
	item.priority = priority
	heap.Push(&dm.pq, item)
	becameSoonest := item.index == 0
	dm.mu.Unlock()

	if becameSoonest {
		select {
		case dm.wakeup <- struct{}{}:
		default:
		}
	}
}

func (dm *delayManager) loop() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		next := dm.nextDeadline()
		if next <= 0 {
			next = 1000 * time.Hour
		}
		timer.Reset(next)

		select {
		case <-dm.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			dm.fireExpired()
		case <-dm.wakeup:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

func (dm *delayManager) nextDeadline() time.Duration {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := dm.pq.peek()
	if item == nil {
		return 0
	}
	if d := time.Until(item.runAt); d > 0 {
		return d
	}
	// Already due: a minimal positive wait makes loop fire it on the next
	// timer tick instead of treating the heap as empty.
	return time.Nanosecond
}

func (dm *delayManager) fireExpired() {
	dm.mu.Lock()
	now := time.Now()
	var expired []*delayedItem
	for dm.pq.Len() > 0 && !dm.pq.peek().runAt.After(now) {
		expired = append(expired, heap.Pop(&dm.pq).(*delayedItem))
	}
	dm.mu.Unlock()

	for _, item := range expired {
		dm.fire(item.resume, item.mask, item.priority)
		releaseDelayedItem(item)
	}
}

func (dm *delayManager) stop() {
	dm.cancel()
	dm.mu.Lock()
	dm.pq = make(delayedHeap, 0)
	heap.Init(&dm.pq)
	dm.mu.Unlock()
}

func (dm *delayManager) count() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.pq)
}
