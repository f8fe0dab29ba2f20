package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/corofab/corofab/engine"
)

// SchedulerSnapshotProvider provides a current engine.SchedulerStats
// snapshot, satisfied by *engine.Scheduler.
type SchedulerSnapshotProvider interface {
	Stats() engine.SchedulerStats
}

// SnapshotPoller periodically exports Scheduler.Stats() snapshots into
// Prometheus gauges, keyed by scheduler name.
type SnapshotPoller struct {
	interval time.Duration

	mu         sync.RWMutex
	schedulers map[string]SchedulerSnapshotProvider

	queueNormalDepth *prom.GaugeVec
	queueHighDepth   *prom.GaugeVec
	queueActive      *prom.GaugeVec
	queueResumed     *prom.GaugeVec
	queueRejected    *prom.GaugeVec
	delayedTasks     *prom.GaugeVec
	numCPU           *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	queueNormalDepth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "corofab",
		Name:      "queue_normal_depth",
		Help:      "Normal-priority ready-queue depth per CPU.",
	}, []string{"scheduler", "cpu"})
	queueHighDepth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "corofab",
		Name:      "queue_high_depth",
		Help:      "High-priority ready-queue depth per CPU.",
	}, []string{"scheduler", "cpu"})
	queueActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "corofab",
		Name:      "queue_active",
		Help:      "Whether the per-CPU worker currently has a resume in flight.",
	}, []string{"scheduler", "cpu"})
	queueResumed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "corofab",
		Name:      "queue_resumed_total",
		Help:      "Cumulative resumes handled per CPU, snapshot.",
	}, []string{"scheduler", "cpu"})
	queueRejected := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "corofab",
		Name:      "queue_rejected_total",
		Help:      "Cumulative rejected work items per CPU, snapshot.",
	}, []string{"scheduler", "cpu"})
	delayedTasks := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "corofab",
		Name:      "delayed_tasks",
		Help:      "Outstanding ScheduleAfter registrations.",
	}, []string{"scheduler"})
	numCPU := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "corofab",
		Name:      "num_cpu",
		Help:      "Number of per-CPU queues owned by the scheduler.",
	}, []string{"scheduler"})

	var err error
	if queueNormalDepth, err = registerCollector(reg, queueNormalDepth); err != nil {
		return nil, err
	}
	if queueHighDepth, err = registerCollector(reg, queueHighDepth); err != nil {
		return nil, err
	}
	if queueActive, err = registerCollector(reg, queueActive); err != nil {
		return nil, err
	}
	if queueResumed, err = registerCollector(reg, queueResumed); err != nil {
		return nil, err
	}
	if queueRejected, err = registerCollector(reg, queueRejected); err != nil {
		return nil, err
	}
	if delayedTasks, err = registerCollector(reg, delayedTasks); err != nil {
		return nil, err
	}
	if numCPU, err = registerCollector(reg, numCPU); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:         interval,
		schedulers:       make(map[string]SchedulerSnapshotProvider),
		queueNormalDepth: queueNormalDepth,
		queueHighDepth:   queueHighDepth,
		queueActive:      queueActive,
		queueResumed:     queueResumed,
		queueRejected:    queueRejected,
		delayedTasks:     delayedTasks,
		numCPU:           numCPU,
	}, nil
}

// AddScheduler adds or replaces a scheduler snapshot provider by name.
func (p *SnapshotPoller) AddScheduler(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.mu.Lock()
	p.schedulers[name] = provider
	p.mu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for name, provider := range p.schedulers {
		stats := provider.Stats()
		p.numCPU.WithLabelValues(name).Set(float64(stats.NumCPU))
		p.delayedTasks.WithLabelValues(name).Set(float64(stats.DelayedTasks))
		for _, q := range stats.Queues {
			cpu := cpuLabel(q.CPU)
			p.queueNormalDepth.WithLabelValues(name, cpu).Set(float64(q.NormalDepth))
			p.queueHighDepth.WithLabelValues(name, cpu).Set(float64(q.HighDepth))
			p.queueResumed.WithLabelValues(name, cpu).Set(float64(q.ResumedTotal))
			p.queueRejected.WithLabelValues(name, cpu).Set(float64(q.RejectedTotal))
			if q.Active {
				p.queueActive.WithLabelValues(name, cpu).Set(1)
			} else {
				p.queueActive.WithLabelValues(name, cpu).Set(0)
			}
		}
	}
}
