// Package prometheus adapts engine.Metrics to Prometheus collectors.
package prometheus

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/corofab/corofab/engine"
	"github.com/corofab/corofab/task"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts engine.Metrics to Prometheus collectors.
type MetricsExporter struct {
	resumeDurationSeconds *prom.HistogramVec
	panicTotal            *prom.CounterVec
	rejectedTotal         *prom.CounterVec
	queueDepth            *prom.GaugeVec
}

var _ engine.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors backing
// engine.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "corofab"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "resume_duration_seconds",
		Help:      "Duration of a single worker resume slice, in seconds.",
		Buckets:   buckets,
	}, []string{"cpu", "priority"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "resume_panic_total",
		Help:      "Total number of panics recovered from a resumed continuation.",
	}, []string{"cpu"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "schedule_rejected_total",
		Help:      "Total number of work items rejected instead of scheduled.",
	}, []string{"reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current ready-queue depth for a CPU and priority.",
	}, []string{"cpu", "priority"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		resumeDurationSeconds: durationVec,
		panicTotal:            panicVec,
		rejectedTotal:         rejectedVec,
		queueDepth:            queueDepthVec,
	}, nil
}

func (m *MetricsExporter) RecordResumeDuration(cpu int, priority task.Priority, d time.Duration) {
	if m == nil {
		return
	}
	m.resumeDurationSeconds.WithLabelValues(cpuLabel(cpu), priorityLabel(priority)).Observe(d.Seconds())
}

func (m *MetricsExporter) RecordPanic(cpu int, panicInfo any) {
	if m == nil {
		return
	}
	m.panicTotal.WithLabelValues(cpuLabel(cpu)).Inc()
}

func (m *MetricsExporter) RecordQueueDepth(cpu int, priority task.Priority, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(cpuLabel(cpu), priorityLabel(priority)).Set(float64(depth))
}

func (m *MetricsExporter) RecordRejected(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.rejectedTotal.WithLabelValues(reason).Inc()
}

func cpuLabel(cpu int) string {
	if cpu < 0 {
		return "none"
	}
	return strconv.Itoa(cpu)
}

func priorityLabel(priority task.Priority) string {
	switch priority {
	case task.PriorityHigh:
		return "high"
	case task.PriorityNormal:
		return "normal"
	default:
		return "unknown"
	}
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
