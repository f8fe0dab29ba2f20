package prometheus

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/corofab/corofab/task"
)

func TestMetricsExporterRecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("corofab", reg, ExporterOptions{})
	require.NoError(t, err)

	exporter.RecordResumeDuration(0, task.PriorityHigh, 250*time.Millisecond)
	exporter.RecordPanic(0, "boom")
	exporter.RecordQueueDepth(0, task.PriorityNormal, 7)
	exporter.RecordRejected("shutdown")

	require.Equal(t, float64(1), testutil.ToFloat64(exporter.panicTotal.WithLabelValues("0")))
	require.Equal(t, float64(7), testutil.ToFloat64(exporter.queueDepth.WithLabelValues("0", "normal")))
	require.Equal(t, float64(1), testutil.ToFloat64(exporter.rejectedTotal.WithLabelValues("shutdown")))

	histCount, err := histogramSampleCount(exporter.resumeDurationSeconds.WithLabelValues("0", "high"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), histCount)
}

func TestMetricsExporterAlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("corofab", reg, ExporterOptions{})
	require.NoError(t, err)
	second, err := NewMetricsExporter("corofab", reg, ExporterOptions{})
	require.NoError(t, err)

	first.RecordPanic(1, nil)
	second.RecordPanic(1, nil)

	require.Equal(t, float64(2), testutil.ToFloat64(first.panicTotal.WithLabelValues("1")))
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
