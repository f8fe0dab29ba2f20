package prometheus

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/corofab/corofab/engine"
)

type schedulerStub struct {
	stats engine.SchedulerStats
}

func (s schedulerStub) Stats() engine.SchedulerStats { return s.stats }

func TestSnapshotPoller_CollectsSchedulerStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	require.NoError(t, err)

	poller.AddScheduler("sched-a", schedulerStub{stats: engine.SchedulerStats{
		NumCPU:       2,
		DelayedTasks: 3,
		Queues: []engine.QueueStats{
			{CPU: 0, NormalDepth: 4, HighDepth: 1, Active: true, ResumedTotal: 10, RejectedTotal: 2},
			{CPU: 1, NormalDepth: 0, HighDepth: 0, Active: false, ResumedTotal: 5, RejectedTotal: 0},
		},
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	require.Eventually(t, func() bool {
		normal := testutil.ToFloat64(poller.queueNormalDepth.WithLabelValues("sched-a", "0"))
		active := testutil.ToFloat64(poller.queueActive.WithLabelValues("sched-a", "0"))
		return normal == 4 && active == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, float64(1), testutil.ToFloat64(poller.queueHighDepth.WithLabelValues("sched-a", "0")))
	require.Equal(t, float64(10), testutil.ToFloat64(poller.queueResumed.WithLabelValues("sched-a", "0")))
	require.Equal(t, float64(2), testutil.ToFloat64(poller.queueRejected.WithLabelValues("sched-a", "0")))
	require.Equal(t, float64(0), testutil.ToFloat64(poller.queueActive.WithLabelValues("sched-a", "1")))
	require.Equal(t, float64(3), testutil.ToFloat64(poller.delayedTasks.WithLabelValues("sched-a")))
	require.Equal(t, float64(2), testutil.ToFloat64(poller.numCPU.WithLabelValues("sched-a")))
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func TestSnapshotPoller_AddSchedulerIgnoresNilProvider(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	require.NoError(t, err)

	poller.AddScheduler("nil-sched", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	require.Equal(t, float64(0), testutil.ToFloat64(poller.numCPU.WithLabelValues("nil-sched")))
}
