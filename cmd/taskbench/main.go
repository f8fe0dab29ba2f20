// Command taskbench is a small demo/benchmark harness for the engine
// scheduler: it spins up a Scheduler, fires a batch of suspending tasks
// across it, and optionally serves the resulting Prometheus metrics.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/corofab/corofab/engine"
	"github.com/corofab/corofab/event"
	obs "github.com/corofab/corofab/observability/prometheus"
	"github.com/corofab/corofab/task"
)

func main() {
	app := &cli.App{
		Name:  "taskbench",
		Usage: "drive the corofab scheduler with a batch of suspending tasks",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "cpus", Value: 0, Usage: "worker queues to create (0 = detect host CPU count)"},
			&cli.IntFlag{Name: "tasks", Value: 64, Usage: "number of tasks to run"},
			&cli.IntFlag{Name: "hops", Value: 3, Usage: "suspend-and-resume hops per task"},
			&cli.BoolFlag{Name: "metrics", Usage: "serve Prometheus metrics while running"},
			&cli.StringFlag{Name: "metrics-addr", Value: ":2112", Usage: "address for the metrics HTTP server"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	numCPU := c.Int("cpus")
	numTasks := c.Int("tasks")
	hops := c.Int("hops")

	opts := []engine.Option{}

	var reg *prometheus.Registry
	var poller *obs.SnapshotPoller
	if c.Bool("metrics") {
		reg = prometheus.NewRegistry()
		exporter, err := obs.NewMetricsExporter("taskbench", reg, obs.ExporterOptions{})
		if err != nil {
			return fmt.Errorf("taskbench: metrics exporter: %w", err)
		}
		opts = append(opts, engine.WithMetrics(exporter))

		poller, err = obs.NewSnapshotPoller(reg, 200*time.Millisecond)
		if err != nil {
			return fmt.Errorf("taskbench: snapshot poller: %w", err)
		}
	}

	sched := engine.NewScheduler(numCPU, opts...)
	defer sched.Shutdown()

	if poller != nil {
		poller.AddScheduler("taskbench", sched)
		poller.Start(c.Context)
		defer poller.Stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: c.String("metrics-addr"), Handler: mux}
		go func() { _ = server.ListenAndServe() }()
		defer func() {
			_ = server.Close()
		}()
		fmt.Printf("metrics available at http://127.0.0.1%s/metrics\n", c.String("metrics-addr"))
	}

	wakeup, err := event.NewEvent()
	if err != nil {
		return fmt.Errorf("taskbench: new event: %w", err)
	}
	ref := wakeup.NewRef()

	start := time.Now()
	joins := make([]task.JoinVoidTask, numTasks)
	for i := 0; i < numTasks; i++ {
		joins[i] = task.JoinableVoid(sched, func(y *task.Yielder) {
			for h := 0; h < hops; h++ {
				y.Suspend(engine.AllCPUs, engine.PriorityNormal)
			}
			_ = y.AwaitEvent(ref, engine.AllCPUs, engine.PriorityHigh)
		})
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = wakeup.Signal()
	}()

	for _, j := range joins {
		j.Join()
	}
	elapsed := time.Since(start)

	stats := sched.Stats()
	fmt.Printf("ran %d tasks x %d hops across %d queues in %s\n", numTasks, hops, stats.NumCPU, elapsed)
	for _, q := range stats.Queues {
		fmt.Printf("  cpu %d: resumed=%d rejected=%d\n", q.CPU, q.ResumedTotal, q.RejectedTotal)
	}

	if c.Bool("metrics") {
		// Give the last scrape a moment before shutdown tears the server down.
		time.Sleep(300 * time.Millisecond)
	}
	return nil
}
