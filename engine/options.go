package engine

// Option configures a Scheduler via NewScheduler: every field has a safe
// default, and callers only override what they need.
type Option func(*config)

type config struct {
	numCPU       int
	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler
	withEvents   bool
}

func defaultConfig() *config {
	return &config{
		numCPU:       0, // 0 means "ask affinity.NumCPU"
		logger:       &DefaultLogger{},
		metrics:      NilMetrics{},
		panicHandler: &DefaultPanicHandler{},
		withEvents:   true,
	}
}

// WithWorkerCount fixes the number of per-CPU queues instead of asking the
// platform how many CPUs the process may use.
func WithWorkerCount(n int) Option {
	return func(c *config) { c.numCPU = n }
}

// WithLogger overrides the scheduler's logger.
func WithLogger(l Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics overrides the scheduler's metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithPanicHandler overrides how resumed-continuation panics are reported.
func WithPanicHandler(h PanicHandler) Option {
	return func(c *config) { c.panicHandler = h }
}

// WithoutEventMultiplexer disables the OS-event multiplexer, so
// ScheduleEvent always fails with task.ErrUnsupportedEvent. Useful on
// platforms without a backend, or in tests that never await events.
func WithoutEventMultiplexer() Option {
	return func(c *config) { c.withEvents = false }
}
