// Package jobs runs the periodic background tasks (scheduled post
// publishing, daily rollup, counter reconciliation) and records their metrics.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/reelcast/internal/tracing"
)

// ErrAlreadyRunning is returned by RunNow while a run of the same job is in progress.
var ErrAlreadyRunning = errors.New("job already running")

// ErrUnknownJob is returned by Registry.RunNow for unregistered job names.
var ErrUnknownJob = errors.New("unknown job")

// Task performs one run of a job and returns a short summary for logging.
type Task func(ctx context.Context) (string, error)

// JobMetrics receives one observation per run attempt.
type JobMetrics interface {
	ObserveRun(job, outcome string, elapsed time.Duration)
	MarkSuccess(job string, at time.Time)
}

// Default timings.
const (
	DefaultInterval = time.Minute
	DefaultTimeout  = 5 * time.Minute
)

// Config configures a periodic job.
type Config struct {
	// Name labels logs and metrics, e.g. JobTypeDailyRollup.
	Name string
	// Interval is the duration between runs.
	Interval time.Duration
	// Timeout bounds a single run.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics JobMetrics
}

// Periodic runs a Task on a ticker, at most one run at a time.
type Periodic struct {
	config Config
	task   Task

	runMu sync.Mutex // held for the duration of a run

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPeriodic creates a periodic job.
func NewPeriodic(config Config, task Task) *Periodic {
	if config.Interval == 0 {
		config.Interval = DefaultInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	config.Logger = config.Logger.With("job", config.Name)
	return &Periodic{config: config, task: task}
}

// Name returns the job name.
func (j *Periodic) Name() string {
	return j.config.Name
}

// Start begins the periodic loop in a background goroutine.
func (j *Periodic) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.loop(ctx)
}

// Stop signals the loop to stop and waits for it to finish.
func (j *Periodic) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh, doneCh := j.stopCh, j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning reports whether the periodic loop is active.
func (j *Periodic) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// Run starts the loop and blocks until ctx is cancelled. It fits an errgroup.
func (j *Periodic) Run(ctx context.Context) error {
	j.Start(ctx)
	<-ctx.Done()
	j.Stop()
	return nil
}

func (j *Periodic) loop(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("job stopping due to stop signal")
			return
		case <-ticker.C:
			if err := j.RunNow(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				j.config.Logger.Error("job run failed", "error", err)
			}
		}
	}
}

// RunNow executes the task once. A run already in progress makes it return
// ErrAlreadyRunning without waiting.
func (j *Periodic) RunNow(parentCtx context.Context) (err error) {
	if !j.runMu.TryLock() {
		j.observe(StatusSkipped, 0)
		return ErrAlreadyRunning
	}
	defer j.runMu.Unlock()

	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()
	ctx, endSpan := tracing.StartSpan(ctx, "job "+j.config.Name, attribute.String("job.name", j.config.Name))
	defer func() { endSpan(err) }()

	start := time.Now()
	summary, err := j.task(ctx)
	elapsed := time.Since(start)
	tracing.SetAttributes(ctx, attribute.String("job.summary", summary))

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		j.observe(StatusTimeout, elapsed)
	case err != nil:
		j.observe(StatusFailure, elapsed)
	default:
		j.observe(StatusSuccess, elapsed)
		if j.config.Metrics != nil {
			j.config.Metrics.MarkSuccess(j.config.Name, time.Now())
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", j.config.Name, err)
	}
	j.config.Logger.Info("job completed", "duration_seconds", elapsed.Seconds(), "summary", summary)
	return nil
}

func (j *Periodic) observe(outcome string, elapsed time.Duration) {
	if j.config.Metrics != nil {
		j.config.Metrics.ObserveRun(j.config.Name, outcome, elapsed)
	}
}

// Registry indexes jobs by name for on-demand runs.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Periodic
}

// NewRegistry creates a registry holding jobs.
func NewRegistry(jobs ...*Periodic) *Registry {
	r := &Registry{jobs: make(map[string]*Periodic, len(jobs))}
	for _, j := range jobs {
		r.jobs[j.Name()] = j
	}
	return r
}

// Names returns registered job names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.jobs))
	for n := range r.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Jobs returns the registered jobs in name order.
func (r *Registry) Jobs() []*Periodic {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Periodic, 0, len(names))
	for _, n := range names {
		out = append(out, r.jobs[n])
	}
	return out
}

// RunNow runs the named job once.
func (r *Registry) RunNow(ctx context.Context, name string) error {
	r.mu.RLock()
	j, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return j.RunNow(ctx)
}
