package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/metrics"
)

const defaultInterval = time.Hour

type RunnerParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.JobMetrics
	Interval time.Duration
}

// Runner executes every registered job once per interval. A failing job is
// logged and counted; the remaining jobs still run.
type Runner struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.JobMetrics
	interval time.Duration
}

func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Runner{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run performs a cycle immediately, then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if err := r.cycle(ctx); err != nil {
			r.logg.Error(ctx, "maintenance cycle failed", err)
		}
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "maintenance runner stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) cycle(ctx context.Context) error {
	locked, err := r.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !locked {
		r.logg.Info(ctx, "maintenance lock held elsewhere; skipping cycle")
		return nil
	}
	defer func() {
		if err := r.lock.Release(ctx); err != nil {
			r.logg.Error(ctx, "failed to release maintenance lock", err)
		}
	}()

	for _, job := range r.registry.Jobs() {
		jobCtx := r.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "maintenance.job"})
		started := time.Now()
		err := job.Run(jobCtx)
		r.metrics.Track(job.Name(), started, err)
		jobCtx = r.logg.WithField(jobCtx, "duration_ms", time.Since(started).Milliseconds())
		if err != nil {
			r.logg.Error(jobCtx, "job failed", err)
			continue
		}
		r.logg.Info(jobCtx, "job completed")
	}
	return nil
}
