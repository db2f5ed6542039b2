package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/openaid/aid-inventory/pkg/logger"
)

// runner is anything the worker keeps alive until shutdown.
type runner interface {
	Run(ctx context.Context) error
}

type pinger func(context.Context) error

type ServiceParams struct {
	Logger *logger.Logger
	// Ready is checked once before any runner starts.
	Ready   map[string]pinger
	Runners map[string]runner
}

// Service runs the alert consumer, the maintenance loop and the metrics
// listener side by side. The first runner to fail stops the others.
type Service struct {
	logg    *logger.Logger
	ready   map[string]pinger
	runners map[string]runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	runners := make(map[string]runner, len(params.Runners))
	for name, r := range params.Runners {
		if r != nil {
			runners[name] = r
		}
	}
	if len(runners) == 0 {
		return nil, errors.New("at least one runner is required")
	}
	return &Service{logg: params.Logger, ready: params.Ready, runners: runners}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, ping := range s.ready {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "worker dependencies ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for name, r := range s.runners {
		name, r := name, r
		group.Go(func() error {
			runCtx := s.logg.WithField(groupCtx, "runner", name)
			s.logg.Info(runCtx, "runner started")
			err := r.Run(runCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(runCtx, "runner stopped unexpectedly", err)
				return fmt.Errorf("%s: %w", name, err)
			}
			return err
		})
	}
	return group.Wait()
}

// runFunc adapts a plain function to runner.
type runFunc func(ctx context.Context) error

func (f runFunc) Run(ctx context.Context) error { return f(ctx) }
