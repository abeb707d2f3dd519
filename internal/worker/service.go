package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/pkg/config"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
	"github.com/angelmondragon/interpretz-backend/pkg/metrics"
)

const fallbackInterval = 15 * time.Minute

// ServiceParams configure the worker service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Policies policy.Service
	Metrics  *metrics.CronJobMetrics
	Engine   config.EngineConfig
}

// Service executes registered jobs on a cadence derived from the active
// policy mode. URGENT mode shortens the interval so pooled bookings are
// swept more often; BALANCE stretches it.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	policies policy.Service
	metrics  *metrics.CronJobMetrics
	engine   config.EngineConfig
}

// NewService builds a worker service.
func NewService(params ServiceParams) (*Service, error) {
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
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		policies: params.Policies,
		metrics:  params.Metrics,
		engine:   params.Engine,
	}, nil
}

// Run starts the worker loop until the context is canceled. The interval is
// re-resolved after every cycle so mode transitions take effect without a
// restart.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "worker cycle failed", err)
	}
	timer := time.NewTimer(s.interval(ctx))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker service context canceled")
			return ctx.Err()
		case <-timer.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "worker cycle failed", err)
			}
			timer.Reset(s.interval(ctx))
		}
	}
}

// interval resolves the active policy mode and maps it to the configured
// worker cadence. Resolution failures fall back to the NORMAL interval so
// the loop keeps running through transient outages.
func (s *Service) interval(ctx context.Context) time.Duration {
	if s.policies == nil {
		return s.modeInterval("")
	}
	resolved, err := s.policies.Resolve(ctx)
	if err != nil {
		s.logg.Error(ctx, "failed to resolve policy mode for worker cadence", err)
		return s.modeInterval("")
	}
	return s.modeInterval(resolved.Mode.String())
}

func (s *Service) modeInterval(mode string) time.Duration {
	interval := s.engine.WorkerInterval(mode)
	if interval <= 0 {
		return fallbackInterval
	}
	return interval
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another worker instance is running; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release worker lock", relErr)
		}
	}()

	s.logg.Info(ctx, "worker cycle starting")
	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	s.logg.Info(ctx, "worker cycle complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "worker.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.observeDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.recordFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.recordSuccess(job.Name())
}

func (s *Service) observeDuration(job string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(job, duration)
}

func (s *Service) recordSuccess(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncSuccess(job)
}

func (s *Service) recordFailure(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncFailure(job)
}
