package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/config"
	"github.com/spec-kit/ticket-warden/internal/observability"
	"github.com/spec-kit/ticket-warden/internal/service"
)

// SweepRunner performs one inactivity sweep.
type SweepRunner interface {
	SweepInactive(ctx context.Context, now time.Time) ([]service.SweepAction, error)
}

// Sweeper schedules the inactivity sweep. At most one sweep runs at a time;
// a tick that arrives while one is in flight is skipped.
type Sweeper struct {
	runner  SweepRunner
	spec    string
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time

	cron    *cron.Cron
	once    sync.Once
	started atomic.Bool
	running atomic.Bool
}

// NewSweeper builds a sweeper firing on the policy's sweep interval.
func NewSweeper(runner SweepRunner, policy config.TicketPolicyConfig, metrics *observability.Metrics, logger *zap.Logger) *Sweeper {
	logger = logger.Named("sweeper")
	cronLog := observability.CronLogger(logger)
	return &Sweeper{
		runner:  runner,
		spec:    policy.SweepSpec(),
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}
}

// Start schedules the sweep. Later calls are no-ops, so it is safe to call
// on every gateway reconnect. Scheduled runs use ctx.
func (s *Sweeper) Start(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		if _, err = s.cron.AddFunc(s.spec, func() { s.run(ctx) }); err != nil {
			err = fmt.Errorf("schedule sweep %q: %w", s.spec, err)
			return
		}
		s.cron.Start()
		s.started.Store(true)
		s.logger.Info("sweeper started", zap.String("schedule", s.spec))
	})
	return err
}

// Stop halts scheduling and waits for an in-flight sweep to finish or ctx
// to expire.
func (s *Sweeper) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce sweeps immediately unless a sweep is already running, in which
// case ran is false.
func (s *Sweeper) RunOnce(ctx context.Context) (actions []service.SweepAction, ran bool, err error) {
	return s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) ([]service.SweepAction, bool, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.Inc(observability.MetricSweepsSkipped)
		s.logger.Debug("sweep already running; skipped")
		return nil, false, nil
	}
	defer s.running.Store(false)

	runID := uuid.NewString()
	start := time.Now()
	s.metrics.Inc(observability.MetricSweepRuns)

	actions, err := s.runner.SweepInactive(ctx, s.now())

	retired, sanctioned, failed := 0, 0, 0
	for _, action := range actions {
		if action.Retired {
			retired++
		}
		sanctioned += len(action.SanctionedGuilds)
		failed += len(action.SanctionErrors)
	}
	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.Int("retired", retired),
		zap.Int("sanctions", sanctioned),
		zap.Int("sanction_failures", failed),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		s.logger.Warn("sweep incomplete", append(fields, zap.Error(err))...)
		return actions, true, err
	}
	if len(actions) > 0 {
		s.logger.Info("sweep finished", fields...)
	} else {
		s.logger.Debug("sweep finished", fields...)
	}
	return actions, true, nil
}
