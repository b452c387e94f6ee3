package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kalder/weather-staging/internal/orchestrator"
	"github.com/kalder/weather-staging/internal/store"
	"github.com/kalder/weather-staging/internal/wx/providers"
)

// RunBudget derives the deadline for one collection run. Worst case per
// outbound call, every attempt burns the full HTTP timeout plus the backoff
// sleeps between attempts; a location issues callsPerLocation such calls
// sequentially, and locations beyond the pool width serialize into batches.
// One extra batch of slack absorbs staging and scheduling overhead.
func RunBudget(httpTimeout time.Duration, retry providers.RetryConfig, callsPerLocation, locations, parallelism int) time.Duration {
	if parallelism < 1 {
		parallelism = 1
	}
	n := retry.MaxAttempts
	backoff := retry.BaseDelay * time.Duration(n*(n-1)/2)
	perCall := time.Duration(n)*httpTimeout + backoff
	batches := (locations + parallelism - 1) / parallelism
	return perCall * time.Duration(callsPerLocation) * time.Duration(batches+1)
}

// Scheduler periodically executes collection runs and records their results.
type Scheduler struct {
	scheduler *gocron.Scheduler
	orch      *orchestrator.Orchestrator
	runs      *store.RunStore
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler. Each run is bounded by timeout so a stuck
// provider cannot stall the schedule indefinitely.
func New(orch *orchestrator.Orchestrator, runs *store.RunStore, interval, timeout time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		orch:      orch,
		runs:      runs,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		result, err := s.orch.Run(ctx)
		s.runs.Record(result)
		if err != nil {
			s.logger.Error("collection run failed", zap.String("run_id", result.RunID), zap.Error(err))
			return
		}
		s.logger.Info("collection run recorded",
			zap.String("run_id", result.RunID),
			zap.Int("succeeded", result.Succeeded()),
			zap.Int("failed", len(result.Failed())),
		)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
