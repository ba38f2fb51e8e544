// Package scheduler runs the background jobs of the service: engine
// initialization retries and cache sweeping.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/wildfire-risk-aggregation/internal/engine"
)

const initAttemptTimeout = 30 * time.Second

// EngineInitializer is the part of the engine client the init job drives.
type EngineInitializer interface {
	Initialize(ctx context.Context) error
	Lifecycle() *engine.Lifecycle
}

// Sweeper evicts expired entries and reports how many it removed.
type Sweeper interface {
	Sweep() int
}

type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
	stop      chan struct{}
}

func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    logger,
		stop:      make(chan struct{}),
	}
}

// ScheduleEngineInit retries engine initialization every interval, starting
// immediately, and removes the job once the engine is ready.
func (s *Scheduler) ScheduleEngineInit(eng EngineInitializer, interval time.Duration) error {
	job, err := s.scheduler.Every(interval).SingletonMode().Do(func() {
		if eng.Lifecycle().Ready() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), initAttemptTimeout)
		defer cancel()

		if err := eng.Initialize(ctx); err != nil {
			s.logger.Warn("engine initialization failed; will retry", "error", err, "retry_in", interval)
		}
	})
	if err != nil {
		return err
	}

	go func() {
		select {
		case <-eng.Lifecycle().Done():
			s.scheduler.RemoveByReference(job)
			s.logger.Info("engine ready; initialization job removed")
		case <-s.stop:
		}
	}()
	return nil
}

// ScheduleCacheSweep evicts expired cache entries every interval.
func (s *Scheduler) ScheduleCacheSweep(c Sweeper, interval time.Duration) error {
	_, err := s.scheduler.Every(interval).WaitForSchedule().SingletonMode().Do(func() {
		if n := c.Sweep(); n > 0 {
			s.logger.Debug("cache swept", "evicted", n)
		}
	})
	return err
}

// Start runs the scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels any future jobs. It must be called at
// most once.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.scheduler.Stop()
}
