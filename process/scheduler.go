package process

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SchedulerConfig sets the loop cadence. Interval is the time between cycle
// starts, Tick how often the loop checks whether a run is due, Cooldown the
// extended wait after a loop-level fault.
type SchedulerConfig struct {
	Interval time.Duration
	Tick     time.Duration
	Cooldown time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: 30 * time.Minute,
		Tick:     time.Minute,
		Cooldown: 5 * time.Minute,
	}
}

// Scheduler drives the pipeline on a fixed cadence. The loop never dies on a
// processing fault and stops only through context cancellation, always
// between cycles.
type Scheduler struct {
	pipeline *Pipeline
	config   SchedulerConfig
	logger   *slog.Logger
}

func NewScheduler(pipeline *Pipeline, config SchedulerConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		config:   config,
		logger:   logger,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", slog.Duration("interval", s.config.Interval))

	next := time.Now()
	if s.pipeline.Backlog() {
		s.logger.Info("found pending work, running check immediately")
	} else {
		next = next.Add(s.config.Interval)
	}

	for {
		if time.Now().Before(next) {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopped")
				return
			case <-time.After(s.config.Tick):
			}
			continue
		}

		if err := s.runOnce(ctx); err != nil {
			s.logger.Error("scheduler fault", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopped")
				return
			case <-time.After(s.config.Cooldown):
			}
			continue
		}
		next = time.Now().Add(s.config.Interval)
	}
}

// runOnce shields the loop: a fault escaping the pipeline's own boundaries
// comes back as an error instead of killing the process.
func (s *Scheduler) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run cycle escaped: %v", r)
		}
	}()

	run := s.pipeline.RunCycle(ctx)
	s.logger.Info("cycle finished",
		slog.Int("found", run.VideosFound),
		slog.Int("processed", run.VideosProcessed),
		slog.Bool("success", run.Success))

	return nil
}
