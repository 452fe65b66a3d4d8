package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Refresher is the job the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Scheduler runs periodic snapshot refreshes.
type Scheduler struct {
	Cron   *cron.Cron
	Target Refresher
	Ctx    context.Context
	log    zerolog.Logger
}

// NewScheduler creates a Scheduler whose specs include a seconds field.
func NewScheduler(ctx context.Context, target Refresher, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:   cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		Target: target,
		Ctx:    ctx,
		log:    log,
	}
}

// Register schedules a refresh on spec, e.g. "*/30 * * * * *".
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	s.log.Info().Str("spec", spec).Msg("refresh task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow refreshes immediately.
func (s *Scheduler) RunNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	if err := s.Ctx.Err(); err != nil {
		return
	}
	s.log.Debug().Msg("running scheduled refresh")
	s.Target.Refresh(s.Ctx)
}
