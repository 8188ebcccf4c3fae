// Package schedule polls for due recurring runs and launches them.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/TobiSchelling/IntelWatch/internal/database"
)

const defaultInterval = 60 * time.Second

// Runner starts one pipeline run. Satisfied by pipeline.Pipeline.
type Runner interface {
	Execute(ctx context.Context) (*database.Run, error)
}

// Scheduler owns a polling loop that checks enabled schedules once a
// minute and starts a run for each schedule whose next_run_at has passed.
// Launched runs never block the loop.
type Scheduler struct {
	db       *database.DB
	runner   Runner
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(db *database.DB, runner Runner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		db:       db,
		runner:   runner,
		interval: defaultInterval,
		logger:   logger,
	}
}

// Start spawns the polling loop. The first check happens immediately,
// then every interval until the context is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
}

// Stop cancels the loop and any in-flight scheduled runs, then waits for
// them to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick launches a run for every due schedule and advances its next due
// time. The advance happens in the same tick, so a due schedule fires
// once, not on every poll until its run finishes.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	schedules, err := s.db.GetEnabledSchedules()
	if err != nil {
		s.logger.Error("listing schedules", zap.Error(err))
		return
	}

	for _, sch := range schedules {
		if !s.due(sch, now) {
			continue
		}
		next, err := NextRun(sch.CronExpr, now)
		if err != nil {
			// Expressions are validated at create time; a stored one that
			// no longer parses is left alone rather than fired repeatedly.
			s.logger.Error("stored cron expression no longer parses",
				zap.String("schedule_id", sch.ID),
				zap.String("cron", sch.CronExpr),
				zap.Error(err))
			continue
		}

		s.logger.Info("schedule due, starting run",
			zap.String("schedule_id", sch.ID),
			zap.String("name", sch.Name))
		s.wg.Add(1)
		go func(name string) {
			defer s.wg.Done()
			if _, err := s.runner.Execute(ctx); err != nil {
				s.logger.Error("scheduled run failed",
					zap.String("schedule", name), zap.Error(err))
			}
		}(sch.Name)

		if err := s.db.MarkScheduleRun(sch.ID, database.FormatTime(now), database.FormatTime(next)); err != nil {
			s.logger.Error("advancing schedule",
				zap.String("schedule_id", sch.ID), zap.Error(err))
		}
	}
}

func (s *Scheduler) due(sch database.Schedule, now time.Time) bool {
	if sch.NextRunAt == nil {
		return false
	}
	next, err := database.ParseTime(*sch.NextRunAt)
	if err != nil {
		s.logger.Warn("unparseable next_run_at",
			zap.String("schedule_id", sch.ID),
			zap.String("next_run_at", *sch.NextRunAt))
		return false
	}
	return !next.After(now)
}

// NextRun computes the next due time for a standard five-field cron
// expression. The same parse validates expressions at create and update
// time, so tick-time parsing never sees a fresh invalid expression.
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched.Next(from), nil
}
