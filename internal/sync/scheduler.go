// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

package sync

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/reliefhub/reliefhub/internal/config"
	"github.com/reliefhub/reliefhub/internal/logger"
)

// Scheduler runs due sync tasks on a fixed tick. Tasks execute serially on
// a single goroutine; the running flag in storage bars a second scheduler
// instance from picking up the same task.
type Scheduler struct {
	engine *Engine
	store  *Store
	cfg    config.Sync
	logger *logger.Logger
	now    func() time.Time
}

// NewScheduler constructs the task scheduler.
func NewScheduler(engine *Engine, store *Store, cfg config.Sync, log *logger.Logger) *Scheduler {
	return &Scheduler{
		engine: engine,
		store:  store,
		cfg:    cfg,
		logger: log,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// Start ticks until ctx is cancelled. It blocks and is meant to run as a
// background worker.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SchedulerPeriod)
	defer ticker.Stop()

	s.logger.Info().
		Str("func", "Scheduler.Start").
		Dur("period", s.cfg.SchedulerPeriod).
		Msg("sync scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Str("func", "Scheduler.Start").Msg("sync scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every task due at the current time, one after another.
func (s *Scheduler) Tick(ctx context.Context) {
	tasks, err := s.store.DueTasks(ctx, s.now())
	if err != nil {
		s.logger.Error().Err(err).Str("func", "Scheduler.Tick").Msg("listing due tasks")
		return
	}

	for _, task := range tasks {
		if err = s.runTask(ctx, task.ID); err != nil {
			s.logger.Error().
				Err(err).
				Str("func", "Scheduler.Tick").
				Int64("task", task.ID).
				Msg("task run failed")
		}
	}
}

// runTask claims the task, runs it with backoff on transient peer
// failures, and reschedules it. A permanent peer failure marks the task
// errored so it stops being scheduled until an operator clears it.
func (s *Scheduler) runTask(ctx context.Context, taskID int64) error {
	if err := s.store.MarkRunning(ctx, taskID, true); err != nil {
		if errors.Is(err, ErrTaskAlreadyRunning) {
			return nil
		}
		return err
	}

	backoff := retry.WithMaxRetries(uint64(s.cfg.MaxRetries), retry.NewExponential(s.cfg.Backoff))

	var updated struct {
		lastPull time.Time
		lastPush time.Time
	}
	runErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		task, err := s.store.GetTask(ctx, taskID)
		if err != nil {
			return err
		}

		task, err = s.engine.Run(ctx, task)
		updated.lastPull = task.LastPullOn
		updated.lastPush = task.LastPushOn
		if errors.Is(err, ErrPeerUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})

	if errors.Is(runErr, ErrPeerRejected) {
		if err := s.store.MarkErrored(ctx, taskID); err != nil {
			return errors.Join(runErr, err)
		}
		return runErr
	}

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return errors.Join(runErr, err)
	}
	task.LastPullOn = updated.lastPull
	task.LastPushOn = updated.lastPush
	if err = s.store.Reschedule(ctx, task, s.now().Add(task.Period)); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
