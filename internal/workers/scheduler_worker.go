// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

package workers

import (
	"context"

	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/sync"
)

// SchedulerWorker drives the sync scheduler loop in the background. The
// loop stops when the worker's context is cancelled.
type SchedulerWorker struct {
	scheduler *sync.Scheduler
	ctx       context.Context

	logger *logger.Logger
}

func NewSchedulerWorker(ctx context.Context, scheduler *sync.Scheduler, logger *logger.Logger) *SchedulerWorker {
	return &SchedulerWorker{
		scheduler: scheduler,
		ctx:       ctx,
		logger:    logger,
	}
}

func (w *SchedulerWorker) Run() {
	w.logger.Info().Msg("launching sync scheduler worker")
	go w.scheduler.Start(w.ctx)
}
