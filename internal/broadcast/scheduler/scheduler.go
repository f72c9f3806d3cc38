// internal/broadcast/scheduler/scheduler.go
package scheduler

import (
	"context"
	"time"

	apperrors "broadcast-engine/internal/common/errors"
	"broadcast-engine/internal/common/logger"
	"broadcast-engine/internal/common/metrics"
	"broadcast-engine/internal/models"
)

// Dispatcher is the hand-off target for claimed messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, messageID string) (*models.BroadcastHistory, error)
}

// Scheduler polls the due-queue and hands each due message to the
// Dispatcher exactly once per claim. Claims stop two scheduler instances
// from double-dispatching; dispatch idempotency covers claim-expiry
// retries after a crash.
type Scheduler struct {
	queue        *DueQueue
	dispatcher   Dispatcher
	logger       logger.Logger
	pollInterval time.Duration
	claimTTL     time.Duration
	batchLimit   int
	now          func() time.Time
}

type Options struct {
	PollInterval time.Duration
	ClaimTTL     time.Duration
	BatchLimit   int
	Now          func() time.Time
}

func New(queue *DueQueue, dispatcher Dispatcher, log logger.Logger, opts Options) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = 2 * time.Minute
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		queue:        queue,
		dispatcher:   dispatcher,
		logger:       log.WithFields(map[string]interface{}{"component": "scheduler"}),
		pollInterval: opts.PollInterval,
		claimTTL:     opts.ClaimTTL,
		batchLimit:   opts.BatchLimit,
		now:          opts.Now,
	}
}

// Run polls until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", map[string]interface{}{
		"pollInterval": s.pollInterval.String(),
		"claimTTL":     s.claimTTL.String(),
	})

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", nil)
			return
		case <-ticker.C:
			s.PollOnce(ctx)
		}
	}
}

// PollOnce claims and dispatches every currently due message.
func (s *Scheduler) PollOnce(ctx context.Context) {
	due, err := s.queue.Due(ctx, s.now(), s.batchLimit)
	if err != nil {
		s.logger.WithError(err).Error("due-queue poll failed", nil)
		return
	}

	for _, messageID := range due {
		s.dispatchOne(ctx, messageID)
	}
}

func (s *Scheduler) dispatchOne(ctx context.Context, messageID string) {
	claimed, err := s.queue.Claim(ctx, messageID, s.claimTTL)
	if err != nil {
		s.logger.WithError(err).Error("claim failed", map[string]interface{}{"messageId": messageID})
		return
	}
	if !claimed {
		metrics.SchedulerClaims.WithLabelValues("contended").Inc()
		return
	}
	metrics.SchedulerClaims.WithLabelValues("claimed").Inc()

	history, err := s.dispatcher.Dispatch(ctx, messageID)
	if err != nil {
		switch apperrors.CodeOf(err) {
		case apperrors.ErrCodeInvalidTransition:
			// Already sent, e.g. via a direct send racing the schedule.
			// Drop it from the queue for good.
			if err := s.queue.Complete(ctx, messageID); err != nil {
				s.logger.WithError(err).Error("queue completion failed", map[string]interface{}{"messageId": messageID})
			}
		default:
			// Transient failure: release the claim so the next poll
			// retries the dispatch from the top.
			s.logger.WithError(err).Warn("dispatch failed, will retry", map[string]interface{}{"messageId": messageID})
			if err := s.queue.Release(ctx, messageID); err != nil {
				s.logger.WithError(err).Error("claim release failed", map[string]interface{}{"messageId": messageID})
			}
		}
		return
	}

	if err := s.queue.Complete(ctx, messageID); err != nil {
		s.logger.WithError(err).Error("queue completion failed", map[string]interface{}{"messageId": messageID})
		return
	}

	s.logger.Info("scheduled message dispatched", map[string]interface{}{
		"messageId":     messageID,
		"status":        history.Status,
		"deliveryCount": history.DeliveryCount,
		"totalCount":    history.TotalCount,
	})
}
