// internal/broadcast/dispatcher/dispatcher.go
package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"broadcast-engine/internal/broadcast/resolver"
	apperrors "broadcast-engine/internal/common/errors"
	"broadcast-engine/internal/common/logger"
	"broadcast-engine/internal/common/metrics"
	"broadcast-engine/internal/common/observability"
	"broadcast-engine/internal/models"
	"broadcast-engine/internal/repository"

	"github.com/google/uuid"
)

// Dispatcher resolves recipients, fans out delivery attempts and finalizes
// one BroadcastHistory per message. The history record is the source of
// truth for "was this dispatched": a crash between finalizing the history
// and marking the message Sent is repaired by re-running Dispatch, which
// re-applies the Sent transition from the completed history instead of
// re-sending.
type Dispatcher struct {
	messages  *repository.MessageRepository
	histories *repository.HistoryRepository
	resolver  resolver.Resolver
	transport Transport
	logger    logger.Logger
	obs       *observability.Observability

	parallelism    int
	attemptTimeout time.Duration
	staleAfter     time.Duration
}

type Options struct {
	// Parallelism bounds concurrent delivery attempts within one run.
	Parallelism int
	// AttemptTimeout converts a hung attempt into Undelivered.
	AttemptTimeout time.Duration
	// StaleAfter is how old a pending history must be before a retrying
	// dispatcher takes it over. Fresh pending records belong to a live run
	// and surface as ConcurrencyConflict instead.
	StaleAfter time.Duration
}

func New(
	messages *repository.MessageRepository,
	histories *repository.HistoryRepository,
	res resolver.Resolver,
	transport Transport,
	log logger.Logger,
	obs *observability.Observability,
	opts Options,
) *Dispatcher {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 8
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 10 * time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	return &Dispatcher{
		messages:       messages,
		histories:      histories,
		resolver:       res,
		transport:      transport,
		logger:         log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		obs:            obs,
		parallelism:    opts.Parallelism,
		attemptTimeout: opts.AttemptTimeout,
		staleAfter:     opts.StaleAfter,
	}
}

// Dispatch runs one idempotent dispatch for the message.
func (d *Dispatcher) Dispatch(ctx context.Context, messageID string) (*models.BroadcastHistory, error) {
	started := time.Now()

	msg, err := d.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Status == models.StatusSent {
		return nil, apperrors.NewInvalidTransitionError(messageID, string(msg.Status), "dispatch")
	}

	history, err := d.openHistory(ctx, msg)
	if err != nil {
		return nil, err
	}
	if history.CompletedAt != nil {
		// Crash recovery: the fan-out already finished but the Sent
		// transition was lost. Re-derive the message state and stop.
		if err := d.applySent(ctx, history); err != nil {
			return nil, err
		}
		return history, nil
	}

	delivered := d.fanOut(ctx, msg, history.Recipients)

	now := time.Now().UTC()
	history.DeliveryCount = delivered
	history.Status = models.OutcomeStatus(delivered, history.TotalCount)
	history.CompletedAt = &now
	if err := d.histories.Update(ctx, history); err != nil {
		// Losing the finalize race means a concurrent run owns this
		// dispatch; exactly one history finalization may win.
		return nil, err
	}

	if err := d.applySent(ctx, history); err != nil {
		return nil, err
	}

	metrics.DispatchesCompleted.WithLabelValues(string(history.Status)).Inc()
	metrics.DispatchDuration.Observe(time.Since(started).Seconds())
	if d.obs != nil {
		d.obs.RecordDispatch(ctx, string(history.Status))
		d.obs.RecordDispatchDuration(ctx, time.Since(started), string(history.Status))
	}

	d.logger.Info("dispatch completed", map[string]interface{}{
		"messageId":     messageID,
		"status":        history.Status,
		"deliveryCount": history.DeliveryCount,
		"totalCount":    history.TotalCount,
	})
	return history, nil
}

// openHistory returns the history record this run operates on: a fresh
// pending record with the resolved recipient snapshot, an existing completed
// record (recovery), or a stale pending record taken over from a crashed
// run. The message id is the store key, so two concurrent creators cannot
// both succeed.
func (d *Dispatcher) openHistory(ctx context.Context, msg *models.Message) (*models.BroadcastHistory, error) {
	existing, err := d.histories.GetByMessageID(ctx, msg.ID)
	if err != nil && !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		return nil, err
	}

	if existing != nil {
		if existing.CompletedAt != nil {
			return existing, nil
		}
		if time.Since(existing.CreatedAt) < d.staleAfter {
			return nil, apperrors.NewConcurrencyConflictError("broadcast_history", msg.ID)
		}
		// Take over a dispatch abandoned mid-run. Bumping the version via
		// a conditional write fences out the previous owner: its finalize
		// will lose the version race. The recipient snapshot from the
		// original dispatch start is kept.
		existing.CreatedAt = time.Now().UTC()
		if err := d.histories.Update(ctx, existing); err != nil {
			return nil, err
		}
		d.logger.Warn("took over stale pending dispatch", map[string]interface{}{
			"messageId": msg.ID,
		})
		return existing, nil
	}

	recipients, err := d.resolver.Resolve(ctx, msg.Target)
	if err != nil {
		return nil, err
	}

	history := &models.BroadcastHistory{
		ID:           uuid.New().String(),
		MessageID:    msg.ID,
		MessageTitle: msg.Title,
		Recipients:   recipients,
		Status:       models.HistoryPending,
		TotalCount:   len(recipients),
		CreatedAt:    time.Now().UTC(),
	}
	if err := d.histories.Create(ctx, history); err != nil {
		return nil, err
	}
	return history, nil
}

// fanOut attempts delivery to every recipient over a bounded worker pool
// and returns the delivered count. Attempts are independent; a failure or
// timeout for one recipient never blocks the others.
func (d *Dispatcher) fanOut(ctx context.Context, msg *models.Message, recipients []string) int {
	if len(recipients) == 0 {
		return 0
	}

	var delivered int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, d.parallelism)

	for _, recipientID := range recipients {
		wg.Add(1)
		sem <- struct{}{}
		go func(recipientID string) {
			defer wg.Done()
			defer func() { <-sem }()

			attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
			defer cancel()

			if err := d.transport.Attempt(attemptCtx, recipientID, msg); err != nil {
				metrics.DeliveryAttempts.WithLabelValues("undelivered").Inc()
				d.logger.WithError(err).Warn("delivery attempt failed", map[string]interface{}{
					"messageId":   msg.ID,
					"recipientId": recipientID,
				})
				return
			}
			atomic.AddInt64(&delivered, 1)
			metrics.DeliveryAttempts.WithLabelValues("delivered").Inc()
		}(recipientID)
	}

	wg.Wait()
	return int(delivered)
}

// applySent transitions the message to Sent using the finalized history as
// the source of truth. A message already Sent is left untouched, which is
// what makes crash-retry idempotent.
func (d *Dispatcher) applySent(ctx context.Context, history *models.BroadcastHistory) error {
	_, err := d.messages.Mutate(ctx, history.MessageID, func(msg *models.Message) error {
		if msg.Status == models.StatusSent {
			return repository.ErrNoChange
		}
		deliveryRate := models.DeliveryRate(history.DeliveryCount, history.TotalCount)
		openRate := float64(0)
		msg.Status = models.StatusSent
		msg.DateScheduled = nil
		msg.DeliveryRate = &deliveryRate
		msg.OpenRate = &openRate
		msg.OpenedBy = []string{}
		msg.UpdatedAt = time.Now().UTC()
		return nil
	})
	return err
}
