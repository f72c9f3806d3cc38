// internal/broadcast/engagement/tracker.go
package engagement

import (
	"context"
	"time"

	apperrors "broadcast-engine/internal/common/errors"
	"broadcast-engine/internal/common/logger"
	"broadcast-engine/internal/common/metrics"
	"broadcast-engine/internal/models"
	"broadcast-engine/internal/repository"
)

// Tracker records which recipients opened a sent message. Opens may arrive
// concurrently and indefinitely after send; each call is independently safe
// to retry.
type Tracker struct {
	messages  *repository.MessageRepository
	histories *repository.HistoryRepository
	logger    logger.Logger
}

func NewTracker(messages *repository.MessageRepository, histories *repository.HistoryRepository, log logger.Logger) *Tracker {
	return &Tracker{
		messages:  messages,
		histories: histories,
		logger:    log.WithFields(map[string]interface{}{"component": "engagement"}),
	}
}

// RecordOpen adds recipientID to the message's openedBy set and recomputes
// openRate against the dispatch-time totalCount from the broadcast history.
// Recording the same recipient twice has no additional effect.
func (t *Tracker) RecordOpen(ctx context.Context, messageID, recipientID string) error {
	history, err := t.histories.GetByMessageID(ctx, messageID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return apperrors.NewInvalidTransitionError(messageID, "undispatched", "recordOpen")
		}
		return err
	}
	if history.CompletedAt == nil {
		return apperrors.NewInvalidTransitionError(messageID, "dispatching", "recordOpen")
	}
	if !contains(history.Recipients, recipientID) {
		return apperrors.NewInvalidInputError("recipient was not part of the dispatch: " + recipientID)
	}

	changed := false
	_, err = t.messages.Mutate(ctx, messageID, func(msg *models.Message) error {
		changed = false
		if msg.Status != models.StatusSent {
			return apperrors.NewInvalidTransitionError(messageID, string(msg.Status), "recordOpen")
		}
		if msg.Opened(recipientID) {
			return repository.ErrNoChange
		}

		msg.OpenedBy = append(msg.OpenedBy, recipientID)
		// The denominator is frozen at dispatch time; later directory
		// changes never move a historical rate.
		openRate := 100 * float64(len(msg.OpenedBy)) / float64(history.TotalCount)
		msg.OpenRate = &openRate
		msg.UpdatedAt = time.Now().UTC()
		changed = true
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		metrics.OpensRecorded.Inc()
	}
	t.logger.Debug("open recorded", map[string]interface{}{
		"messageId":   messageID,
		"recipientId": recipientID,
	})
	return nil
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
