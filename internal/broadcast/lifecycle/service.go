// internal/broadcast/lifecycle/service.go
package lifecycle

import (
	"context"
	"time"

	apperrors "broadcast-engine/internal/common/errors"
	"broadcast-engine/internal/common/logger"
	"broadcast-engine/internal/models"
	"broadcast-engine/internal/repository"

	"github.com/google/uuid"
)

// Clock supplies the dispatch-clock time for schedule validation.
// Injectable for deterministic tests.
type Clock func() time.Time

// DueQueue is the scheduler-facing slice of the due-queue: enqueue on
// schedule, best-effort removal on cancel.
type DueQueue interface {
	Add(ctx context.Context, messageID string, due time.Time) error
	Remove(ctx context.Context, messageID string) (bool, error)
}

// Dispatcher triggers an immediate dispatch for SendNow.
type Dispatcher interface {
	Dispatch(ctx context.Context, messageID string) (*models.BroadcastHistory, error)
}

// Service owns the message state machine. Status changes happen only
// through these verbs; every transition validates the current status and
// writes conditionally on the version it read.
type Service struct {
	messages   *repository.MessageRepository
	queue      DueQueue
	dispatcher Dispatcher
	clock      Clock
	logger     logger.Logger
}

// Update carries the editable draft fields; nil pointers leave the stored
// value unchanged.
type Update struct {
	Title   *string
	Content *string
	Type    *models.MessageType
	Target  *string
}

func NewService(messages *repository.MessageRepository, queue DueQueue, dispatcher Dispatcher, clock Clock, log logger.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		messages:   messages,
		queue:      queue,
		dispatcher: dispatcher,
		clock:      clock,
		logger:     log.WithFields(map[string]interface{}{"component": "lifecycle"}),
	}
}

// Create produces a new Draft.
func (s *Service) Create(ctx context.Context, title, content string, msgType models.MessageType, target, creatorID string) (*models.Message, error) {
	if title == "" {
		return nil, apperrors.NewInvalidInputError("message title is empty")
	}
	if content == "" {
		return nil, apperrors.NewInvalidInputError("message content is empty")
	}
	if !msgType.Valid() {
		return nil, apperrors.NewInvalidInputError("unknown message type: " + string(msgType))
	}
	if target == "" {
		return nil, apperrors.NewInvalidInputError("message target is empty")
	}

	now := s.clock().UTC()
	msg := &models.Message{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		Type:      msgType,
		Target:    target,
		Status:    models.StatusDraft,
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.logger.Info("message created", map[string]interface{}{
		"messageId": msg.ID,
		"type":      msg.Type,
		"target":    msg.Target,
	})
	return msg, nil
}

// Get loads a message by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Message, error) {
	return s.messages.Get(ctx, id)
}

// Schedule moves a Draft to Scheduled at a strictly future time and
// enqueues it into the due-queue.
func (s *Service) Schedule(ctx context.Context, id string, when time.Time) (*models.Message, error) {
	if !when.After(s.clock()) {
		return nil, apperrors.NewInvalidScheduleError(when)
	}

	msg, err := s.messages.Mutate(ctx, id, func(msg *models.Message) error {
		if msg.Status != models.StatusDraft {
			return apperrors.NewInvalidTransitionError(id, string(msg.Status), "schedule")
		}
		due := when.UTC()
		msg.Status = models.StatusScheduled
		msg.DateScheduled = &due
		msg.UpdatedAt = s.clock().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.queue.Add(ctx, id, when); err != nil {
		s.logger.WithError(err).Error("due-queue enqueue failed", map[string]interface{}{"messageId": id})
		return nil, apperrors.NewStoreUnavailableError(err)
	}

	s.logger.Info("message scheduled", map[string]interface{}{
		"messageId": id,
		"when":      when.UTC().Format(time.RFC3339),
	})
	return msg, nil
}

// CancelSchedule moves a Scheduled message back to Draft. Removal from the
// due-queue is best-effort: a concurrent claim wins and the dispatch
// proceeds, in which case the status write below loses its race and the
// caller sees the transition error.
func (s *Service) CancelSchedule(ctx context.Context, id string) (*models.Message, error) {
	if _, err := s.queue.Remove(ctx, id); err != nil {
		s.logger.WithError(err).Warn("due-queue removal failed", map[string]interface{}{"messageId": id})
	}

	msg, err := s.messages.Mutate(ctx, id, func(msg *models.Message) error {
		if msg.Status != models.StatusScheduled {
			return apperrors.NewInvalidTransitionError(id, string(msg.Status), "cancelSchedule")
		}
		msg.Status = models.StatusDraft
		msg.DateScheduled = nil
		msg.UpdatedAt = s.clock().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("schedule canceled", map[string]interface{}{"messageId": id})
	return msg, nil
}

// SendNow dispatches a Draft or Scheduled message immediately, bypassing
// the scheduler's wait but not its dispatch path.
func (s *Service) SendNow(ctx context.Context, id string) (*models.BroadcastHistory, error) {
	msg, err := s.messages.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Status == models.StatusSent {
		return nil, apperrors.NewInvalidTransitionError(id, string(msg.Status), "sendNow")
	}
	wasScheduled := msg.Status == models.StatusScheduled

	history, err := s.dispatcher.Dispatch(ctx, id)
	if err != nil {
		return nil, err
	}

	if wasScheduled {
		if _, err := s.queue.Remove(ctx, id); err != nil {
			s.logger.WithError(err).Warn("due-queue removal failed", map[string]interface{}{"messageId": id})
		}
	}
	return history, nil
}

// Edit changes draft content. Scheduled and Sent messages are immutable.
func (s *Service) Edit(ctx context.Context, id string, fields Update) (*models.Message, error) {
	if fields.Type != nil && !fields.Type.Valid() {
		return nil, apperrors.NewInvalidInputError("unknown message type: " + string(*fields.Type))
	}

	return s.messages.Mutate(ctx, id, func(msg *models.Message) error {
		if msg.Status != models.StatusDraft {
			return apperrors.NewImmutableMessageError(id, string(msg.Status))
		}
		if fields.Title != nil {
			msg.Title = *fields.Title
		}
		if fields.Content != nil {
			msg.Content = *fields.Content
		}
		if fields.Type != nil {
			msg.Type = *fields.Type
		}
		if fields.Target != nil {
			msg.Target = *fields.Target
		}
		if msg.Title == "" || msg.Content == "" || msg.Target == "" {
			return apperrors.NewInvalidInputError("message title, content and target must be non-empty")
		}
		msg.UpdatedAt = s.clock().UTC()
		return nil
	})
}

// CreateFromTemplate authors a Draft seeded with a template's content. The
// copy is a snapshot: the draft keeps no reference to the template.
func (s *Service) CreateFromTemplate(ctx context.Context, tmpl *models.MessageTemplate, target, creatorID string) (*models.Message, error) {
	return s.Create(ctx, tmpl.Title, tmpl.Content, tmpl.Type, target, creatorID)
}
