// internal/repository/message_repository.go
package repository

import (
	"context"
	"encoding/json"
	"errors"

	apperrors "broadcast-engine/internal/common/errors"
	"broadcast-engine/internal/models"
	"broadcast-engine/internal/store"
)

// ErrNoChange tells Mutate the current state already satisfies the intended
// outcome, so the write is skipped entirely.
var ErrNoChange = errors.New("no change")

// MessageRepository persists messages through the document store. All writes
// are conditional on the version read, so concurrent status changes surface
// as ConcurrencyConflict instead of lost updates.
type MessageRepository struct {
	store      store.DocumentStore
	casRetries int
}

func NewMessageRepository(docs store.DocumentStore, casRetries int) *MessageRepository {
	if casRetries < 1 {
		casRetries = 3
	}
	return &MessageRepository{store: docs, casRetries: casRetries}
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	version, err := r.store.Put(ctx, store.CollectionMessages, msg.ID, data)
	if err != nil {
		return err
	}
	msg.Version = version
	return nil
}

func (r *MessageRepository) Get(ctx context.Context, id string) (*models.Message, error) {
	doc, err := r.store.Get(ctx, store.CollectionMessages, id)
	if err != nil {
		return nil, err
	}
	return decodeMessage(doc)
}

func (r *MessageRepository) List(ctx context.Context) ([]*models.Message, error) {
	docs, err := r.store.List(ctx, store.CollectionMessages)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Message, 0, len(docs))
	for i := range docs {
		msg, err := decodeMessage(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// Mutate runs one read-transition-write cycle with bounded retries. The
// mutation callback validates the current state and applies the change; any
// error it returns aborts the loop immediately. Conflict exhaustion returns
// the last ConcurrencyConflict as a transient error.
func (r *MessageRepository) Mutate(ctx context.Context, id string, mutate func(*models.Message) error) (*models.Message, error) {
	var lastErr error
	for attempt := 0; attempt < r.casRetries; attempt++ {
		msg, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(msg); err != nil {
			if errors.Is(err, ErrNoChange) {
				return msg, nil
			}
			return nil, err
		}

		data, err := json.Marshal(msg)
		if err != nil {
			return nil, apperrors.NewInvalidInputError(err.Error())
		}
		version, err := r.store.Update(ctx, store.CollectionMessages, id, data, msg.Version)
		if err == nil {
			msg.Version = version
			return msg, nil
		}
		if !apperrors.IsCode(err, apperrors.ErrCodeConcurrencyConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func decodeMessage(doc *store.Document) (*models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal(doc.Data, &msg); err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	msg.Version = doc.Version
	return &msg, nil
}
