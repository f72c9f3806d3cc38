// internal/repository/history_repository.go
package repository

import (
	"context"
	"encoding/json"

	apperrors "broadcast-engine/internal/common/errors"
	"broadcast-engine/internal/models"
	"broadcast-engine/internal/store"
)

// HistoryRepository persists broadcast history records. One record exists
// per message: the store key is the message id, which is what makes dispatch
// creation race-free: the second writer's Put conflicts instead of
// producing a duplicate record. The record's own ID field stays a uuid.
type HistoryRepository struct {
	store store.DocumentStore
}

func NewHistoryRepository(docs store.DocumentStore) *HistoryRepository {
	return &HistoryRepository{store: docs}
}

func (r *HistoryRepository) Create(ctx context.Context, history *models.BroadcastHistory) error {
	data, err := json.Marshal(history)
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	version, err := r.store.Put(ctx, store.CollectionHistory, history.MessageID, data)
	if err != nil {
		return err
	}
	history.Version = version
	return nil
}

// GetByMessageID returns the history record for a message, or NotFound when
// the message has never entered dispatch.
func (r *HistoryRepository) GetByMessageID(ctx context.Context, messageID string) (*models.BroadcastHistory, error) {
	doc, err := r.store.Get(ctx, store.CollectionHistory, messageID)
	if err != nil {
		return nil, err
	}
	return decodeHistory(doc)
}

// Update conditionally replaces the record. Finalization relies on this: of
// two concurrent dispatch runs only one finalize can win the version race.
func (r *HistoryRepository) Update(ctx context.Context, history *models.BroadcastHistory) error {
	data, err := json.Marshal(history)
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	version, err := r.store.Update(ctx, store.CollectionHistory, history.MessageID, data, history.Version)
	if err != nil {
		return err
	}
	history.Version = version
	return nil
}

func (r *HistoryRepository) List(ctx context.Context) ([]*models.BroadcastHistory, error) {
	docs, err := r.store.List(ctx, store.CollectionHistory)
	if err != nil {
		return nil, err
	}
	out := make([]*models.BroadcastHistory, 0, len(docs))
	for i := range docs {
		history, err := decodeHistory(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, history)
	}
	return out, nil
}

func decodeHistory(doc *store.Document) (*models.BroadcastHistory, error) {
	var history models.BroadcastHistory
	if err := json.Unmarshal(doc.Data, &history); err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	history.Version = doc.Version
	return &history, nil
}
