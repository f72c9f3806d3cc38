// internal/repository/history_repository_test.go
package repository

import (
	"context"
	"testing"
	"time"

	apperrors "broadcast-engine/internal/common/errors"
	"broadcast-engine/internal/models"
	"broadcast-engine/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingHistory(messageID string, recipients []string) *models.BroadcastHistory {
	return &models.BroadcastHistory{
		ID:           uuid.New().String(),
		MessageID:    messageID,
		MessageTitle: "maintenance window",
		Recipients:   recipients,
		Status:       models.HistoryPending,
		TotalCount:   len(recipients),
		CreatedAt:    time.Now().UTC(),
	}
}

func TestHistoryRepository_CreateAndGetByMessageID(t *testing.T) {
	repo := NewHistoryRepository(store.NewMemoryStore())
	ctx := context.Background()

	history := newPendingHistory("msg-1", []string{"u1", "u2"})
	require.NoError(t, repo.Create(ctx, history))

	got, err := repo.GetByMessageID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, history.ID, got.ID)
	assert.Equal(t, []string{"u1", "u2"}, got.Recipients)
	assert.Equal(t, models.HistoryPending, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestHistoryRepository_SecondCreateForSameMessageConflicts(t *testing.T) {
	repo := NewHistoryRepository(store.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newPendingHistory("msg-1", []string{"u1"})))

	err := repo.Create(ctx, newPendingHistory("msg-1", []string{"u1"}))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConcurrencyConflict))
}

func TestHistoryRepository_GetByMessageIDMissing(t *testing.T) {
	repo := NewHistoryRepository(store.NewMemoryStore())

	_, err := repo.GetByMessageID(context.Background(), "never-dispatched")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestHistoryRepository_UpdateFinalizesOnce(t *testing.T) {
	repo := NewHistoryRepository(store.NewMemoryStore())
	ctx := context.Background()

	history := newPendingHistory("msg-1", []string{"u1", "u2", "u3"})
	require.NoError(t, repo.Create(ctx, history))

	// A second run holding the same version as the first.
	stale, err := repo.GetByMessageID(ctx, "msg-1")
	require.NoError(t, err)

	now := time.Now().UTC()
	history.DeliveryCount = 3
	history.Status = models.HistorySuccess
	history.CompletedAt = &now
	require.NoError(t, repo.Update(ctx, history))

	stale.DeliveryCount = 2
	stale.Status = models.HistoryPartial
	stale.CompletedAt = &now
	err = repo.Update(ctx, stale)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConcurrencyConflict))

	got, err := repo.GetByMessageID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, models.HistorySuccess, got.Status)
	assert.Equal(t, 3, got.DeliveryCount)
}

func TestHistoryRepository_ListCreationOrder(t *testing.T) {
	repo := NewHistoryRepository(store.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newPendingHistory("msg-1", nil)))
	require.NoError(t, repo.Create(ctx, newPendingHistory("msg-2", nil)))
	require.NoError(t, repo.Create(ctx, newPendingHistory("msg-3", nil)))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "msg-1", list[0].MessageID)
	assert.Equal(t, "msg-3", list[2].MessageID)
}
