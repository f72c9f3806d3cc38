// internal/store/memory_test.go
package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	apperrors "broadcast-engine/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	version, err := s.Put(ctx, CollectionMessages, "msg-1", []byte(`{"title":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	doc, err := s.Get(ctx, CollectionMessages, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", doc.ID)
	assert.Equal(t, int64(1), doc.Version)
	assert.JSONEq(t, `{"title":"hello"}`, string(doc.Data))
}

func TestMemoryStore_PutExistingConflicts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Put(ctx, CollectionMessages, "msg-1", []byte(`{}`))
	require.NoError(t, err)

	_, err = s.Put(ctx, CollectionMessages, "msg-1", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConcurrencyConflict))
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), CollectionMessages, "nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestMemoryStore_UpdateVersionCheck(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Put(ctx, CollectionMessages, "msg-1", []byte(`{"n":1}`))
	require.NoError(t, err)

	version, err := s.Update(ctx, CollectionMessages, "msg-1", []byte(`{"n":2}`), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	// Re-using the old version loses the race.
	_, err = s.Update(ctx, CollectionMessages, "msg-1", []byte(`{"n":3}`), 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConcurrencyConflict))

	doc, err := s.Get(ctx, CollectionMessages, "msg-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(doc.Data))
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Update(context.Background(), CollectionMessages, "nope", []byte(`{}`), 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestMemoryStore_ListCreationOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Put(ctx, CollectionTemplates, fmt.Sprintf("tmpl-%d", i), []byte(`{}`))
		require.NoError(t, err)
	}

	docs, err := s.List(ctx, CollectionTemplates)
	require.NoError(t, err)
	require.Len(t, docs, 5)
	for i, doc := range docs {
		assert.Equal(t, fmt.Sprintf("tmpl-%d", i), doc.ID)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Put(ctx, CollectionTemplates, "tmpl-1", []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, CollectionTemplates, "tmpl-1"))

	err = s.Delete(ctx, CollectionTemplates, "tmpl-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	docs, err := s.List(ctx, CollectionTemplates)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStore_QueryByField(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Put(ctx, CollectionTemplates, "a", []byte(`{"type":"event"}`))
	require.NoError(t, err)
	_, err = s.Put(ctx, CollectionTemplates, "b", []byte(`{"type":"announcement"}`))
	require.NoError(t, err)
	_, err = s.Put(ctx, CollectionTemplates, "c", []byte(`{"type":"event"}`))
	require.NoError(t, err)

	docs, err := s.Query(ctx, CollectionTemplates, "type", "event")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "c", docs[1].ID)
}

func TestMemoryStore_ConcurrentPutSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Put(ctx, CollectionHistory, "msg-1", []byte(`{}`))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConcurrencyConflict))
		}
	}
	assert.Equal(t, 1, winners)
}
