// internal/store/memory.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	apperrors "broadcast-engine/internal/common/errors"
)

// MemoryStore is an in-process DocumentStore with the same conditional-write
// semantics as the Postgres implementation. Used in tests and local runs.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]*Document
	order       map[string][]string
	seq         int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*Document),
		order:       make(map[string][]string),
	}
}

func (s *MemoryStore) Put(_ context.Context, collection, id string, data []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	if docs == nil {
		docs = make(map[string]*Document)
		s.collections[collection] = docs
	}
	if _, exists := docs[id]; exists {
		return 0, apperrors.NewConcurrencyConflictError(collection, id)
	}

	// A synthetic monotonic timestamp keeps creation order stable even when
	// two puts land within clock resolution.
	s.seq++
	now := time.Now().UTC().Add(time.Duration(s.seq) * time.Nanosecond)
	docs[id] = &Document{
		Collection: collection,
		ID:         id,
		Version:    1,
		Data:       append([]byte(nil), data...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.order[collection] = append(s.order[collection], id)
	return 1, nil
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, apperrors.NewNotFoundError(collection, id)
	}
	copied := *doc
	copied.Data = append([]byte(nil), doc.Data...)
	return &copied, nil
}

func (s *MemoryStore) Update(_ context.Context, collection, id string, data []byte, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return 0, apperrors.NewNotFoundError(collection, id)
	}
	if doc.Version != expectedVersion {
		return 0, apperrors.NewConcurrencyConflictError(collection, id)
	}
	doc.Version++
	doc.Data = append([]byte(nil), data...)
	doc.UpdatedAt = time.Now().UTC()
	return doc.Version, nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return apperrors.NewNotFoundError(collection, id)
	}
	delete(s.collections[collection], id)
	ids := s.order[collection]
	for i, existing := range ids {
		if existing == id {
			s.order[collection] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, collection string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := []Document{}
	for _, id := range s.order[collection] {
		doc := s.collections[collection][id]
		copied := *doc
		copied.Data = append([]byte(nil), doc.Data...)
		docs = append(docs, copied)
	}
	return docs, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection, field, value string) ([]Document, error) {
	all, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	docs := []Document{}
	for _, doc := range all {
		var payload map[string]interface{}
		if err := json.Unmarshal(doc.Data, &payload); err != nil {
			continue
		}
		if fieldValue, ok := payload[field]; ok && fmt.Sprint(fieldValue) == value {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

var _ DocumentStore = (*MemoryStore)(nil)
