// Package store defines the document-store collaborator contract the
// broadcast core persists through. Records are schema-stable JSON payloads
// versioned for optimistic concurrency.
package store

import (
	"context"
	"time"
)

// Collection names used by the broadcast core.
const (
	CollectionMessages  = "messages"
	CollectionTemplates = "message_templates"
	CollectionHistory   = "broadcast_history"
)

// Document is one stored record. Version increments on every successful
// update and is the compare-and-swap token for conditional writes.
type Document struct {
	Collection string
	ID         string
	Version    int64
	Data       []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DocumentStore is the persistence contract. Implementations must make
// Update conditional on the expected version so that concurrent writers
// observe ConcurrencyConflict instead of silently overwriting each other.
type DocumentStore interface {
	// Put creates a new document at version 1. It fails with
	// ConcurrencyConflict when the id already exists in the collection.
	Put(ctx context.Context, collection, id string, data []byte) (int64, error)

	// Get returns the document or NotFound.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Update replaces the payload iff the stored version equals
	// expectedVersion, returning the new version. It fails with NotFound
	// for a missing id and ConcurrencyConflict on a version mismatch.
	Update(ctx context.Context, collection, id string, data []byte, expectedVersion int64) (int64, error)

	// Delete removes the document or fails with NotFound.
	Delete(ctx context.Context, collection, id string) error

	// List returns every document in the collection in creation order.
	List(ctx context.Context, collection string) ([]Document, error)

	// Query returns documents whose top-level payload field equals value,
	// in creation order.
	Query(ctx context.Context, collection, field, value string) ([]Document, error)
}
