// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"time"

	apperrors "broadcast-engine/internal/common/errors"
)

// PostgresStore keeps every collection in a single documents table with a
// jsonb payload and a version column used for conditional writes.
//
// Schema:
//
//	CREATE TABLE documents (
//	    collection  TEXT        NOT NULL,
//	    id          TEXT        NOT NULL,
//	    version     BIGINT      NOT NULL,
//	    payload     JSONB       NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (collection, id)
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, collection, id string, data []byte) (int64, error) {
	now := time.Now().UTC()
	query := `
        INSERT INTO documents (collection, id, version, payload, created_at, updated_at)
        VALUES ($1, $2, 1, $3, $4, $4)
        ON CONFLICT (collection, id) DO NOTHING
    `
	res, err := s.db.ExecContext(ctx, query, collection, id, data, now)
	if err != nil {
		return 0, apperrors.NewStoreUnavailableError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewStoreUnavailableError(err)
	}
	if affected == 0 {
		return 0, apperrors.NewConcurrencyConflictError(collection, id)
	}
	return 1, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	query := `
        SELECT version, payload, created_at, updated_at
        FROM documents
        WHERE collection = $1 AND id = $2
    `
	doc := Document{Collection: collection, ID: id}
	err := s.db.QueryRowContext(ctx, query, collection, id).
		Scan(&doc.Version, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(collection, id)
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	return &doc, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, data []byte, expectedVersion int64) (int64, error) {
	query := `
        UPDATE documents
        SET payload = $4, version = version + 1, updated_at = $5
        WHERE collection = $1 AND id = $2 AND version = $3
    `
	res, err := s.db.ExecContext(ctx, query, collection, id, expectedVersion, data, time.Now().UTC())
	if err != nil {
		return 0, apperrors.NewStoreUnavailableError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewStoreUnavailableError(err)
	}
	if affected == 1 {
		return expectedVersion + 1, nil
	}

	// Zero rows means either a missing id or a lost race; a follow-up read
	// tells them apart.
	if _, err := s.Get(ctx, collection, id); err != nil {
		return 0, err
	}
	return 0, apperrors.NewConcurrencyConflictError(collection, id)
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(collection, id)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, collection string) ([]Document, error) {
	query := `
        SELECT id, version, payload, created_at, updated_at
        FROM documents
        WHERE collection = $1
        ORDER BY created_at ASC
    `
	return s.scanDocuments(ctx, collection, query, collection)
}

func (s *PostgresStore) Query(ctx context.Context, collection, field, value string) ([]Document, error) {
	query := `
        SELECT id, version, payload, created_at, updated_at
        FROM documents
        WHERE collection = $1 AND payload ->> $2 = $3
        ORDER BY created_at ASC
    `
	return s.scanDocuments(ctx, collection, query, collection, field, value)
}

func (s *PostgresStore) scanDocuments(ctx context.Context, collection, query string, args ...interface{}) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc := Document{Collection: collection}
		if err := rows.Scan(&doc.ID, &doc.Version, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, apperrors.NewStoreUnavailableError(err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	return docs, nil
}

var _ DocumentStore = (*PostgresStore)(nil)
