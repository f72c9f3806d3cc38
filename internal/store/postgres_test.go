// internal/store/postgres_test.go
package store

import (
	"context"
	"testing"
	"time"

	apperrors "broadcast-engine/internal/common/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_PutInserts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs(CollectionMessages, "msg-1", []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	version, err := s.Put(context.Background(), CollectionMessages, "msg-1", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutExistingConflicts(t *testing.T) {
	s, mock := newMockStore(t)

	// ON CONFLICT DO NOTHING reports zero affected rows for a duplicate key.
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs(CollectionMessages, "msg-1", []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.Put(context.Background(), CollectionMessages, "msg-1", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConcurrencyConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT version, payload, created_at, updated_at`).
		WithArgs(CollectionMessages, "nope").
		WillReturnRows(sqlmock.NewRows([]string{"version", "payload", "created_at", "updated_at"}))

	_, err := s.Get(context.Background(), CollectionMessages, "nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateConditionalWrite(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE documents`).
		WithArgs(CollectionMessages, "msg-1", int64(3), []byte(`{"n":2}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	version, err := s.Update(context.Background(), CollectionMessages, "msg-1", []byte(`{"n":2}`), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLostRaceConflicts(t *testing.T) {
	s, mock := newMockStore(t)

	// Zero rows with the row still present means the version moved underneath.
	mock.ExpectExec(`UPDATE documents`).
		WithArgs(CollectionMessages, "msg-1", int64(3), []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT version, payload, created_at, updated_at`).
		WithArgs(CollectionMessages, "msg-1").
		WillReturnRows(sqlmock.NewRows([]string{"version", "payload", "created_at", "updated_at"}).
			AddRow(4, []byte(`{}`), now, now))

	_, err := s.Update(context.Background(), CollectionMessages, "msg-1", []byte(`{}`), 3)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConcurrencyConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateMissingRowNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE documents`).
		WithArgs(CollectionMessages, "nope", int64(1), []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version, payload, created_at, updated_at`).
		WithArgs(CollectionMessages, "nope").
		WillReturnRows(sqlmock.NewRows([]string{"version", "payload", "created_at", "updated_at"}))

	_, err := s.Update(context.Background(), CollectionMessages, "nope", []byte(`{}`), 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM documents`).
		WithArgs(CollectionTemplates, "nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Delete(context.Background(), CollectionTemplates, "nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryFiltersOnPayloadField(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "version", "payload", "created_at", "updated_at"}).
		AddRow("a", 1, []byte(`{"type":"event"}`), now, now).
		AddRow("c", 2, []byte(`{"type":"event"}`), now.Add(time.Minute), now.Add(time.Minute))
	mock.ExpectQuery(`SELECT id, version, payload, created_at, updated_at`).
		WithArgs(CollectionTemplates, "type", "event").
		WillReturnRows(rows)

	docs, err := s.Query(context.Background(), CollectionTemplates, "type", "event")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, int64(2), docs[1].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
