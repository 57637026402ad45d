package kv

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*SQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func TestPostgres_Get(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_entries WHERE key = $1`)).
		WithArgs("enc:currentDiagnosis").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"diagnoses":[]}`)))

	v, err := s.Get(context.Background(), "enc:currentDiagnosis")

	require.NoError(t, err)
	assert.Equal(t, `{"diagnoses":[]}`, string(v))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMissing(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(`SELECT value FROM kv_entries`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "nope")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_Set(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectExec(`INSERT INTO kv_entries`).
		WithArgs("k", []byte("v"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(context.Background(), "k", []byte("v")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetError(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectExec(`INSERT INTO kv_entries`).WillReturnError(errors.New("connection reset"))

	err := s.Set(context.Background(), "k", []byte("v"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgres_Delete(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM kv_entries WHERE key = $1`)).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Delete(context.Background(), "k"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
