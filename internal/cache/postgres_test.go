package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBackend(t *testing.T) (*PostgresBackend, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newPostgresBackendWithQuerier(mock), mock
}

func TestPostgresBackend_Get(t *testing.T) {
	b, mock := newMockBackend(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT value::text FROM cache_entries").
		WithArgs("sportbar:c:user_name").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(`"Ana"`))
	got, err := b.Get(ctx, "sportbar:c:user_name")
	require.NoError(t, err)
	assert.Equal(t, `"Ana"`, string(got))

	mock.ExpectQuery("SELECT value::text FROM cache_entries").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	got, err = b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	mock.ExpectQuery("SELECT value::text FROM cache_entries").
		WithArgs("broken").
		WillReturnError(errors.New("conn reset"))
	_, err = b.Get(ctx, "broken")
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_Set(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectExec("INSERT INTO cache_entries").
		WithArgs("k", `"Ana"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, b.Set(context.Background(), "k", []byte(`"Ana"`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_PushBounded(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cache_list_entries").
		WithArgs("h", `{"name":"Ana"}`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM cache_list_entries").
		WithArgs("h", 10).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, b.PushBounded(context.Background(), "h", []byte(`{"name":"Ana"}`), 10))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_PushBoundedRollsBackOnInsertError(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cache_list_entries").
		WithArgs("h", `1`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := b.PushBounded(context.Background(), "h", []byte(`1`), 10)
	assert.ErrorContains(t, err, "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_List(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectQuery("SELECT value::text FROM cache_list_entries").
		WithArgs("h").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(`1`).AddRow(`2`))

	list, err := b.List(context.Background(), "h")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1", string(list[0]))
	assert.Equal(t, "2", string(list[1]))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_OverPostgres(t *testing.T) {
	b, mock := newMockBackend(t)
	c := New(b, 0)

	mock.ExpectQuery("SELECT value::text FROM cache_entries").
		WithArgs("sportbar:c:user_name").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(`"Ana"`))

	name, err := c.LoadName(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "Ana", name)
	require.NoError(t, mock.ExpectationsWereMet())
}
