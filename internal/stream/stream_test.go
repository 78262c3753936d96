package stream_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/bgunnarsson/sqlrest/internal/db"
	"github.com/bgunnarsson/sqlrest/internal/stream"
	"github.com/bgunnarsson/sqlrest/internal/testutil"
)

const tenRows = "INSERT INTO t (id, name) VALUES (1,'a'),(2,'b'),(3,'c'),(4,'d'),(5,'e'),(6,'f'),(7,'g'),(8,'h'),(9,'i'),(10,'j')"

func seeded(t *testing.T, maxOpen int) *sql.DB {
	t.Helper()
	return testutil.OpenSQLite(t, maxOpen,
		"CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)",
		tenRows,
	)
}

func idMapper(r stream.Record) (int64, error) {
	id, ok := r.Values[0].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected id %T", r.Values[0])
	}
	return id, nil
}

func lease(t *testing.T, pool *stream.Pool) stream.Handle {
	t.Helper()
	h, err := pool.Lease(context.Background())
	require.NoError(t, err)
	return h
}

func TestStream_PullsLazily(t *testing.T) {
	pool := &stream.Pool{DB: seeded(t, 1)}
	calls := 0
	mapper := func(r stream.Record) (int64, error) {
		calls++
		return idMapper(r)
	}

	st, err := stream.Open(context.Background(), lease(t, pool), "SELECT id, name FROM t ORDER BY id", mapper)
	require.NoError(t, err)

	var got []int64
	for i := 0; i < 3 && st.Next(); i++ {
		id, err := st.Row()
		require.NoError(t, err)
		got = append(got, id)
	}
	require.NoError(t, st.Close())

	assert.Equal(t, []int64{1, 2, 3}, got)
	assert.Equal(t, 3, calls)
	assert.False(t, st.Next())
}

func TestStream_ColumnsAndTypes(t *testing.T) {
	pool := &stream.Pool{DB: seeded(t, 1)}
	st, err := stream.Open(context.Background(), lease(t, pool), "SELECT id, name FROM t", idMapper)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	assert.Equal(t, []string{"id", "name"}, st.Columns())
	assert.Equal(t, []string{"integer", "text"}, st.Types())
}

func TestStream_BindsArgs(t *testing.T) {
	pool := &stream.Pool{DB: seeded(t, 1)}
	st, err := stream.Open(context.Background(), lease(t, pool), "SELECT id FROM t WHERE id > ? ORDER BY id", idMapper, 8)
	require.NoError(t, err)

	got, err := stream.Collect(st)
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 10}, got)
}

func TestStream_EmptyResult(t *testing.T) {
	pool := &stream.Pool{DB: seeded(t, 1)}
	st, err := stream.Open(context.Background(), lease(t, pool), "SELECT id FROM t WHERE id < 0", idMapper)
	require.NoError(t, err)

	assert.False(t, st.Next())
	assert.NoError(t, st.Err())
	assert.False(t, st.Next())
}

func TestStream_MapperErrorIsPerRow(t *testing.T) {
	pool := &stream.Pool{DB: seeded(t, 1)}
	boom := errors.New("bad row")
	mapper := func(r stream.Record) (int64, error) {
		id, err := idMapper(r)
		if id == 2 {
			return 0, boom
		}
		return id, err
	}

	st, err := stream.Open(context.Background(), lease(t, pool), "SELECT id FROM t WHERE id <= 3 ORDER BY id", mapper)
	require.NoError(t, err)

	var ids []int64
	var errs []error
	for id, err := range st.All() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	assert.Equal(t, []int64{1, 3}, ids)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	pool := &stream.Pool{DB: seeded(t, 1)}
	st, err := stream.Open(context.Background(), lease(t, pool), "SELECT id FROM t", idMapper)
	require.NoError(t, err)

	require.True(t, st.Next())
	assert.NoError(t, st.Close())
	assert.NoError(t, st.Close())
	assert.False(t, st.Next())
}

func TestStream_OwnedConnectionClosesWithStream(t *testing.T) {
	sqldb, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "own.db"))
	require.NoError(t, err)
	for _, stmt := range []string{"CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)", tenRows} {
		_, err = sqldb.Exec(stmt)
		require.NoError(t, err)
	}

	st, err := stream.Open(context.Background(), stream.Own(sqldb), "SELECT id FROM t ORDER BY id", idMapper)
	require.NoError(t, err)

	got, err := stream.Collect(st)
	require.NoError(t, err)
	assert.Len(t, got, 10)

	err = sqldb.Ping()
	assert.ErrorContains(t, err, "database is closed")
}

func TestStream_SharedConnection(t *testing.T) {
	sqldb := seeded(t, 2)
	conn, err := sqldb.Conn(context.Background())
	require.NoError(t, err)

	shared := stream.Share(conn)
	ctx := context.Background()

	first, err := stream.Open(ctx, shared.Retain(), "SELECT id FROM t WHERE id <= 2", idMapper)
	require.NoError(t, err)
	firstIDs, err := stream.Collect(first)
	require.NoError(t, err)

	second, err := stream.Open(ctx, shared.Retain(), "SELECT id FROM t WHERE id > 8", idMapper)
	require.NoError(t, err)
	assert.Equal(t, int64(2), shared.Refs())

	require.NoError(t, second.Close())
	assert.Equal(t, int64(1), shared.Refs())
	assert.Len(t, firstIDs, 2)

	// the connection stays usable while a reference is held
	require.NoError(t, conn.PingContext(ctx))

	require.NoError(t, shared.Release())
	assert.Equal(t, int64(0), shared.Refs())
	assert.ErrorIs(t, conn.PingContext(ctx), sql.ErrConnDone)

	assert.Error(t, shared.Release())
}

func TestPool_LeaseExhaustion(t *testing.T) {
	pool := &stream.Pool{DB: seeded(t, 1), AcquireTimeout: 50 * time.Millisecond}
	ctx := context.Background()

	st, err := stream.Open(ctx, lease(t, pool), "SELECT id FROM t ORDER BY id", idMapper)
	require.NoError(t, err)

	_, err = pool.Lease(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrPoolExhausted)

	// leaving the loop early hands the connection back
	for id, err := range st.All() {
		require.NoError(t, err)
		if id == 2 {
			break
		}
	}

	h, err := pool.Lease(ctx)
	require.NoError(t, err)
	require.NoError(t, h.Release())
	require.NoError(t, h.Release())
}

func TestPool_LeaseReturnsAtExhaustion(t *testing.T) {
	pool := &stream.Pool{DB: seeded(t, 1), AcquireTimeout: 50 * time.Millisecond}
	ctx := context.Background()

	st, err := stream.Open(ctx, lease(t, pool), "SELECT id FROM t", idMapper)
	require.NoError(t, err)
	for st.Next() {
	}
	require.NoError(t, st.Err())

	h, err := pool.Lease(ctx)
	require.NoError(t, err)
	require.NoError(t, h.Release())
}

func TestStream_PrepareFailureReleasesHandle(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectPrepare("SELECT nope").WillReturnError(assert.AnError)
	mock.ExpectClose()

	_, err = stream.Open(context.Background(), stream.Own(mockDB), "SELECT nope", idMapper)
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrDB)
	assert.ErrorIs(t, err, assert.AnError)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStream_QueryFailureReleasesHandle(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectPrepare("SELECT id FROM t").WillBeClosed().
		ExpectQuery().WillReturnError(assert.AnError)
	mock.ExpectClose()

	_, err = stream.Open(context.Background(), stream.Own(mockDB), "SELECT id FROM t", idMapper)
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrDB)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStream_BackendErrorEndsStream(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id"}).
		AddRow(int64(1)).
		AddRow(int64(2)).
		RowError(1, assert.AnError)
	mock.ExpectPrepare("SELECT id FROM t").WillBeClosed().
		ExpectQuery().WillReturnRows(rows).RowsWillBeClosed()
	mock.ExpectClose()

	st, err := stream.Open(context.Background(), stream.Own(mockDB), "SELECT id FROM t", idMapper)
	require.NoError(t, err)

	got, err := stream.Collect(st)
	assert.Equal(t, []int64{1}, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrDB)

	require.NoError(t, mock.ExpectationsWereMet())
}
