// Package testutil provides helpers shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgunnarsson/sqlrest/internal/db/sqlite"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// OpenSQLite opens a file-backed SQLite database in a temporary directory,
// runs the given statements and closes it when the test ends.
func OpenSQLite(t testing.TB, maxOpen int, stmts ...string) *sql.DB {
	t.Helper()
	sdb, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), sqlite.Options{
		MaxOpenConns: maxOpen,
		Logger:       NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sdb.Close() })

	for _, s := range stmts {
		_, err := sdb.Pool().ExecContext(context.Background(), s)
		require.NoError(t, err, s)
	}
	return sdb.Pool()
}
