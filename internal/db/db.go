package db

import (
	"context"
	"database/sql"
	"io"
	"strings"
)

// Querier is the statement surface shared by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Conn is a Querier that can be given up. Closing a *sql.DB closes the
// database, closing a *sql.Conn returns it to its pool.
type Conn interface {
	Querier
	io.Closer
}

// DB is an opened backend as seen by the CLI.
type DB interface {
	Close() error
	Pool() *sql.DB
	ListTables(ctx context.Context) ([]string, error)
}

// QuoteIdent double-quotes an identifier, escaping embedded quotes.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
