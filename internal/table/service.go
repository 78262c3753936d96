// Package table implements schema-driven reads and single-row mutations
// over arbitrary SQLite tables.
package table

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/bgunnarsson/sqlrest/internal/catalog"
	"github.com/bgunnarsson/sqlrest/internal/db"
	"github.com/bgunnarsson/sqlrest/internal/db/sqlite"
	"github.com/bgunnarsson/sqlrest/internal/stream"
	"github.com/bgunnarsson/sqlrest/internal/value"
)

// Service runs table operations on connections supplied by the caller.
// It holds no connection and no schema cache of its own.
type Service struct {
	codec  value.Codec
	logger *slog.Logger
}

// NewService returns a Service decoding columns with codec.
func NewService(codec value.Codec, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{codec: codec, logger: logger}
}

// RowMapper decodes a result row into a value.Row.
func (s *Service) RowMapper() stream.RowMapper[value.Row] {
	return stream.Infallible(func(r stream.Record) value.Row {
		return s.codec.Row(r.Columns, r.Types, r.Values)
	})
}

// Describe returns the schema of name, or false if the table does not exist.
func (s *Service) Describe(ctx context.Context, q db.Querier, name string) (catalog.Schema, bool, error) {
	return catalog.Describe(ctx, q, name)
}

// Stream returns every row of name, pulled one at a time. The returned
// stream owns h; on error h has already been released.
func (s *Service) Stream(ctx context.Context, h stream.Handle, name string) (*stream.Stream[value.Row], error) {
	ok, err := catalog.TableExists(ctx, h.Conn(), name)
	if err == nil && !ok {
		err = db.TableNotFound(name)
	}
	if err != nil {
		_ = h.Release()
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s", db.QuoteIdent(name))
	s.logger.Debug("streaming table", "table", name, "sql", query)
	st, err := stream.Open(ctx, h, query, s.RowMapper())
	if err != nil {
		return nil, sqlite.TranslateError(err)
	}
	return st, nil
}

// Insert validates payload against the current schema of name, inserts it
// and returns the row as stored, backend-assigned values included.
func (s *Service) Insert(ctx context.Context, q db.Querier, name string, payload value.Value) (value.Row, error) {
	schema, ok, err := catalog.Describe(ctx, q, name)
	if err != nil {
		return value.Row{}, err
	}
	if !ok {
		return value.Row{}, db.TableNotFound(name)
	}
	if len(schema.PrimaryKeys()) > 1 {
		return value.Row{}, db.CompositePrimaryKey(name)
	}

	plan, err := PlanInsert(schema, payload)
	if err != nil {
		return value.Row{}, err
	}

	s.logger.Debug("inserting row", "table", name, "sql", plan.SQL)
	res, err := q.ExecContext(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return value.Row{}, sqlite.TranslateError(err)
	}

	// An omitted key is only assigned by the backend for rowid aliases, so
	// without one the row is located by its rowid.
	if plan.PrimaryKey != "" && plan.KeyArg != nil {
		return s.fetch(ctx, q, name, plan.PrimaryKey, plan.KeyArg)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return value.Row{}, db.Backend(fmt.Errorf("failed to read inserted row id: %w", err))
	}
	return s.fetch(ctx, q, name, "rowid", id)
}

// Delete removes the row of name whose primary key equals id. Deleting an
// id that matches no row is not an error.
func (s *Service) Delete(ctx context.Context, q db.Querier, name string, id value.Value) error {
	schema, ok, err := catalog.Describe(ctx, q, name)
	if err != nil {
		return err
	}
	if !ok {
		return db.TableNotFound(name)
	}
	pk, err := PlanDelete(schema)
	if err != nil {
		return err
	}
	arg, err := value.ToParameter(id)
	if err != nil {
		return withColumn(err, pk)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", db.QuoteIdent(name), db.QuoteIdent(pk))
	s.logger.Debug("deleting row", "table", name, "sql", query)
	if _, err := q.ExecContext(ctx, query, arg); err != nil {
		return sqlite.TranslateError(err)
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, q db.Querier, name, column string, key any) (value.Row, error) {
	col := "rowid"
	if column != "rowid" {
		col = db.QuoteIdent(column)
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", db.QuoteIdent(name), col)

	rows, err := q.QueryContext(ctx, query, key)
	if err != nil {
		return value.Row{}, sqlite.TranslateError(err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return value.Row{}, db.Backend(err)
	}
	types := make([]string, len(cols))
	if cts, err := rows.ColumnTypes(); err == nil {
		for i, ct := range cts {
			if i < len(types) && ct != nil {
				types[i] = ct.DatabaseTypeName()
			}
		}
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return value.Row{}, db.Backend(err)
		}
		return value.Row{}, db.Backend(fmt.Errorf("inserted row of %s not found: %w", name, sql.ErrNoRows))
	}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return value.Row{}, db.Backend(err)
	}
	return s.codec.Row(cols, types, raw), nil
}
