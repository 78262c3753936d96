// Package stream turns one SQL statement into a pull-based sequence of
// mapped rows. A Stream owns its prepared statement and the Handle it was
// opened on, whichever way that connection is owned, and tears them down
// in a fixed order: result set, statement, then connection.
package stream

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"strings"

	"github.com/bgunnarsson/sqlrest/internal/db"
)

// Record is the raw view of the current row handed to a RowMapper. Values
// are freshly allocated for every row and may be retained by the mapper.
type Record struct {
	Columns []string
	Types   []string
	Values  []any
}

// RowMapper decodes one Record. An error is reported for that row only.
type RowMapper[T any] func(Record) (T, error)

// Infallible adapts a mapper that cannot fail.
func Infallible[T any](f func(Record) T) RowMapper[T] {
	return func(r Record) (T, error) { return f(r), nil }
}

// Stream is a one-way cursor over the rows of a single statement. It is
// not safe for concurrent use and cannot be restarted once exhausted or
// closed.
type Stream[T any] struct {
	h      Handle
	stmt   *sql.Stmt
	rows   *sql.Rows
	cols   []string
	types  []string
	mapper RowMapper[T]

	cur    T
	curErr error
	err    error
	closed bool
}

// Open prepares query on h, binds args and executes it. The stream owns h
// from this call on: if Open fails, h has already been released.
func Open[T any](ctx context.Context, h Handle, query string, mapper RowMapper[T], args ...any) (*Stream[T], error) {
	s := &Stream[T]{h: h, mapper: mapper}

	stmt, err := h.Conn().PrepareContext(ctx, query)
	if err != nil {
		_ = s.Close()
		return nil, db.Backend(err)
	}
	s.stmt = stmt

	//nolint:rowserrcheck // checked in Next once the cursor is drained
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		_ = s.Close()
		return nil, db.Backend(err)
	}
	s.rows = rows

	cols, err := rows.Columns()
	if err != nil {
		_ = s.Close()
		return nil, db.Backend(err)
	}
	s.cols = cols

	s.types = make([]string, len(cols))
	if cts, err := rows.ColumnTypes(); err == nil {
		for i, ct := range cts {
			if i < len(s.types) && ct != nil {
				s.types[i] = strings.ToLower(ct.DatabaseTypeName())
			}
		}
	}
	return s, nil
}

// Columns returns the result column names.
func (s *Stream[T]) Columns() []string { return s.cols }

// Types returns the lower-cased database type name of each column, empty
// where the driver does not report one.
func (s *Stream[T]) Types() []string { return s.types }

// Next advances the cursor by one row and maps it. It returns false when
// the rows are exhausted, the backend fails or the stream was closed; the
// stream is closed at that point and Err reports any backend failure.
func (s *Stream[T]) Next() bool {
	var zero T
	s.cur, s.curErr = zero, nil
	if s.closed {
		return false
	}

	if !s.rows.Next() {
		s.err = db.Backend(s.rows.Err())
		if err := s.Close(); err != nil && s.err == nil {
			s.err = db.Backend(err)
		}
		return false
	}

	raw := make([]any, len(s.cols))
	ptrs := make([]any, len(s.cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		s.curErr = db.Backend(err)
		return true
	}
	s.cur, s.curErr = s.mapper(Record{Columns: s.cols, Types: s.types, Values: raw})
	return true
}

// Row returns the row mapped by the last call to Next and its decode error.
func (s *Stream[T]) Row() (T, error) { return s.cur, s.curErr }

// Err returns the backend failure that ended the stream, if any.
func (s *Stream[T]) Err() error { return s.err }

// Close releases the result set, the statement and the connection, in
// that order. It is safe to call more than once and before exhaustion.
func (s *Stream[T]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.rows != nil {
		errs = append(errs, s.rows.Close())
	}
	if s.stmt != nil {
		errs = append(errs, s.stmt.Close())
	}
	errs = append(errs, s.h.Release())
	return errors.Join(errs...)
}

// All yields every remaining row with its decode error, followed by the
// backend failure if the stream ends with one. The stream is closed when
// the loop ends, including on break or panic.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer func() { _ = s.Close() }()
		for s.Next() {
			if !yield(s.Row()) {
				return
			}
		}
		if err := s.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// Collect drains s into a slice, stopping at the first error.
func Collect[T any](s *Stream[T]) ([]T, error) {
	var out []T
	for v, err := range s.All() {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
