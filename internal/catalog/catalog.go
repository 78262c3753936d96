// Package catalog reads table metadata from a SQLite backend. Nothing is
// cached: every call reflects the schema as it is at that moment.
package catalog

import (
	"context"
	"fmt"

	"github.com/bgunnarsson/sqlrest/internal/db"
	"github.com/bgunnarsson/sqlrest/internal/stream"
)

// Column describes one table column as reported by PRAGMA table_info.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	HasDefault bool   `json:"has_default"`
	PrimaryKey bool   `json:"primary_key"`
}

// Schema is the ordered column list of one table.
type Schema struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

// PrimaryKeys returns the primary-key columns in declaration order.
func (s Schema) PrimaryKeys() []Column {
	var out []Column
	for _, c := range s.Columns {
		if c.PrimaryKey {
			out = append(out, c)
		}
	}
	return out
}

// Column looks up a column by name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// TableExists reports whether name is a table. A missing table is not an error.
func TableExists(ctx context.Context, q db.Querier, name string) (bool, error) {
	const query = `
		SELECT count(*)
		FROM sqlite_master
		WHERE type = 'table'
		  AND name = ?;
	`
	var n int
	if err := q.QueryRowContext(ctx, query, name).Scan(&n); err != nil {
		return false, db.Backend(fmt.Errorf("failed to look up table %s: %w", name, err))
	}
	return n > 0, nil
}

// Columns returns the columns of name in the order the backend reports them.
// A missing table yields an empty schema.
func Columns(ctx context.Context, q db.Querier, name string) (Schema, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s);", db.QuoteIdent(name))
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return Schema{}, db.Backend(fmt.Errorf("failed to describe table %s: %w", name, err))
	}
	defer func() { _ = rows.Close() }()

	schema := Schema{Table: name}
	for rows.Next() {
		var cid, notnull, pk int
		var col Column
		var dflt any
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notnull, &dflt, &pk); err != nil {
			return Schema{}, db.Backend(fmt.Errorf("failed to scan column of %s: %w", name, err))
		}
		col.NotNull = notnull != 0
		col.HasDefault = dflt != nil
		// pk is the 1-based position within the key, so composite keys mark every member.
		col.PrimaryKey = pk > 0
		schema.Columns = append(schema.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return Schema{}, db.Backend(fmt.Errorf("failed to describe table %s: %w", name, err))
	}
	return schema, nil
}

// Describe returns the schema of name, or false if there is no such table.
func Describe(ctx context.Context, q db.Querier, name string) (Schema, bool, error) {
	ok, err := TableExists(ctx, q, name)
	if err != nil || !ok {
		return Schema{}, false, err
	}
	schema, err := Columns(ctx, q, name)
	if err != nil {
		return Schema{}, false, err
	}
	return schema, true, nil
}

// Tables streams the names of all user tables, ordered by name. The
// stream owns h.
func Tables(ctx context.Context, h stream.Handle) (*stream.Stream[string], error) {
	const query = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY lower(name);
	`
	return stream.Open(ctx, h, query, func(r stream.Record) (string, error) {
		name, ok := r.Values[0].(string)
		if !ok {
			return "", db.Backend(fmt.Errorf("unexpected table name type %T", r.Values[0]))
		}
		return name, nil
	})
}
