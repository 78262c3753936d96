package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/bgunnarsson/sqlrest/internal/catalog"
	"github.com/bgunnarsson/sqlrest/internal/config"
	"github.com/bgunnarsson/sqlrest/internal/db"
	"github.com/bgunnarsson/sqlrest/internal/print"
	"github.com/bgunnarsson/sqlrest/internal/stream"
)

// Output formats.
const (
	FormatAuto  = ""
	FormatTable = "table"
	FormatJSON  = "json"
)

// Output says where and how command results are written.
type Output struct {
	W      io.Writer
	Format string
	// TTY reports whether W is a terminal. It picks the table format
	// when Format is FormatAuto and enables header styling.
	TTY   bool
	Limit int
}

func (o Output) table() bool {
	switch o.Format {
	case FormatTable:
		return true
	case FormatJSON:
		return false
	}
	return o.TTY
}

func (o Output) options() print.Options {
	return print.Options{MaxWidth: 60, Limit: o.Limit, Color: o.TTY}
}

// RunQuery streams the rows of query to out. An empty query lists tables.
func RunQuery(ctx context.Context, cfg *config.Config, t Target, query string, out Output, logger *slog.Logger) error {
	if query == "" {
		// default behaviour: list tables
		return RunTables(ctx, cfg, t, out, logger)
	}

	sdb, err := openDB(cfg, t, logger)
	if err != nil {
		return err
	}
	defer sdb.Close()

	h, err := (&stream.Pool{DB: sdb.Pool(), AcquireTimeout: cfg.Pool.AcquireTimeout}).Lease(ctx)
	if err != nil {
		return err
	}
	logger.Debug("running query", "driver", t.Driver, "sql", query)
	rows, err := stream.Open(ctx, h, query, rowMapper(cfg, t.Driver))
	if err != nil {
		return err
	}

	if out.table() {
		return print.RenderTable(out.W, rows, out.options())
	}
	return print.RenderJSONLines(out.W, rows, out.options())
}

// RunTables writes the names of the user tables.
func RunTables(ctx context.Context, cfg *config.Config, t Target, out Output, logger *slog.Logger) error {
	sdb, err := openDB(cfg, t, logger)
	if err != nil {
		return err
	}
	defer sdb.Close()

	names, err := sdb.ListTables(ctx)
	if err != nil {
		return err
	}
	if !out.table() {
		enc := json.NewEncoder(out.W)
		for _, n := range names {
			if err := enc.Encode(n); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range names {
		fmt.Fprintln(out.W, n)
	}
	return nil
}

// RunDescribe writes the column layout of a SQLite table.
func RunDescribe(ctx context.Context, cfg *config.Config, t Target, table string, out Output, logger *slog.Logger) error {
	if t.Driver != "" && t.Driver != DriverSqlite {
		return fmt.Errorf("describe is not supported for driver %q", t.Driver)
	}
	sdb, err := openDB(cfg, t, logger)
	if err != nil {
		return err
	}
	defer sdb.Close()

	h, err := (&stream.Pool{DB: sdb.Pool(), AcquireTimeout: cfg.Pool.AcquireTimeout}).Lease(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = h.Release() }()

	schema, ok, err := catalog.Describe(ctx, h.Conn(), table)
	if err != nil {
		return err
	}
	if !ok {
		return db.TableNotFound(table)
	}

	if !out.table() {
		enc := json.NewEncoder(out.W)
		enc.SetIndent("", "  ")
		return enc.Encode(schema)
	}
	print.RenderSchema(out.W, schema, out.options())
	return nil
}
