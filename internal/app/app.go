package app

import (
	"fmt"
	"log/slog"

	"github.com/bgunnarsson/sqlrest/internal/config"
	"github.com/bgunnarsson/sqlrest/internal/db"
	"github.com/bgunnarsson/sqlrest/internal/db/mssql"
	"github.com/bgunnarsson/sqlrest/internal/db/mysql"
	"github.com/bgunnarsson/sqlrest/internal/db/postgres"
	"github.com/bgunnarsson/sqlrest/internal/db/sqlite"
	"github.com/bgunnarsson/sqlrest/internal/stream"
	"github.com/bgunnarsson/sqlrest/internal/value"
)

type Driver string

const (
	DriverSqlite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMssql    Driver = "mssql"
	DriverMysql    Driver = "mysql"
)

// Target names the database a command runs against. An empty Driver means
// SQLite, and an empty DSN means the configured database file.
type Target struct {
	Driver Driver
	DSN    string
}

// central factory
func openDB(cfg *config.Config, t Target, logger *slog.Logger) (db.DB, error) {
	switch t.Driver {
	case "", DriverSqlite:
		path := t.DSN
		if path == "" {
			path = cfg.Database
		}
		return sqlite.Open(path, sqliteOptions(cfg, logger))
	case DriverPostgres:
		return postgres.Open(t.DSN)
	case DriverMssql:
		return mssql.Open(t.DSN)
	case DriverMysql:
		return mysql.Open(t.DSN)
	default:
		return nil, fmt.Errorf("unsupported driver %q", t.Driver)
	}
}

func sqliteOptions(cfg *config.Config, logger *slog.Logger) sqlite.Options {
	return sqlite.Options{
		JournalMode:     cfg.JournalMode,
		BusyTimeout:     cfg.BusyTimeout,
		MaxOpenConns:    cfg.Pool.MaxOpen,
		MaxIdleConns:    cfg.Pool.MaxIdle,
		ConnMaxLifetime: cfg.Pool.ConnMaxLifetime,
		Logger:          logger,
	}
}

// codecFor picks how binary columns render. Only SQLite honours the
// configured mode; the other drivers hand back text as []byte, so their
// binary values are shown as text, or hex for SQL Server.
func codecFor(cfg *config.Config, driver Driver) value.Codec {
	switch driver {
	case "", DriverSqlite:
		return value.Codec{Blob: cfg.BlobMode()}
	case DriverMssql:
		return value.Codec{Blob: value.BlobModeHex}
	default:
		return value.Codec{Blob: value.BlobModeText}
	}
}

// rowMapper decodes raw rows for driver.
func rowMapper(cfg *config.Config, driver Driver) stream.RowMapper[value.Row] {
	codec := codecFor(cfg, driver)
	return stream.Infallible(func(r stream.Record) value.Row {
		if driver == DriverMssql {
			mssql.NormalizeRow(r.Types, r.Values)
		}
		return codec.Row(r.Columns, r.Types, r.Values)
	})
}
