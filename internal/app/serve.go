package app

import (
	"context"
	"log/slog"

	"github.com/bgunnarsson/sqlrest/internal/config"
	"github.com/bgunnarsson/sqlrest/internal/db/sqlite"
	"github.com/bgunnarsson/sqlrest/internal/server"
	"github.com/bgunnarsson/sqlrest/internal/stream"
	"github.com/bgunnarsson/sqlrest/internal/table"
)

// RunServe opens the configured SQLite database and serves it over HTTP
// until ctx is cancelled.
func RunServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sdb, err := sqlite.Open(cfg.Database, sqliteOptions(cfg, logger))
	if err != nil {
		return err
	}
	defer func() { _ = sdb.Close() }()

	srv := server.New(server.Config{
		Pool:   &stream.Pool{DB: sdb.Pool(), AcquireTimeout: cfg.Pool.AcquireTimeout},
		Tables: table.NewService(codecFor(cfg, DriverSqlite), logger),
		Addr:   cfg.Listen,
		Logger: logger,
	})
	return srv.Serve(ctx)
}
