package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register driver

	"github.com/bgunnarsson/sqlrest/internal/catalog"
	"github.com/bgunnarsson/sqlrest/internal/stream"
)

// Options tune the connection pool. Zero values fall back to defaults.
type Options struct {
	JournalMode     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
	Logger          *slog.Logger
}

type SqliteDB struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(path string, opts Options) (*SqliteDB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sqldb, err := sql.Open("sqlite", dsn(path, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 4
	}
	// every connection to :memory: is a separate database
	if isMemory(path) {
		maxOpen = 1
	}
	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = maxOpen
	}
	lifetime := opts.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	if isMemory(path) {
		lifetime = 0
	}
	sqldb.SetMaxOpenConns(maxOpen)
	sqldb.SetMaxIdleConns(maxIdle)
	sqldb.SetConnMaxLifetime(lifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.Debug("opened sqlite database", "path", path, "max_open", maxOpen)
	return &SqliteDB{db: sqldb, logger: logger}, nil
}

func (s *SqliteDB) Close() error {
	s.logger.Debug("closing sqlite database")
	return s.db.Close()
}

// Pool exposes the underlying connection pool.
func (s *SqliteDB) Pool() *sql.DB {
	return s.db
}

func (s *SqliteDB) ListTables(ctx context.Context) ([]string, error) {
	h, err := (&stream.Pool{DB: s.db}).Lease(ctx)
	if err != nil {
		return nil, err
	}
	names, err := catalog.Tables(ctx, h)
	if err != nil {
		return nil, err
	}
	return stream.Collect(names)
}

func dsn(path string, opts Options) string {
	journal := strings.ToUpper(opts.JournalMode)
	if journal == "" {
		journal = "WAL"
	}
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	if !isMemory(path) {
		q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", journal))
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}
