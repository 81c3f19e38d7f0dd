package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

var (
	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("store: document not found")
	// ErrInvalidQuery wraps translation errors. They describe the query, not
	// the database, and retrying never helps.
	ErrInvalidQuery = errors.New("store: invalid query")
)

// Options configures Open.
type Options struct {
	// Path is the database file, or ":memory:".
	Path string
	// Driver is DriverMattn (default) or DriverModernc.
	Driver string
	// BusyTimeout defaults to 5s.
	BusyTimeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// IDs generates document ids. Defaults to UUIDv7Generator.
	IDs IDGenerator
}

// Store is an open SQLite database holding document collections.
type Store struct {
	db     *sqlx.DB
	driver string
	log    *slog.Logger
	ids    IDGenerator
}

// Open creates or opens the database and applies the pragmas.
//
// This function is idempotent - safe to call multiple times on one path.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("open store: empty path")
	}
	driver := opts.Driver
	if driver == "" {
		driver = DriverMattn
	}
	if driver != DriverMattn && driver != DriverModernc {
		return nil, fmt.Errorf("open store: unknown driver %q", driver)
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IDs == nil {
		opts.IDs = UUIDv7Generator{}
	}

	db, err := sqlx.ConnectContext(ctx, driver, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// This also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db, opts.BusyTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	opts.Logger.Debug("store opened", "path", opts.Path, "driver", driver)
	return &Store{db: db, driver: driver, log: opts.Logger, ids: opts.IDs}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying handle for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

func applyPragmas(ctx context.Context, db *sqlx.DB, busy time.Duration) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var got string
	if err := s.db.Get(&got, "PRAGMA "+name); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if got != expected {
		return fmt.Errorf("%s = %q, expected %q", name, got, expected)
	}
	return nil
}
