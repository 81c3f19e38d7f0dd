// Package store executes translated queries against SQLite.
//
// A collection is one table:
//
//	id   TEXT PRIMARY KEY
//	body TEXT NOT NULL CHECK (json_valid(body))
//	_<field> ... GENERATED ALWAYS AS (json_extract(body, '<path>')) VIRTUAL
//
// The generated columns and their indexes come from schema.DDL, and the
// SQL run by Find and Count comes from querysql. The store binds the
// parameters, scans rows and turns the sort values of the last row into an
// opaque cursor token.
//
// # Critical Patterns
//
// Deterministic results: every Find carries an ORDER BY ending in a unique
// key (see querysql), so the same query over the same rows always returns
// the same page.
//
// Translation errors are configuration errors. They are reported wrapped in
// ErrInvalidQuery and never retried or rewritten into a different query.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (default 5 seconds)
//   - foreign_keys=ON
//
// Both github.com/mattn/go-sqlite3 ("sqlite3", default) and the pure-Go
// modernc.org/sqlite ("sqlite") drivers are registered.
package store
