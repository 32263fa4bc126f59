// Package duckdb is the columnar table engine for burden tables. Sample
// tables are persisted as Parquet with a YAML sidecar; cohorts and their
// gene aggregates are materialized as DuckDB tables.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	goduckdb "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// Options tune the DuckDB instance. Zero values keep DuckDB's defaults.
type Options struct {
	Threads     int
	MemoryLimit string // e.g. "4GB"
}

// Store manages a DuckDB connection used for table I/O and aggregation.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
	seq    atomic.Uint64
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, Options{})
}

// OpenWithOptions is Open with explicit engine settings.
func OpenWithOptions(path string, opts Options) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path, logger: zap.NewNop()}
	if err := s.configure(opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure duckdb: %w", err)
	}

	return s, nil
}

// SetLogger sets the logger for debug messages.
func (s *Store) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) configure(opts Options) error {
	if opts.Threads > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("SET threads TO %d", opts.Threads)); err != nil {
			return fmt.Errorf("set threads: %w", err)
		}
	}
	if opts.MemoryLimit != "" {
		if _, err := s.db.Exec("SET memory_limit = " + sqlString(opts.MemoryLimit)); err != nil {
			return fmt.Errorf("set memory_limit: %w", err)
		}
	}
	return nil
}

// tableName returns a table name unique within this store.
func (s *Store) tableName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, s.seq.Add(1))
}

// withAppender runs fn with an appender for table on conn and flushes it.
func withAppender(conn *sql.Conn, table string, fn func(*goduckdb.Appender) error) error {
	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	if err := fn(appender); err != nil {
		return err
	}
	return appender.Flush()
}

func dropTable(ctx context.Context, conn interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, table string) error {
	_, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)
	return err
}

// sqlString quotes s as a SQL string literal.
func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
