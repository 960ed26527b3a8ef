package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBConfig holds connection pool settings.
type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB wraps the submissions database. It is the single process-wide
// store handle: the raw submissions table, the audit log and every
// normalized table live in the same file so one pool coordinates all
// concurrent finalize requests.
type DB struct {
	conn *sql.DB
}

// NewDB opens the submissions database with default pool settings.
func NewDB(dbPath string) (*DB, error) {
	config := DBConfig{}

	// In-memory SQLite needs exactly one connection, otherwise every
	// new connection sees an empty database without the schema.
	if isInMemoryPath(dbPath) {
		config.MaxOpenConns = 1
		config.MaxIdleConns = 1
	}

	return NewDBWithConfig(dbPath, config)
}

func isInMemoryPath(dbPath string) bool {
	if dbPath == ":memory:" {
		return true
	}
	return strings.HasPrefix(dbPath, "file:") && strings.Contains(dbPath, "mode=memory")
}

// sqliteDSN appends the driver parameters every pooled connection
// needs. Foreign keys are per-connection in SQLite, so the pragma has
// to travel in the DSN rather than a one-off Exec.
func sqliteDSN(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_foreign_keys=on"
}

// NewDBWithConfig opens the submissions database with explicit pool
// settings. The schema is initialized on open, so a fresh file is
// immediately usable.
func NewDBWithConfig(dbPath string, config DBConfig) (*DB, error) {
	conn, err := sql.Open("sqlite3", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		// SQLite handles large connection counts poorly, keep the pool
		// small to avoid writer lock contention.
		conn.SetMaxOpenConns(10)
	}

	if config.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(config.MaxIdleConns)
	} else {
		conn.SetMaxIdleConns(3)
	}

	if config.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL lets concurrent finalize requests read while one writes.
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Printf("[DB] Warning: failed to enable WAL mode: %v", err)
	}

	db := &DB{conn: conn}

	if err := initSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Ping checks store reachability. Used by the health endpoint so a
// wedged pool surfaces as a failing liveness check instead of silent
// request timeouts.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// nowUTC is the canonical timestamp format for every table: RFC3339 in
// UTC, which sorts lexicographically.
func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// normalizeTimestamp coerces client-supplied timestamps to the
// canonical format, passing unparseable values through unchanged.
func normalizeTimestamp(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.000Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC().Format(time.RFC3339)
		}
	}

	return raw
}
