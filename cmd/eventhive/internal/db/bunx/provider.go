package bunx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"
)

// DatabaseType is the backend selected by a DSN.
type DatabaseType string

const (
	DatabaseTypePostgreSQL DatabaseType = "postgres"
	DatabaseTypeSQLite     DatabaseType = "sqlite"
)

const (
	defaultMaxConns = 25
	connMaxLifetime = time.Hour
	pingTimeout     = 10 * time.Second
)

var postgresSchemes = []string{"postgres://", "postgresql://", "unix://"}

// sqlitePragmas run once on the single SQLite connection.
var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
}

// DetectDatabaseType maps a DSN to its backend. Anything that is not a
// Postgres URL (file paths, file: URIs, :memory:) is treated as SQLite.
func DetectDatabaseType(dsn string) DatabaseType {
	for _, scheme := range postgresSchemes {
		if strings.HasPrefix(dsn, scheme) {
			return DatabaseTypePostgreSQL
		}
	}
	return DatabaseTypeSQLite
}

// NewDB opens and pings the database named by dsn. maxConns bounds the
// Postgres pool; SQLite is pinned to one connection so that pragmas and
// :memory: databases survive for the life of the pool.
func NewDB(dsn string, maxConns int) (*bun.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}

	var (
		db    *bun.DB
		setup []string
	)
	switch DetectDatabaseType(dsn) {
	case DatabaseTypePostgreSQL:
		if maxConns <= 0 {
			maxConns = defaultMaxConns
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		sqldb.SetMaxOpenConns(maxConns)
		sqldb.SetMaxIdleConns(maxConns)
		sqldb.SetConnMaxLifetime(connMaxLifetime)
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		sqldb.SetMaxIdleConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
		setup = sqlitePragmas
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	for _, stmt := range setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", stmt, err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Close closes db; a nil db is a no-op.
func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
