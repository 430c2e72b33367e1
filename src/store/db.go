package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	// Register the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	// Register the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB is the relational store behind the response cache and feature flags.
type DB struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	var (
		sqlDB *sql.DB
		err   error
	)

	switch driver {
	case DriverSQLite:
		// Each pragma must be prefixed with `_pragma=` for modernc.org/sqlite.
		sqlDB, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// SQLite: single connection keeps in-memory databases shared and avoids writer contention.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	case DriverPostgres:
		sqlDB, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	return &DB{db: sqlDB, driver: driver}, nil
}

// sqliteDSN appends the connection pragmas, keeping any query string the
// configured dsn already carries.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
}

func (d *DB) Driver() string {
	return d.driver
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}

// placeholder returns the n-th (1-based) bind parameter for the dialect.
func (d *DB) placeholder(n int) string {
	if d.driver == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// byteLength is the SQL expression for the UTF-8 byte length of a text column.
func (d *DB) byteLength(column string) string {
	if d.driver == DriverPostgres {
		return "OCTET_LENGTH(" + column + ")"
	}
	return "LENGTH(CAST(" + column + " AS BLOB))"
}
