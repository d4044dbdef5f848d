// Package database opens the invoice database and keeps its schema current.
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"billdesk/internal/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects to the database for driver and verifies the connection.
// SQLite files are opened with foreign keys on, a busy timeout and
// IMMEDIATE transactions, behind a single connection.
func Open(ctx context.Context, driver, url string) (*sqlx.DB, error) {
	log := logger.WithComponent("database")

	var dsn string
	switch driver {
	case DriverSQLite:
		dsn = SQLiteDSN(url)
	case DriverPostgres:
		dsn = url
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("database: connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	log.Debug().Str("driver", driver).Msg("Database connection established")
	return db, nil
}

// SQLiteDSN turns a file path (or file: URI) into a modernc.org/sqlite DSN
// carrying the pragmas the store depends on.
func SQLiteDSN(path string) string {
	if path == ":memory:" {
		path = "file::memory:"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	params := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_txlock=immediate",
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// Migrate creates the invoice tables when they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	log := logger.WithComponent("database")

	stmts := sqliteSchema
	if db.DriverName() == DriverPostgres {
		stmts = postgresSchema
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: migrate %s: %w", db.DriverName(), err)
		}
	}

	log.Debug().Str("driver", db.DriverName()).Int("statements", len(stmts)).Msg("Schema migrated")
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS invoice_counters (
    year    INTEGER PRIMARY KEY,
    counter INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS invoices (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    invoice_number   TEXT NOT NULL UNIQUE,
    client           TEXT NOT NULL,
    total            INTEGER NOT NULL,
    paid             INTEGER NOT NULL DEFAULT 0,
    balance          INTEGER NOT NULL,
    status           TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'CANCELLED')),
    description      TEXT NOT NULL DEFAULT '',
    reference        TEXT NOT NULL DEFAULT '',
    terms            TEXT NOT NULL DEFAULT '',
    invoice_date     TEXT NOT NULL DEFAULT '',
    due_date         TEXT NOT NULL DEFAULT '',
    installment_mode TEXT NOT NULL DEFAULT 'NONE',
    pdf_path         TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices (status)`,
	`CREATE TABLE IF NOT EXISTS installments (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    invoice_id INTEGER NOT NULL REFERENCES invoices (id),
    amount     INTEGER NOT NULL,
    due_on     TEXT NOT NULL,
    paid_on    TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_installments_invoice_id ON installments (invoice_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS invoice_counters (
    year    INTEGER PRIMARY KEY,
    counter BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS invoices (
    id               BIGSERIAL PRIMARY KEY,
    invoice_number   TEXT NOT NULL UNIQUE,
    client           TEXT NOT NULL,
    total            BIGINT NOT NULL,
    paid             BIGINT NOT NULL DEFAULT 0,
    balance          BIGINT NOT NULL,
    status           TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'CANCELLED')),
    description      TEXT NOT NULL DEFAULT '',
    reference        TEXT NOT NULL DEFAULT '',
    terms            TEXT NOT NULL DEFAULT '',
    invoice_date     TEXT NOT NULL DEFAULT '',
    due_date         TEXT NOT NULL DEFAULT '',
    installment_mode TEXT NOT NULL DEFAULT 'NONE',
    pdf_path         TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices (status)`,
	`CREATE TABLE IF NOT EXISTS installments (
    id         BIGSERIAL PRIMARY KEY,
    invoice_id BIGINT NOT NULL REFERENCES invoices (id),
    amount     BIGINT NOT NULL,
    due_on     TEXT NOT NULL,
    paid_on    TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_installments_invoice_id ON installments (invoice_id)`,
}
