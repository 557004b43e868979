package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func New(connStr string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS invoices (
	id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	amount     BIGINT NOT NULL,
	content    TEXT NOT NULL,
	address    TEXT NOT NULL,
	status     TEXT NOT NULL,
	watched    BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS invoices_address_idx ON invoices (address);

CREATE TABLE IF NOT EXISTS payments (
	id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	txid       TEXT NOT NULL,
	address    TEXT NOT NULL,
	invoice_id UUID NOT NULL REFERENCES invoices (id) ON DELETE CASCADE,
	amount     BIGINT NOT NULL,
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS payments_txid_idx ON payments (txid);
CREATE INDEX IF NOT EXISTS payments_address_idx ON payments (address);

CREATE TABLE IF NOT EXISTS history (
	seq        BIGSERIAL PRIMARY KEY,
	invoice_id UUID NOT NULL,
	payment_id UUID,
	action     TEXT NOT NULL,
	params     JSONB NOT NULL DEFAULT '{}',
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS history_invoice_idx ON history (invoice_id);

CREATE TABLE IF NOT EXISTS scanner_state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	return nil
}
