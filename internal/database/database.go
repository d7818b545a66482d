// Package database centralises sqlx connection helpers.  The driver is
// pgx's database/sql adapter; the store leans on PostgreSQL's JSONB
// operators and text search, so no other backend is supported.
//
// Public entry points:
//
//	Open(dsn)                    – quick helper with conservative pool sizes.
//	OpenWithOptions(dsn, maxOpen, maxIdle) – fine-grained control.
//	EnsureSchema(ctx, db)        – create the documents table and indexes.
//
// The open helpers Ping the database before returning so callers can fail
// fast during bootstrap.  Callers should Close() the returned *sqlx.DB
// when no longer needed.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Open returns a *sqlx.DB with sane defaults: 15 max open, 5 idle, and a
// 30-minute connection lifetime.  Suitable for process-wide pools or for
// test setups.
func Open(dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(dsn, 15, 5)
}

// OpenWithOptions lets callers tune maxOpen and maxIdle per pool.
func OpenWithOptions(dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// schemaStatements mirror the store's required indexes: equality on the
// metadata columns, a GIN index serving containment and path predicates,
// a full-text GIN over the serialized payload, and descending range
// indexes on both timestamps.  Proper migration tooling lives outside
// this module; EnsureSchema only bootstraps a bare database.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
        id         UUID PRIMARY KEY,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        status     SMALLINT    NOT NULL,
        type_id    TEXT        NOT NULL,
        user_id    UUID        NOT NULL,
        acl        JSONB,
        payload    JSONB
    )`,
	`CREATE INDEX IF NOT EXISTS documents_type_id_idx ON documents (type_id)`,
	`CREATE INDEX IF NOT EXISTS documents_user_id_idx ON documents (user_id)`,
	`CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (status)`,
	`CREATE INDEX IF NOT EXISTS documents_payload_idx ON documents USING gin (payload)`,
	`CREATE INDEX IF NOT EXISTS documents_payload_fts_idx ON documents USING gin (to_tsvector('english', payload))`,
	`CREATE INDEX IF NOT EXISTS documents_created_at_idx ON documents (created_at DESC NULLS LAST)`,
	`CREATE INDEX IF NOT EXISTS documents_updated_at_idx ON documents (updated_at DESC NULLS LAST)`,
}

// EnsureSchema creates the documents table and its indexes when absent.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
