// Package db owns the Postgres connection pool and first-run schema
// bootstrap, adapted from the teacher's internal/core/database package.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// Open opens a pgx/stdlib connection pool against databaseURL, optionally
// layering sslCertPath onto the DSN, pings it, and runs the bootstrap
// schema if the meta table is missing. Mirrors the teacher's
// NewDatabaseClient connection-then-bootstrap sequence.
func Open(ctx context.Context, databaseURL, sslCertPath string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	dsn := databaseURL
	if sslCertPath != "" {
		u, err := url.Parse(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid database url: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", sslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(30 * time.Minute)
	conn.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return conn, nil
}

// EnsureBootstrapped runs scripts/initdb.sql exactly once, gated on the
// presence of a filingsrag_meta row at the current schema version. Same
// two-phase table-exists-then-version-exists check as the teacher's
// EnsureBootstrapped.
func EnsureBootstrapped(ctx context.Context, conn *sql.DB) error {
	bootCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := conn.QueryRowContext(bootCtx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_name = 'filingsrag_meta'
		)`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}

	if !exists {
		return runBootstrap(bootCtx, conn)
	}

	var hasVersion bool
	if err := conn.QueryRowContext(bootCtx,
		`SELECT EXISTS (SELECT 1 FROM filingsrag_meta WHERE version = 1)`,
	).Scan(&hasVersion); err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}
	if !hasVersion {
		return runBootstrap(bootCtx, conn)
	}

	return nil
}

func runBootstrap(ctx context.Context, conn *sql.DB) error {
	sqlBytes, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return fmt.Errorf("read initdb.sql: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	return tx.Commit()
}
