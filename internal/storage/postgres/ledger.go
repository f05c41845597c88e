// Package postgres provides the Postgres-backed run ledger.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/brightdata-go/internal/storage"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "brightdata_runs"

// Config controls the Postgres connection pool used for ledger rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Ledger writes run rows into Postgres.
type Ledger struct {
	pool  pool
	table string
}

const columns = "run_id, kind, platform, method, target, snapshot_id, status, success, error, " +
	"cost, row_count, source_tag, request_sent_at, data_received_at, archive_uri, digest, recorded_at"

// New creates a Ledger backed by a new pgx pool.
func New(ctx context.Context, cfg Config) (*Ledger, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Ledger{pool: p, table: table}, nil
}

// NewWithPool constructs a Ledger from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*Ledger, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Ledger{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (l *Ledger) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}

// EnsureSchema creates the ledger table when it does not exist.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id           TEXT PRIMARY KEY,
	kind             TEXT NOT NULL,
	platform         TEXT NOT NULL DEFAULT '',
	method           TEXT NOT NULL DEFAULT '',
	target           TEXT NOT NULL DEFAULT '',
	snapshot_id      TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT '',
	success          BOOLEAN NOT NULL,
	error            TEXT NOT NULL DEFAULT '',
	cost             DOUBLE PRECISION NOT NULL DEFAULT 0,
	row_count        INTEGER,
	source_tag       TEXT NOT NULL DEFAULT '',
	request_sent_at  TIMESTAMPTZ,
	data_received_at TIMESTAMPTZ,
	archive_uri      TEXT NOT NULL DEFAULT '',
	digest           TEXT NOT NULL DEFAULT '',
	recorded_at      TIMESTAMPTZ NOT NULL
)`, l.table)
	if _, err := l.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	return nil
}

// RecordRun upserts a run row.
func (l *Ledger) RecordRun(ctx context.Context, run storage.Run) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("run ledger is not configured")
	}
	if run.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
)
ON CONFLICT (run_id) DO UPDATE SET
	status = EXCLUDED.status,
	success = EXCLUDED.success,
	error = EXCLUDED.error,
	cost = EXCLUDED.cost,
	row_count = EXCLUDED.row_count,
	data_received_at = EXCLUDED.data_received_at,
	archive_uri = EXCLUDED.archive_uri,
	digest = EXCLUDED.digest,
	recorded_at = EXCLUDED.recorded_at`, l.table, columns)

	args := []any{
		run.RunID,
		run.Kind,
		run.Platform,
		run.Method,
		run.Target,
		run.SnapshotID,
		run.Status,
		run.Success,
		run.Error,
		run.Cost,
		run.RowCount,
		run.SourceTag,
		run.RequestSentAt,
		run.DataReceivedAt,
		run.ArchiveURI,
		run.Digest,
		run.RecordedAt,
	}
	if _, err := l.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun fetches a run by ID.
func (l *Ledger) GetRun(ctx context.Context, runID string) (storage.Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE run_id = $1`, columns, l.table)
	run, err := scanRun(l.pool.QueryRow(ctx, query, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Run{}, fmt.Errorf("%w: %s", storage.ErrRunNotFound, runID)
	}
	if err != nil {
		return storage.Run{}, fmt.Errorf("select run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit returns all.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY recorded_at DESC`, columns, l.table)
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []storage.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func scanRun(row pgx.Row) (storage.Run, error) {
	var run storage.Run
	err := row.Scan(
		&run.RunID,
		&run.Kind,
		&run.Platform,
		&run.Method,
		&run.Target,
		&run.SnapshotID,
		&run.Status,
		&run.Success,
		&run.Error,
		&run.Cost,
		&run.RowCount,
		&run.SourceTag,
		&run.RequestSentAt,
		&run.DataReceivedAt,
		&run.ArchiveURI,
		&run.Digest,
		&run.RecordedAt,
	)
	return run, err
}
