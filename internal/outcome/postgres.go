package outcome

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists call outcomes in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS call_outcomes (
			id TEXT PRIMARY KEY,
			call_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			backend TEXT NOT NULL,
			locale TEXT NOT NULL,
			transcript TEXT NOT NULL,
			recording_ref TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL,
			end_reason TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_call_outcomes_tenant_created ON call_outcomes (tenant_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, record Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO call_outcomes (id, call_id, tenant_id, backend, locale, transcript, recording_ref, duration_ms, end_reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID,
		record.CallID,
		record.TenantID,
		record.Backend,
		record.Locale,
		record.Transcript,
		record.RecordingRef,
		record.Duration.Milliseconds(),
		record.EndReason,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, tenantID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, call_id, tenant_id, backend, locale, transcript, recording_ref, duration_ms, end_reason, created_at
		 FROM call_outcomes WHERE tenant_id=$1 ORDER BY created_at DESC LIMIT $2`,
		tenantID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.CallID, &r.TenantID, &r.Backend, &r.Locale, &r.Transcript, &r.RecordingRef, &durationMS, &r.EndReason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}

	return records, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
