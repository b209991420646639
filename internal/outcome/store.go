package outcome

import (
	"context"
	"time"
)

// Record is the business-facing result of one finished call.
type Record struct {
	ID           string        `json:"id"`
	CallID       string        `json:"call_id"`
	TenantID     string        `json:"tenant_id"`
	Backend      string        `json:"backend"`
	Locale       string        `json:"locale"`
	Transcript   string        `json:"transcript"`
	RecordingRef string        `json:"recording_ref,omitempty"`
	Duration     time.Duration `json:"duration"`
	EndReason    string        `json:"end_reason"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Store persists call outcomes for the business side to consume.
type Store interface {
	Save(ctx context.Context, record Record) error
	Recent(ctx context.Context, tenantID string, limit int) ([]Record, error)
	Close() error
}

// NewStore returns a Postgres-backed store when a database URL is
// configured, otherwise an in-memory one.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
