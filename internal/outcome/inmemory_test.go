package outcome

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	rec := Record{
		CallID:     "c1",
		TenantID:   "t1",
		Backend:    "openai",
		Locale:     "he",
		Transcript: "user: shalom\nassistant: shalom, ma nishma",
		Duration:   42 * time.Second,
		EndReason:  "farewell",
	}
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Recent(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Recent() = %d records, want 1", len(got))
	}
	if got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Fatalf("Save() must assign id and timestamp: %+v", got[0])
	}
	if got[0].EndReason != "farewell" || got[0].Duration != 42*time.Second {
		t.Fatalf("record corrupted: %+v", got[0])
	}
}

func TestInMemoryStoreFiltersByTenant(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	store.Save(ctx, Record{CallID: "c1", TenantID: "t1", EndReason: "completed"})
	store.Save(ctx, Record{CallID: "c2", TenantID: "t2", EndReason: "completed"})
	store.Save(ctx, Record{CallID: "c3", TenantID: "t1", EndReason: "error"})

	got, err := store.Recent(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent() = %d records, want 2", len(got))
	}
	// Newest first.
	if got[0].CallID != "c3" {
		t.Fatalf("order wrong: %+v", got)
	}
}
