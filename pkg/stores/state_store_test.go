package stores

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// setupTestDB opens an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(context.Background(), Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// countingQuerier records statements and can fail DDL on demand.
type countingQuerier struct {
	Querier
	mu      sync.Mutex
	ddl     int
	failDDL int
	queries []string
}

func (c *countingQuerier) recordQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, strings.Join(strings.Fields(query), " "))
}

func (c *countingQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	c.recordQuery(query)
	return c.Querier.QueryRowContext(ctx, query, args...)
}

func (c *countingQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.recordQuery(query)
	return c.Querier.QueryContext(ctx, query, args...)
}

func (c *countingQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.recordQuery(query)
	if strings.Contains(query, "CREATE") {
		c.mu.Lock()
		c.ddl++
		fail := c.failDDL > 0
		if fail {
			c.failDDL--
		}
		c.mu.Unlock()
		if fail {
			return nil, errors.New("ddl failed")
		}
	}
	return c.Querier.ExecContext(ctx, query, args...)
}

func TestStateStoreReadMissing(t *testing.T) {
	store, err := NewStateStore(setupTestDB(t))
	if err != nil {
		t.Fatalf("NewStateStore() error = %v", err)
	}

	state, err := store.Read(context.Background(), "identity", "never")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if state != nil {
		t.Errorf("expected nil state, got %+v", state)
	}
}

func TestStateStoreWriteReadRemove(t *testing.T) {
	store, err := NewStateStore(setupTestDB(t))
	if err != nil {
		t.Fatalf("NewStateStore() error = %v", err)
	}
	ctx := context.Background()

	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Write(ctx, "identity", "u1", "hash-1", first); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// Upsert replaces the existing row.
	second := first.Add(time.Hour)
	if err := store.Write(ctx, "identity", "u1", "hash-2", second); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	state, err := store.Read(ctx, "identity", "u1")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if state == nil || state.SpecHash != "hash-2" || !state.AppliedAt.Equal(second) {
		t.Fatalf("unexpected state %+v", state)
	}

	// Another runbook with the same action id is independent.
	other, err := store.Read(ctx, "other", "u1")
	if err != nil || other != nil {
		t.Fatalf("expected no state for other runbook, got %+v, %v", other, err)
	}

	if err := store.Remove(ctx, "identity", "u1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := store.Remove(ctx, "identity", "u1"); err != nil {
		t.Fatalf("Remove() of missing row error = %v", err)
	}
	state, err = store.Read(ctx, "identity", "u1")
	if err != nil || state != nil {
		t.Fatalf("expected state removed, got %+v, %v", state, err)
	}
}

func TestStateStoreList(t *testing.T) {
	store, err := NewStateStore(setupTestDB(t), WithStateTable("custom_state"))
	if err != nil {
		t.Fatalf("NewStateStore() error = %v", err)
	}
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"b", "a"} {
		if err := store.Write(ctx, "identity", id, "h-"+id, at); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := store.Write(ctx, "other", "c", "h-c", at); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	rows, err := store.List(ctx, "identity")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []StateRow{
		{Runbook: "identity", ActionID: "a", SpecHash: "h-a", AppliedAt: at},
		{Runbook: "identity", ActionID: "b", SpecHash: "h-b", AppliedAt: at},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestStateStoreLazySchemaOnce(t *testing.T) {
	q := &countingQuerier{Querier: setupTestDB(t)}
	store, err := NewStateStore(q)
	if err != nil {
		t.Fatalf("NewStateStore() error = %v", err)
	}
	ctx := context.Background()

	if q.ddl != 0 {
		t.Fatalf("expected no DDL before first call, got %d", q.ddl)
	}
	for i := 0; i < 3; i++ {
		if _, err := store.Read(ctx, "identity", "u1"); err != nil {
			t.Fatalf("Read() error = %v", err)
		}
	}
	if err := store.Write(ctx, "identity", "u1", "h", time.Now()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if q.ddl != 1 {
		t.Errorf("expected DDL issued once, got %d", q.ddl)
	}
}

func TestStateStoreSchemaRetriedAfterFailure(t *testing.T) {
	q := &countingQuerier{Querier: setupTestDB(t), failDDL: 1}
	store, err := NewStateStore(q)
	if err != nil {
		t.Fatalf("NewStateStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Read(ctx, "identity", "u1"); err == nil {
		t.Fatal("expected first call to fail")
	}
	if _, err := store.Read(ctx, "identity", "u1"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if q.ddl != 2 {
		t.Errorf("expected 2 DDL attempts, got %d", q.ddl)
	}
}

func TestStateStoreDollarPlaceholders(t *testing.T) {
	q := &countingQuerier{Querier: setupTestDB(t)}
	store, err := NewStateStore(q, WithDollarPlaceholders(), WithStateTable("pg_state"))
	if err != nil {
		t.Fatalf("NewStateStore() error = %v", err)
	}
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Write(ctx, "identity", "u1", "hash-1", at); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	state, err := store.Read(ctx, "identity", "u1")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if state == nil || state.SpecHash != "hash-1" || !state.AppliedAt.Equal(at) {
		t.Fatalf("unexpected state %+v", state)
	}
	if _, err := store.List(ctx, "identity"); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if err := store.Remove(ctx, "identity", "u1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	want := []string{
		"CREATE TABLE IF NOT EXISTS pg_state ( runbook TEXT NOT NULL, action_id TEXT NOT NULL, " +
			"spec_hash TEXT NOT NULL, applied_at TIMESTAMP NOT NULL, PRIMARY KEY (runbook, action_id) )",
		"INSERT INTO pg_state (runbook, action_id, spec_hash, applied_at) VALUES ($1, $2, $3, $4) " +
			"ON CONFLICT (runbook, action_id) DO UPDATE SET spec_hash = excluded.spec_hash, applied_at = excluded.applied_at",
		"SELECT spec_hash, applied_at FROM pg_state WHERE runbook = $1 AND action_id = $2",
		"SELECT runbook, action_id, spec_hash, applied_at FROM pg_state WHERE runbook = $1 ORDER BY action_id",
		"DELETE FROM pg_state WHERE runbook = $1 AND action_id = $2",
	}
	if diff := cmp.Diff(want, q.queries); diff != "" {
		t.Errorf("queries mismatch (-want +got):\n%s", diff)
	}
}

func TestNewStateStoreRejectsBadTable(t *testing.T) {
	if _, err := NewStateStore(setupTestDB(t), WithStateTable("state; DROP TABLE x")); err == nil {
		t.Error("expected invalid table name error")
	}
	if _, err := NewStateStore(nil); err == nil {
		t.Error("expected error for nil database")
	}
}

func TestRebindDollar(t *testing.T) {
	got := rebindDollar("SELECT a FROM t WHERE x = ? AND y = ?")
	want := "SELECT a FROM t WHERE x = $1 AND y = $2"
	if got != want {
		t.Errorf("rebindDollar() = %q, want %q", got, want)
	}
}

func TestScanTime(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
	}{
		{name: "time", in: want.In(time.FixedZone("X", 3600))},
		{name: "rfc3339", in: "2024-05-01T12:30:00Z"},
		{name: "sqlite text", in: "2024-05-01 12:30:00+00:00"},
		{name: "bytes", in: []byte("2024-05-01 12:30:00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scanTime(tt.in)
			if err != nil {
				t.Fatalf("scanTime() error = %v", err)
			}
			if !got.Equal(want) {
				t.Errorf("scanTime() = %v, want %v", got, want)
			}
		})
	}

	if _, err := scanTime(42); err == nil {
		t.Error("expected error for unsupported type")
	}
}
