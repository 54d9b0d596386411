package local

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
	"github.com/ccollier86/catalyst-auth-sub001/pkg/stores"
)

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setupPort(t *testing.T) *Port {
	t.Helper()

	db, err := stores.Open(context.Background(), stores.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	n := 0
	port, err := NewPort(db,
		WithClock(func() time.Time { return fixedTime }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("gen-%d", n)
		}),
	)
	if err != nil {
		t.Fatalf("NewPort() error = %v", err)
	}
	return port
}

func userSpec(id string, props map[string]any) engine.ResourceSpec {
	return engine.ResourceSpec{Kind: "user", ID: id, Properties: props}
}

func TestPortCreateDescribe(t *testing.T) {
	port := setupPort(t)
	ctx := context.Background()

	created, err := port.Create(ctx, userSpec("admin", map[string]any{"email": "a@example.com", "quota": 5}))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Revision != "1" || created.Selector.ID != "admin" {
		t.Errorf("unexpected created state %+v", created)
	}

	got, err := port.Describe(ctx, engine.ResourceSelector{Kind: "user", ID: "admin"})
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	want := &engine.ResourceState{
		Selector:   engine.ResourceSelector{Kind: "user", ID: "admin"},
		Properties: map[string]any{"email": "a@example.com", "quota": float64(5)},
		Revision:   "1",
		SyncedAt:   &fixedTime,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Describe() mismatch (-want +got):\n%s", diff)
	}

	// Same id under another kind is a different resource.
	other, err := port.Describe(ctx, engine.ResourceSelector{Kind: "group", ID: "admin"})
	if err != nil || other != nil {
		t.Errorf("expected no group/admin, got %+v, %v", other, err)
	}
}

func TestPortDescribeByLookup(t *testing.T) {
	port := setupPort(t)
	ctx := context.Background()

	for _, spec := range []engine.ResourceSpec{
		userSpec("a", map[string]any{"email": "a@example.com", "tier": 1}),
		userSpec("b", map[string]any{"email": "b@example.com", "tier": 1}),
	} {
		if _, err := port.Create(ctx, spec); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		lookup map[string]any
		wantID string
	}{
		{name: "single key", lookup: map[string]any{"email": "b@example.com"}, wantID: "b"},
		{name: "numeric equality", lookup: map[string]any{"email": "a@example.com", "tier": 1.0}, wantID: "a"},
		{name: "first by id", lookup: map[string]any{"tier": 1}, wantID: "a"},
		{name: "no match", lookup: map[string]any{"email": "c@example.com"}},
		{name: "missing property", lookup: map[string]any{"phone": "123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := port.Describe(ctx, engine.ResourceSelector{Kind: "user", Lookup: tt.lookup})
			if err != nil {
				t.Fatalf("Describe() error = %v", err)
			}
			if tt.wantID == "" {
				if got != nil {
					t.Errorf("expected no match, got %+v", got)
				}
				return
			}
			if got == nil || got.Selector.ID != tt.wantID {
				t.Errorf("Describe() = %+v, want id %s", got, tt.wantID)
			}
		})
	}

	if _, err := port.Describe(ctx, engine.ResourceSelector{Kind: "user"}); err == nil {
		t.Error("expected error for selector without id or lookup")
	}
}

func TestPortCreateConflictAndGeneratedID(t *testing.T) {
	port := setupPort(t)
	ctx := context.Background()

	if _, err := port.Create(ctx, userSpec("admin", map[string]any{})); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := port.Create(ctx, userSpec("admin", map[string]any{}))
	if !engine.IsAlreadyExists(err) || engine.ClassOf(err) != engine.ErrorClassConflict {
		t.Errorf("expected conflict ALREADY_EXISTS, got %v", err)
	}

	spec := engine.ResourceSpec{
		Kind:       "user",
		Lookup:     map[string]any{"email": "new@example.com"},
		Properties: map[string]any{"email": "new@example.com"},
	}
	created, err := port.Create(ctx, spec)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Selector.ID != "gen-1" {
		t.Errorf("generated id = %q, want gen-1", created.Selector.ID)
	}
	if _, err := port.Create(ctx, spec); !engine.IsAlreadyExists(err) {
		t.Errorf("expected lookup conflict, got %v", err)
	}
}

func TestPortUpdateDelete(t *testing.T) {
	port := setupPort(t)
	ctx := context.Background()
	sel := engine.ResourceSelector{Kind: "user", ID: "admin"}

	if _, err := port.Update(ctx, userSpec("admin", map[string]any{})); !engine.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND on update, got %v", err)
	}
	if err := port.Delete(ctx, sel); !engine.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND on delete, got %v", err)
	}

	if _, err := port.Create(ctx, userSpec("admin", map[string]any{"role": "viewer"})); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	spec := userSpec("admin", map[string]any{"role": "owner"})
	spec.Labels = map[string]string{"team": "platform"}
	updated, err := port.Update(ctx, spec)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Revision != "2" || updated.Properties["role"] != "owner" {
		t.Errorf("unexpected updated state %+v", updated)
	}

	all, err := port.List(ctx, "user")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 || all[0].Labels["team"] != "platform" || all[0].Revision != 2 {
		t.Errorf("unexpected resources %+v", all)
	}

	if err := port.Delete(ctx, sel); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, err := port.Describe(ctx, sel)
	if err != nil || got != nil {
		t.Errorf("expected resource deleted, got %+v, %v", got, err)
	}
}

func TestPortWithRunner(t *testing.T) {
	db, err := stores.Open(context.Background(), stores.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	port, err := NewPort(db)
	if err != nil {
		t.Fatalf("NewPort() error = %v", err)
	}
	state, err := stores.NewStateStore(db)
	if err != nil {
		t.Fatalf("NewStateStore() error = %v", err)
	}
	runner, err := engine.NewRunner(port, state)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	rb := &engine.Runbook{
		Name:    "identity",
		Version: "1.0.0",
		Actions: []engine.Action{
			&engine.EnsureAction{ID: "admin", Name: "admin", Spec: userSpec("admin", map[string]any{"quota": 5})},
		},
	}
	ctx := context.Background()

	first, err := runner.Apply(ctx, rb, engine.ApplyOptions{})
	if err != nil || first.Status != engine.RunStatusSuccess || first.Summary.Applied != 1 {
		t.Fatalf("first Apply() = %+v, %v", first, err)
	}

	// Stored properties round-trip as JSON numbers, which hash the same.
	plan, err := runner.Plan(ctx, rb)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.HasChanges || plan.Actions[0].Change != engine.ChangeNoop {
		t.Errorf("expected noop plan, got %+v", plan.Actions[0])
	}
}

func TestNewPortRequiresDB(t *testing.T) {
	if _, err := NewPort(nil); err == nil {
		t.Error("expected error for nil database")
	}
}
