// Package local implements engine.ResourcePort on a SQLite table. It lets
// runbooks be exercised end to end without a remote identity system.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
	"github.com/ccollier86/catalyst-auth-sub001/pkg/spechash"
	"github.com/ccollier86/catalyst-auth-sub001/pkg/stores"
)

const resourcesTable = "local_resources"

// Resource is one stored resource row.
type Resource struct {
	Kind       string            `json:"kind" yaml:"kind"`
	ID         string            `json:"id" yaml:"id"`
	Properties map[string]any    `json:"properties" yaml:"properties"`
	Labels     map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Revision   int64             `json:"revision" yaml:"revision"`
	SyncedAt   time.Time         `json:"syncedAt" yaml:"syncedAt"`
}

func (r *Resource) state() *engine.ResourceState {
	synced := r.SyncedAt
	return &engine.ResourceState{
		Selector:   engine.ResourceSelector{Kind: r.Kind, ID: r.ID},
		Properties: r.Properties,
		Revision:   strconv.FormatInt(r.Revision, 10),
		SyncedAt:   &synced,
	}
}

// Port stores resources in the local_resources table.
type Port struct {
	db    stores.Querier
	now   func() time.Time
	newID func() string

	// mu serializes writes so existence checks and inserts do not race.
	mu    sync.Mutex
	ready bool
}

var _ engine.ResourcePort = (*Port)(nil)

// Option configures a Port.
type Option func(*Port)

// WithClock overrides the time source used for synced_at.
func WithClock(now func() time.Time) Option {
	return func(p *Port) {
		p.now = now
	}
}

// WithIDGenerator overrides the id assigned to specs without an id.
func WithIDGenerator(gen func() string) Option {
	return func(p *Port) {
		p.newID = gen
	}
}

// NewPort creates a port on db.
func NewPort(db stores.Querier, opts ...Option) (*Port, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	p := &Port{
		db:    db,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Port) ensureSchema(ctx context.Context) error {
	if p.ready {
		return nil
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			properties TEXT NOT NULL,
			labels TEXT,
			revision INTEGER NOT NULL,
			synced_at TEXT NOT NULL,
			PRIMARY KEY (kind, id)
		)
	`, resourcesTable)
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create resources table: %w", err)
	}

	p.ready = true
	return nil
}

// Describe returns the resource addressed by sel, or nil when none matches.
// An id takes precedence over lookup criteria.
func (p *Port) Describe(ctx context.Context, sel engine.ResourceSelector) (*engine.ResourceState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.find(ctx, sel)
	if err != nil || res == nil {
		return nil, err
	}
	return res.state(), nil
}

// Create inserts the resource. It fails with a conflict error when the
// selector already matches a resource.
func (p *Port) Create(ctx context.Context, spec engine.ResourceSpec) (*engine.ResourceState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureSchema(ctx); err != nil {
		return nil, engine.NewTransientError("failed to prepare resources table", err)
	}

	var existing *Resource
	if spec.ID != "" || len(spec.Lookup) > 0 {
		var err error
		if existing, err = p.find(ctx, spec.Selector()); err != nil {
			return nil, err
		}
	}
	if existing != nil {
		return nil, engine.NewConflictError(
			fmt.Sprintf("resource %s/%s already exists", existing.Kind, existing.ID), nil,
		).WithCode(engine.ErrCodeAlreadyExists).WithOperation(engine.OperationCreate)
	}

	res := &Resource{
		Kind:       spec.Kind,
		ID:         spec.ID,
		Properties: spec.Properties,
		Labels:     spec.Labels,
		Revision:   1,
		SyncedAt:   p.now().UTC(),
	}
	if res.ID == "" {
		res.ID = p.newID()
	}

	props, labels, err := encode(res)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (kind, id, properties, labels, revision, synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, resourcesTable)
	if _, err := p.db.ExecContext(ctx, query,
		res.Kind, res.ID, props, labels, res.Revision, res.SyncedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, engine.NewTransientError("failed to insert resource", err).WithOperation(engine.OperationCreate)
	}
	return res.state(), nil
}

// Update replaces properties and labels of an existing resource and bumps
// its revision.
func (p *Port) Update(ctx context.Context, spec engine.ResourceSpec) (*engine.ResourceState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.find(ctx, spec.Selector())
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, notFound(spec.Selector(), engine.OperationUpdate)
	}

	res.Properties = spec.Properties
	res.Labels = spec.Labels
	res.Revision++
	res.SyncedAt = p.now().UTC()

	props, labels, err := encode(res)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET properties = ?, labels = ?, revision = ?, synced_at = ?
		WHERE kind = ? AND id = ?
	`, resourcesTable)
	if _, err := p.db.ExecContext(ctx, query,
		props, labels, res.Revision, res.SyncedAt.Format(time.RFC3339Nano), res.Kind, res.ID,
	); err != nil {
		return nil, engine.NewTransientError("failed to update resource", err).WithOperation(engine.OperationUpdate)
	}
	return res.state(), nil
}

// Delete removes the resource addressed by sel.
func (p *Port) Delete(ctx context.Context, sel engine.ResourceSelector) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.find(ctx, sel)
	if err != nil {
		return err
	}
	if res == nil {
		return notFound(sel, engine.OperationDelete)
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE kind = ? AND id = ?`, resourcesTable)
	if _, err := p.db.ExecContext(ctx, query, res.Kind, res.ID); err != nil {
		return engine.NewTransientError("failed to delete resource", err).WithOperation(engine.OperationDelete)
	}
	return nil
}

// List returns every resource, optionally restricted to one kind, ordered
// by kind and id.
func (p *Port) List(ctx context.Context, kind string) ([]Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var filter *string
	if kind != "" {
		filter = &kind
	}
	return p.query(ctx, `WHERE (? IS NULL OR kind = ?) ORDER BY kind, id`, filter, filter)
}

// find resolves sel to at most one resource. Callers hold mu.
func (p *Port) find(ctx context.Context, sel engine.ResourceSelector) (*Resource, error) {
	if sel.ID != "" {
		rows, err := p.query(ctx, `WHERE kind = ? AND id = ?`, sel.Kind, sel.ID)
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		return &rows[0], nil
	}

	if len(sel.Lookup) == 0 {
		return nil, engine.NewPermanentError(
			fmt.Sprintf("selector %s has neither id nor lookup", sel), nil,
		).WithCode(engine.ErrCodeValidation).WithOperation(engine.OperationDescribe)
	}

	rows, err := p.query(ctx, `WHERE kind = ? ORDER BY id`, sel.Kind)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if matches(rows[i].Properties, sel.Lookup) {
			return &rows[i], nil
		}
	}
	return nil, nil
}

func (p *Port) query(ctx context.Context, where string, args ...any) ([]Resource, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, engine.NewTransientError("failed to prepare resources table", err)
	}

	query := fmt.Sprintf(`
		SELECT kind, id, properties, COALESCE(labels, ''), revision, synced_at
		FROM %s
	`, resourcesTable) + where

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engine.NewTransientError("failed to query resources", err).WithOperation(engine.OperationDescribe)
	}
	defer rows.Close()

	out := []Resource{}
	for rows.Next() {
		var (
			res           Resource
			props, labels string
			syncedAt      string
		)
		if err := rows.Scan(&res.Kind, &res.ID, &props, &labels, &res.Revision, &syncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		if err := decode(&res, props, labels, syncedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resources: %w", err)
	}
	return out, nil
}

// matches reports whether every lookup entry equals the top-level property
// of the same name. Values are compared in canonical form so 1 and 1.0 are
// equal.
func matches(props, lookup map[string]any) bool {
	for k, want := range lookup {
		got, ok := props[k]
		if !ok {
			return false
		}
		if spechash.StableStringify(got) != spechash.StableStringify(want) {
			return false
		}
	}
	return true
}

func encode(res *Resource) (string, *string, error) {
	props, err := json.Marshal(res.Properties)
	if err != nil {
		return "", nil, engine.NewPermanentError("failed to encode properties", err)
	}
	if len(res.Labels) == 0 {
		return string(props), nil, nil
	}
	labels, err := json.Marshal(res.Labels)
	if err != nil {
		return "", nil, engine.NewPermanentError("failed to encode labels", err)
	}
	s := string(labels)
	return string(props), &s, nil
}

func decode(res *Resource, props, labels, syncedAt string) error {
	if err := json.Unmarshal([]byte(props), &res.Properties); err != nil {
		return fmt.Errorf("failed to decode properties of %s/%s: %w", res.Kind, res.ID, err)
	}
	if labels != "" {
		if err := json.Unmarshal([]byte(labels), &res.Labels); err != nil {
			return fmt.Errorf("failed to decode labels of %s/%s: %w", res.Kind, res.ID, err)
		}
	}
	t, err := time.Parse(time.RFC3339Nano, syncedAt)
	if err != nil {
		return fmt.Errorf("failed to decode synced_at of %s/%s: %w", res.Kind, res.ID, err)
	}
	res.SyncedAt = t
	return nil
}

func notFound(sel engine.ResourceSelector, op string) error {
	return engine.NewPermanentError(
		fmt.Sprintf("resource %s not found", sel), nil,
	).WithCode(engine.ErrCodeNotFound).WithOperation(op)
}
