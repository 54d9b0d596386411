package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

// DefaultStateTable is the table used when no name is configured.
const DefaultStateTable = "runbook_state"

// StateStore implements engine.StateStore on any SQL database reachable
// through a Querier. The table is created lazily on the first call.
type StateStore struct {
	db     Querier
	table  string
	dollar bool

	mu    sync.Mutex
	ready bool
}

var _ engine.StateStore = (*StateStore)(nil)

// StateOption configures a StateStore.
type StateOption func(*StateStore)

// WithStateTable overrides the state table name.
func WithStateTable(name string) StateOption {
	return func(s *StateStore) {
		s.table = name
	}
}

// WithDollarPlaceholders makes the store emit $1, $2, ... placeholders.
func WithDollarPlaceholders() StateOption {
	return func(s *StateStore) {
		s.dollar = true
	}
}

// NewStateStore creates a state store on db.
func NewStateStore(db Querier, opts ...StateOption) (*StateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	s := &StateStore{db: db, table: DefaultStateTable}
	for _, opt := range opts {
		opt(s)
	}
	if err := validateTableName(s.table); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StateStore) query(q string) string {
	q = fmt.Sprintf(q, s.table)
	if s.dollar {
		return rebindDollar(q)
	}
	return q
}

// ensureSchema creates the state table once per store. A failed attempt is
// retried on the next call.
func (s *StateStore) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	query := s.query(`
		CREATE TABLE IF NOT EXISTS %s (
			runbook TEXT NOT NULL,
			action_id TEXT NOT NULL,
			spec_hash TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			PRIMARY KEY (runbook, action_id)
		)
	`)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create state table: %w", err)
	}

	s.ready = true
	return nil
}

// Read returns the stored state for one action, or nil when the action has
// never been applied.
func (s *StateStore) Read(ctx context.Context, runbook, actionID string) (*engine.StoredActionState, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	query := s.query(`
		SELECT spec_hash, applied_at
		FROM %s
		WHERE runbook = ? AND action_id = ?
	`)

	var (
		state     engine.StoredActionState
		appliedAt any
	)
	err := s.db.QueryRowContext(ctx, query, runbook, actionID).Scan(&state.SpecHash, &appliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read action state: %w", err)
	}

	if state.AppliedAt, err = scanTime(appliedAt); err != nil {
		return nil, fmt.Errorf("failed to read action state: %w", err)
	}
	return &state, nil
}

// Write upserts the stored state for one action.
func (s *StateStore) Write(ctx context.Context, runbook, actionID, specHash string, appliedAt time.Time) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	query := s.query(`
		INSERT INTO %s (runbook, action_id, spec_hash, applied_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (runbook, action_id) DO UPDATE SET
			spec_hash = excluded.spec_hash,
			applied_at = excluded.applied_at
	`)

	if _, err := s.db.ExecContext(ctx, query, runbook, actionID, specHash, appliedAt.UTC()); err != nil {
		return fmt.Errorf("failed to write action state: %w", err)
	}
	return nil
}

// Remove deletes the stored state for one action. A missing row is not an
// error.
func (s *StateStore) Remove(ctx context.Context, runbook, actionID string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	query := s.query(`DELETE FROM %s WHERE runbook = ? AND action_id = ?`)
	if _, err := s.db.ExecContext(ctx, query, runbook, actionID); err != nil {
		return fmt.Errorf("failed to remove action state: %w", err)
	}
	return nil
}

// List returns every stored row of one runbook ordered by action id.
func (s *StateStore) List(ctx context.Context, runbook string) ([]StateRow, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	query := s.query(`
		SELECT runbook, action_id, spec_hash, applied_at
		FROM %s
		WHERE runbook = ?
		ORDER BY action_id
	`)

	rows, err := s.db.QueryContext(ctx, query, runbook)
	if err != nil {
		return nil, fmt.Errorf("failed to list action state: %w", err)
	}
	defer rows.Close()

	out := []StateRow{}
	for rows.Next() {
		var (
			row       StateRow
			appliedAt any
		)
		if err := rows.Scan(&row.Runbook, &row.ActionID, &row.SpecHash, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan action state: %w", err)
		}
		if row.AppliedAt, err = scanTime(appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan action state: %w", err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating action state: %w", err)
	}
	return out, nil
}
