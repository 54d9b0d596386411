package stores

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

// DefaultEventTable is the table used by EventLog.
const DefaultEventTable = "runbook_events"

// EventLog persists engine events to SQLite as an audit trail.
type EventLog struct {
	db    Querier
	table string

	mu    sync.Mutex
	ready bool
}

// NewEventLog creates an event log on db. An empty table name selects
// DefaultEventTable.
func NewEventLog(db Querier, table string) (*EventLog, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if table == "" {
		table = DefaultEventTable
	}
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	return &EventLog{db: db, table: table}, nil
}

func (l *EventLog) ensureSchema(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ready {
		return nil
	}

	ddl := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id TEXT NOT NULL,
				mode TEXT NOT NULL,
				event_type TEXT NOT NULL,
				runbook TEXT NOT NULL,
				version TEXT,
				action_id TEXT,
				change TEXT,
				outcome TEXT,
				status TEXT,
				error TEXT,
				duration_ms INTEGER,
				timestamp TIMESTAMP NOT NULL
			)
		`, l.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_run ON %s (run_id)`, l.table, l.table),
	}
	for _, stmt := range ddl {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create event table: %w", err)
		}
	}

	l.ready = true
	return nil
}

// Append stores one event and assigns its sequence number.
func (l *EventLog) Append(ctx context.Context, rec *EventRecord) error {
	if err := l.ensureSchema(ctx); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (run_id, mode, event_type, runbook, version, action_id, change, outcome, status, error, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.table)

	result, err := l.db.ExecContext(ctx, query,
		rec.RunID,
		string(rec.Mode),
		string(rec.Type),
		rec.Runbook,
		nullString(rec.Version),
		nullString(rec.ActionID),
		nullString(string(rec.Change)),
		nullString(string(rec.Outcome)),
		nullString(string(rec.Status)),
		nullString(rec.Error),
		rec.Duration.Milliseconds(),
		rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	// Get the auto-generated sequence
	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event sequence: %w", err)
	}
	rec.Seq = seq
	return nil
}

// List returns events matching filter in insertion order.
func (l *EventLog) List(ctx context.Context, filter EventFilter) ([]EventRecord, error) {
	if err := l.ensureSchema(ctx); err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	var eventType *string
	if filter.Type != nil {
		t := string(*filter.Type)
		eventType = &t
	}

	query := fmt.Sprintf(`
		SELECT seq, run_id, mode, event_type, runbook,
			COALESCE(version, ''), COALESCE(action_id, ''), COALESCE(change, ''),
			COALESCE(outcome, ''), COALESCE(status, ''), COALESCE(error, ''),
			COALESCE(duration_ms, 0), timestamp
		FROM %s
		WHERE (? IS NULL OR run_id = ?)
		  AND (? IS NULL OR runbook = ?)
		  AND (? IS NULL OR event_type = ?)
		ORDER BY seq
		LIMIT ?
	`, l.table)

	rows, err := l.db.QueryContext(ctx, query,
		filter.RunID, filter.RunID,
		filter.Runbook, filter.Runbook,
		eventType, eventType,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		var (
			rec                            EventRecord
			mode, typ, change, outcome, st string
			durationMS                     int64
			ts                             any
		)
		err := rows.Scan(
			&rec.Seq,
			&rec.RunID,
			&mode,
			&typ,
			&rec.Runbook,
			&rec.Version,
			&rec.ActionID,
			&change,
			&outcome,
			&st,
			&rec.Error,
			&durationMS,
			&ts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if rec.Timestamp, err = scanTime(ts); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		rec.Mode = engine.RunMode(mode)
		rec.Type = engine.EventType(typ)
		rec.Change = engine.ChangeKind(change)
		rec.Outcome = engine.ActionStatus(outcome)
		rec.Status = engine.RunStatus(st)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		events = append(events, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// Hooks returns engine hooks that append every event to the log. An append
// failure is returned to the engine and aborts the run.
func (l *EventLog) Hooks() engine.Hooks {
	return engine.Hooks{
		OnRunbookStarted: func(ctx context.Context, ev engine.RunbookStartedEvent) error {
			rec := baseRecord(ev.RunEvent, engine.EventRunbookStarted)
			return l.Append(ctx, &rec)
		},
		OnRunbookCompleted: func(ctx context.Context, ev engine.RunbookCompletedEvent) error {
			rec := baseRecord(ev.RunEvent, engine.EventRunbookCompleted)
			rec.Status = ev.Status
			rec.Duration = ev.Duration
			if ev.Err != nil {
				rec.Error = ev.Err.Error()
			}
			return l.Append(ctx, &rec)
		},
		OnActionEvaluated: func(ctx context.Context, ev engine.ActionEvaluatedEvent) error {
			rec := baseRecord(ev.RunEvent, engine.EventActionEvaluated)
			rec.ActionID = ev.Action.ID
			rec.Change = ev.Change
			return l.Append(ctx, &rec)
		},
		OnActionApplied: func(ctx context.Context, ev engine.ActionAppliedEvent) error {
			rec := baseRecord(ev.RunEvent, engine.EventActionApplied)
			rec.ActionID = ev.Action.ID
			rec.Change = ev.Change
			rec.Outcome = ev.Outcome
			rec.Error = ev.Error
			rec.Duration = ev.Duration
			return l.Append(ctx, &rec)
		},
	}
}

func baseRecord(ev engine.RunEvent, t engine.EventType) EventRecord {
	return EventRecord{
		RunID:     ev.RunID,
		Mode:      ev.Mode,
		Type:      t,
		Runbook:   ev.Runbook.Name,
		Version:   ev.Runbook.Version,
		Timestamp: ev.Timestamp,
	}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
