package stores

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

// Querier is the subset of *sql.DB and *sql.Tx the stores need.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// StateRow is one row of the state table.
type StateRow struct {
	Runbook   string    `json:"runbook" yaml:"runbook"`
	ActionID  string    `json:"actionId" yaml:"actionId"`
	SpecHash  string    `json:"specHash" yaml:"specHash"`
	AppliedAt time.Time `json:"appliedAt" yaml:"appliedAt"`
}

// EventRecord is one persisted engine event.
type EventRecord struct {
	Seq       int64               `json:"seq" yaml:"seq"`
	RunID     string              `json:"runId" yaml:"runId"`
	Mode      engine.RunMode      `json:"mode" yaml:"mode"`
	Type      engine.EventType    `json:"type" yaml:"type"`
	Runbook   string              `json:"runbook" yaml:"runbook"`
	Version   string              `json:"version,omitempty" yaml:"version,omitempty"`
	ActionID  string              `json:"actionId,omitempty" yaml:"actionId,omitempty"`
	Change    engine.ChangeKind   `json:"change,omitempty" yaml:"change,omitempty"`
	Outcome   engine.ActionStatus `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Status    engine.RunStatus    `json:"status,omitempty" yaml:"status,omitempty"`
	Error     string              `json:"error,omitempty" yaml:"error,omitempty"`
	Duration  time.Duration       `json:"duration,omitempty" yaml:"duration,omitempty"`
	Timestamp time.Time           `json:"timestamp" yaml:"timestamp"`
}

// EventFilter narrows EventLog.List. Nil fields match everything.
type EventFilter struct {
	RunID   *string
	Runbook *string
	Type    *engine.EventType
	Limit   int
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateTableName(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// rebindDollar rewrites ? placeholders as $1, $2, ... for drivers such as
// PostgreSQL.
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// scanTime converts a timestamp column to time.Time. Drivers differ in
// whether they return time.Time, string or []byte.
func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q", s)
}
