// Package stores provides the SQL persistence used by the runbook engine:
// the per-action state store that records the last applied spec hash, a
// durable event log fed by engine hooks, and a SQLite bootstrap with WAL
// mode and connection pooling.
package stores
