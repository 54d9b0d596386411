package telemetry

import (
	"time"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func runEvent(runID string, mode engine.RunMode) engine.RunEvent {
	return engine.RunEvent{
		RunID:     runID,
		Mode:      mode,
		Timestamp: testTime,
		Runbook:   engine.RunbookMeta{Name: "identity", Version: "1.0.0"},
	}
}

func action(id string, kind engine.ActionKind) engine.ActionDescriptor {
	return engine.ActionDescriptor{ID: id, Name: id, Kind: kind}
}
