package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mock implementations for testing

type mockPort struct {
	mu        sync.Mutex
	resources map[string]*ResourceState
	errs      map[string]error
	calls     []string
}

func newMockPort() *mockPort {
	return &mockPort{
		resources: make(map[string]*ResourceState),
		errs:      make(map[string]error),
	}
}

func selectorKey(sel ResourceSelector) string {
	return sel.Kind + "/" + sel.ID
}

func (m *mockPort) put(kind, id string, props map[string]any) {
	sel := ResourceSelector{Kind: kind, ID: id}
	m.resources[selectorKey(sel)] = &ResourceState{Selector: sel, Properties: props}
}

// failOn makes the given operation fail for kind/id.
func (m *mockPort) failOn(op, kind, id string, err error) {
	m.errs[op+":"+kind+"/"+id] = err
}

func (m *mockPort) record(op string, sel ResourceSelector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := op + ":" + selectorKey(sel)
	m.calls = append(m.calls, call)
	return m.errs[call]
}

func (m *mockPort) mutatingCalls() []string {
	var out []string
	for _, c := range m.calls {
		if len(c) >= 8 && c[:8] == "describe" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (m *mockPort) Describe(ctx context.Context, sel ResourceSelector) (*ResourceState, error) {
	if err := m.record("describe", sel); err != nil {
		return nil, err
	}
	state, ok := m.resources[selectorKey(sel)]
	if !ok {
		return nil, nil
	}
	return state, nil
}

func (m *mockPort) Create(ctx context.Context, spec ResourceSpec) (*ResourceState, error) {
	sel := spec.Selector()
	if err := m.record("create", sel); err != nil {
		return nil, err
	}
	state := &ResourceState{Selector: sel, Properties: spec.Properties}
	m.resources[selectorKey(sel)] = state
	return state, nil
}

func (m *mockPort) Update(ctx context.Context, spec ResourceSpec) (*ResourceState, error) {
	sel := spec.Selector()
	if err := m.record("update", sel); err != nil {
		return nil, err
	}
	state := &ResourceState{Selector: sel, Properties: spec.Properties}
	m.resources[selectorKey(sel)] = state
	return state, nil
}

func (m *mockPort) Delete(ctx context.Context, sel ResourceSelector) error {
	if err := m.record("delete", sel); err != nil {
		return err
	}
	delete(m.resources, selectorKey(sel))
	return nil
}

type mockStore struct {
	mu       sync.Mutex
	rows     map[string]StoredActionState
	calls    []string
	readErr  error
	writeErr error
}

func newMockStore() *mockStore {
	return &mockStore{rows: make(map[string]StoredActionState)}
}

func (m *mockStore) Read(ctx context.Context, runbook, actionID string) (*StoredActionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "read:"+actionID)
	if m.readErr != nil {
		return nil, m.readErr
	}
	row, ok := m.rows[runbook+"/"+actionID]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *mockStore) Write(ctx context.Context, runbook, actionID, specHash string, appliedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "write:"+actionID)
	if m.writeErr != nil {
		return m.writeErr
	}
	m.rows[runbook+"/"+actionID] = StoredActionState{SpecHash: specHash, AppliedAt: appliedAt}
	return nil
}

func (m *mockStore) Remove(ctx context.Context, runbook, actionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "remove:"+actionID)
	delete(m.rows, runbook+"/"+actionID)
	return nil
}

func (m *mockStore) mutatingCalls() []string {
	var out []string
	for _, c := range m.calls {
		if len(c) >= 4 && c[:4] == "read" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// eventRecorder captures hook invocations as compact strings.
type eventRecorder struct {
	events    []string
	completed []RunbookCompletedEvent
	runIDs    map[string]bool
}

func (e *eventRecorder) hooks() Hooks {
	e.runIDs = make(map[string]bool)
	return Hooks{
		OnRunbookStarted: func(ctx context.Context, ev RunbookStartedEvent) error {
			e.runIDs[ev.RunID] = true
			e.events = append(e.events, fmt.Sprintf("started:%s", ev.Mode))
			return nil
		},
		OnRunbookCompleted: func(ctx context.Context, ev RunbookCompletedEvent) error {
			e.runIDs[ev.RunID] = true
			e.completed = append(e.completed, ev)
			e.events = append(e.events, fmt.Sprintf("completed:%s:%s", ev.Mode, ev.Status))
			return nil
		},
		OnActionEvaluated: func(ctx context.Context, ev ActionEvaluatedEvent) error {
			e.runIDs[ev.RunID] = true
			e.events = append(e.events, fmt.Sprintf("evaluated:%s:%s", ev.Action.ID, ev.Change))
			return nil
		},
		OnActionApplied: func(ctx context.Context, ev ActionAppliedEvent) error {
			e.runIDs[ev.RunID] = true
			e.events = append(e.events, fmt.Sprintf("applied:%s:%s", ev.Action.ID, ev.Outcome))
			return nil
		},
	}
}

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRunner(port ResourcePort, store StateStore, opts ...Option) *Runner {
	opts = append([]Option{
		WithClock(func() time.Time { return fixedTime }),
		WithRunIDGenerator(func() string { return "run-1" }),
	}, opts...)
	r, err := NewRunner(port, store, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

func ensure(id, kind, resourceID string, props map[string]any, deps ...string) *EnsureAction {
	return &EnsureAction{
		ID:        id,
		Name:      "ensure " + id,
		DependsOn: deps,
		Spec: ResourceSpec{
			Kind:       kind,
			ID:         resourceID,
			Properties: props,
		},
	}
}

func remove(id, kind, resourceID string, deps ...string) *DeleteAction {
	return &DeleteAction{
		ID:        id,
		Name:      "delete " + id,
		DependsOn: deps,
		Selector:  ResourceSelector{Kind: kind, ID: resourceID},
	}
}

func runbook(actions ...Action) *Runbook {
	return &Runbook{Name: "identity", Version: "1.0.0", Actions: actions}
}
