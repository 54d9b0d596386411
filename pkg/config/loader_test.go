package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

const yamlRunbook = `
name: identity
version: 1.0.0
labels:
  team: platform
actions:
  - kind: ensure
    id: admin
    name: Admin user
    spec:
      kind: user
      id: admin
      properties:
        email: admin@example.com
        roles: [owner]
        quota: 5
  - kind: delete
    id: legacy
    name: Remove legacy user
    dependsOn: [admin]
    selector:
      kind: user
      lookup:
        email: old@example.com
`

const jsonRunbook = `{
  "name": "identity",
  "version": "1.0.0",
  "labels": {"team": "platform"},
  "actions": [
    {
      "kind": "ensure",
      "id": "admin",
      "name": "Admin user",
      "spec": {
        "kind": "user",
        "id": "admin",
        "properties": {"email": "admin@example.com", "roles": ["owner"], "quota": 5}
      }
    },
    {
      "kind": "delete",
      "id": "legacy",
      "name": "Remove legacy user",
      "dependsOn": ["admin"],
      "selector": {"kind": "user", "lookup": {"email": "old@example.com"}}
    }
  ]
}`

func expectedRunbook() *engine.Runbook {
	return &engine.Runbook{
		Name:    "identity",
		Version: "1.0.0",
		Labels:  map[string]string{"team": "platform"},
		Actions: []engine.Action{
			&engine.EnsureAction{
				ID:   "admin",
				Name: "Admin user",
				Spec: engine.ResourceSpec{
					Kind: "user",
					ID:   "admin",
					Properties: map[string]any{
						"email": "admin@example.com",
						"roles": []any{"owner"},
						"quota": float64(5),
					},
				},
			},
			&engine.DeleteAction{
				ID:        "legacy",
				Name:      "Remove legacy user",
				DependsOn: []string{"admin"},
				Selector: engine.ResourceSelector{
					Kind:   "user",
					Lookup: map[string]any{"email": "old@example.com"},
				},
			},
		},
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadRunbook(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "yaml", file: "identity.yaml", content: yamlRunbook},
		{name: "yml", file: "identity.yml", content: yamlRunbook},
		{name: "json", file: "identity.json", content: jsonRunbook},
		{name: "unknown extension json", file: "identity.runbook", content: jsonRunbook},
		{name: "unknown extension yaml", file: "identity", content: yamlRunbook},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb, err := LoadRunbook(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("LoadRunbook() error = %v", err)
			}
			if diff := cmp.Diff(expectedRunbook(), rb); diff != "" {
				t.Errorf("LoadRunbook() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadRunbookErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{name: "empty yaml", file: "empty.yaml", content: "", wantErr: "empty"},
		{name: "null json", file: "null.json", content: "null", wantErr: "empty"},
		{name: "bad json", file: "bad.json", content: "{", wantErr: "failed to decode JSON runbook"},
		{name: "bad yaml", file: "bad.yaml", content: "name: [", wantErr: "failed to decode YAML runbook"},
		{
			name:    "unknown kind",
			file:    "kind.json",
			content: `{"name":"a","version":"1","actions":[{"kind":"patch","id":"x"}]}`,
			wantErr: `actions[0]: unknown action kind "patch"`,
		},
		{
			name:    "missing kind",
			file:    "kind.yaml",
			content: "name: a\nversion: '1'\nactions:\n  - id: x\n",
			wantErr: "action kind is required",
		},
		{name: "neither", file: "garbage", content: "{: [", wantErr: "not valid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := LoadRunbook(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), path) {
				t.Errorf("error = %q, want it to name the file", err)
			}
		})
	}
}

func TestLoadRunbookEmptyIsSentinel(t *testing.T) {
	_, err := LoadRunbook(writeFile(t, "empty.json", "  \n"))
	if !errors.Is(err, ErrEmptyRunbook) {
		t.Errorf("error = %v, want ErrEmptyRunbook", err)
	}
}

func TestLoadRunbookMissingFile(t *testing.T) {
	if _, err := LoadRunbook(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func TestYAMLToJSONValue(t *testing.T) {
	in := map[string]any{
		"nested": map[any]any{1: "one", "two": []any{map[any]any{true: "yes"}}},
	}
	want := map[string]any{
		"nested": map[string]any{"1": "one", "two": []any{map[string]any{"true": "yes"}}},
	}
	if diff := cmp.Diff(want, yamlToJSONValue(in)); diff != "" {
		t.Errorf("yamlToJSONValue() mismatch (-want +got):\n%s", diff)
	}
}
