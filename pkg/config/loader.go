package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

// ErrEmptyRunbook is returned for documents with no content.
var ErrEmptyRunbook = errors.New("runbook document is empty")

// LoadRunbook reads and decodes the runbook at path.
func LoadRunbook(path string) (*engine.Runbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read runbook: %w", err)
	}

	rb, err := ParseRunbook(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load runbook %s: %w", path, err)
	}
	return rb, nil
}

// ParseRunbook decodes data using the format implied by ext (".json",
// ".yaml", ".yml"). Any other extension tries JSON first and falls back to
// YAML.
func ParseRunbook(data []byte, ext string) (*engine.Runbook, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return parseJSON(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	}

	rb, jsonErr := parseJSON(data)
	if jsonErr == nil {
		return rb, nil
	}
	rb, yamlErr := parseYAML(data)
	if yamlErr != nil {
		return nil, fmt.Errorf("not valid JSON (%v) or YAML: %w", jsonErr, yamlErr)
	}
	return rb, nil
}

func parseJSON(data []byte) (*engine.Runbook, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyRunbook
	}

	var rb engine.Runbook
	if err := json.Unmarshal(trimmed, &rb); err != nil {
		return nil, fmt.Errorf("failed to decode JSON runbook: %w", err)
	}
	return &rb, nil
}

func parseYAML(data []byte) (*engine.Runbook, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode YAML runbook: %w", err)
	}
	if doc == nil {
		return nil, ErrEmptyRunbook
	}

	raw, err := json.Marshal(yamlToJSONValue(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML runbook: %w", err)
	}
	return parseJSON(raw)
}

// yamlToJSONValue rewrites maps with non-string keys so the tree can be
// encoded as JSON.
func yamlToJSONValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, elem := range t {
			out[k] = yamlToJSONValue(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, elem := range t {
			out[fmt.Sprint(k)] = yamlToJSONValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = yamlToJSONValue(elem)
		}
		return out
	default:
		return v
	}
}
