package spechash

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestComputeSpecHashKeyOrder(t *testing.T) {
	a := ComputeSpecHash(map[string]any{"a": 1, "b": 2})
	b := ComputeSpecHash(map[string]any{"b": 2, "a": 1})
	if a != b {
		t.Fatalf("expected equal hashes, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestComputeSpecHashArrayOrder(t *testing.T) {
	a := ComputeSpecHash(map[string]any{"roles": []any{"admin", "viewer"}})
	b := ComputeSpecHash(map[string]any{"roles": []any{"viewer", "admin"}})
	if a == b {
		t.Fatal("expected array order to change the hash")
	}
}

func TestComputeSpecHashNumericTypes(t *testing.T) {
	a := ComputeSpecHash(map[string]any{"ttl": 3600})
	b := ComputeSpecHash(map[string]any{"ttl": float64(3600)})
	c := ComputeSpecHash(map[string]any{"ttl": int64(3600)})
	if a != b || b != c {
		t.Fatalf("expected numeric types to hash identically: %s %s %s", a, b, c)
	}
}

func TestComputeSpecHashNilVersusEmpty(t *testing.T) {
	if ComputeSpecHash(map[string]any(nil)) == ComputeSpecHash(map[string]any{}) {
		t.Error("expected nil map and empty map to hash differently")
	}
	if ComputeSpecHash([]any(nil)) == ComputeSpecHash([]any{}) {
		t.Error("expected nil slice and empty slice to hash differently")
	}
	if ComputeSpecHash(map[string]any(nil)) != ComputeSpecHash(nil) {
		t.Error("expected nil map to hash like null")
	}
}

func TestStableStringify(t *testing.T) {
	type client struct {
		Name    string   `json:"name"`
		Scopes  []string `json:"scopes"`
		Enabled bool     `json:"enabled"`
	}

	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: "null"},
		{name: "string", in: "a<b>&c", want: `"a<b>&c"`},
		{name: "number", in: 1.5, want: "1.5"},
		{name: "integral float", in: 2.0, want: "2"},
		{name: "bool", in: true, want: "true"},
		{
			name: "nested objects sorted",
			in: map[string]any{
				"z": map[string]any{"y": 1, "x": nil},
				"a": []any{3, "b", false},
			},
			want: `{"a":[3,"b",false],"z":{"x":null,"y":1}}`,
		},
		{
			name: "func dropped from object",
			in:   map[string]any{"keep": 1, "drop": func() {}},
			want: `{"keep":1}`,
		},
		{
			name: "func in array becomes null",
			in:   []any{1, func() {}},
			want: `[1,null]`,
		},
		{
			name: "struct reduced through json tags",
			in:   client{Name: "portal", Scopes: []string{"openid"}, Enabled: true},
			want: `{"enabled":true,"name":"portal","scopes":["openid"]}`,
		},
		{
			name: "typed map",
			in:   map[string]string{"b": "2", "a": "1"},
			want: `{"a":"1","b":"2"}`,
		},
		{
			name: "nil typed map",
			in:   map[string]any(nil),
			want: "null",
		},
		{name: "nil slice", in: []any(nil), want: "null"},
		{
			name: "nil collections nested",
			in:   map[string]any{"a": []any(nil), "b": map[string]any(nil), "c": []string(nil)},
			want: `{"a":null,"b":null,"c":null}`,
		},
		{name: "empty map", in: map[string]any{}, want: "{}"},
		{name: "empty slice", in: []any{}, want: "[]"},
		{name: "negative zero", in: map[string]any{"z": math.Copysign(0, -1)}, want: `{"z":0}`},
		{name: "line separators kept raw", in: "a\u2028b\u2029c", want: "\"a\u2028b\u2029c\""},
		{name: "escaped backslash next to separator", in: "\u2028" + `\u2028`, want: "\"\u2028" + `\\u2028"`},
		{name: "control characters escaped", in: "tab\tnl\n", want: `"tab\tnl\n"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StableStringify(tt.in); got != tt.want {
				t.Errorf("StableStringify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(map[string]any{
		"count":  int32(4),
		"labels": map[string]string{"team": "iam"},
		"list":   []string{"a"},
	})
	want := map[string]any{
		"count":  float64(4),
		"labels": map[string]any{"team": "iam"},
		"list":   []any{"a"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateDiff(t *testing.T) {
	after := map[string]any{"name": "portal"}
	d := CreateDiff(nil, after)
	if d.Before != nil {
		t.Errorf("expected nil before, got %v", d.Before)
	}
	if diff := cmp.Diff(after, d.After); diff != "" {
		t.Errorf("after mismatch (-want +got):\n%s", diff)
	}
}
