package regfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type item struct {
	ID    string `json:"id" yaml:"id"`
	Value int    `json:"value" yaml:"value"`
}

var itemSchema = Schema[item]{
	Section:   "items",
	ID:        func(i item) string { return i.ID },
	Normalize: func(i item) item { i.ID = strings.TrimSpace(i.ID); return i },
	Validate: func(i item) error {
		if i.ID == "" {
			return errors.New("id is required")
		}
		return nil
	},
}

func TestParseYAMLAndJSON(t *testing.T) {
	reg, err := Parse([]byte("items:\n  - id: ' a '\n    value: 1\n  - id: b\n"), ".yml", itemSchema)
	if err != nil {
		t.Fatalf("Parse yaml: %v", err)
	}
	if got, ok := reg.ByID("a"); !ok || got.Value != 1 {
		t.Fatalf("ByID(a) = %#v, %v", got, ok)
	}
	if all := reg.All(); len(all) != 2 || all[1].ID != "b" {
		t.Fatalf("unexpected order %#v", all)
	}

	reg, err = Parse([]byte(`{"items":[{"id":"c","value":3}]}`), ".json", itemSchema)
	if err != nil {
		t.Fatalf("Parse json: %v", err)
	}
	if _, ok := reg.ByID("c"); !ok {
		t.Fatalf("expected c")
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]struct {
		data string
		ext  string
	}{
		"duplicate": {data: "items:\n  - id: a\n  - id: a\n", ext: ".yaml"},
		"invalid":   {data: "items:\n  - value: 2\n", ext: ".yaml"},
		"empty":     {data: "items: []\n", ext: ".yaml"},
		"bad json":  {data: "items: [", ext: ".json"},
		"bad ext":   {data: "items:\n  - id: a\n", ext: ".toml"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.data), tc.ext, itemSchema); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadAndFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.yaml")
	if err := os.WriteFile(path, []byte("items:\n  - id: a\n    value: 1\n  - id: b\n    value: 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	reg, err := Load(path, itemSchema)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	big := reg.Filter(func(i item) bool { return i.Value > 1 })
	if len(big) != 1 || big[0].ID != "b" {
		t.Fatalf("Filter = %#v", big)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), itemSchema); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(" ", itemSchema); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestNilRegistry(t *testing.T) {
	var reg *Registry[item]
	if _, ok := reg.ByID("a"); ok {
		t.Fatalf("nil registry must be empty")
	}
	if len(reg.All()) != 0 {
		t.Fatalf("nil registry must be empty")
	}
}
