package schema

import (
	"encoding/json"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFSParsesJSONAndYAML(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"settings.json": &fstest.MapFile{Data: []byte(`{
			"title": "Settings",
			"surface": "page",
			"tabs": [{"id": "general", "label": "General"}],
			"items": [
				{"id": "email", "type": "email", "required": true, "tab": "general", "placeholder": "you@example.com"},
				{"id": "kind", "type": "select", "options": [{"value": "x", "label": "X"}, "y"]},
				{"id": "details", "type": "text", "conditions": [{"field": "kind", "condition": "=", "value": "x"}]}
			]
		}`)},
		"term/color.yaml": &fstest.MapFile{Data: []byte(`
id: term-color
surface: term
items:
  - id: color
    type: color
    default: "#ffffff"
`)},
		"README.md": &fstest.MapFile{Data: []byte("ignored")},
	}

	store, err := LoadFS(fsys)
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	if diff := cmp.Diff([]string{"settings", "term-color"}, store.IDs()); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}

	settings, err := store.Definition("settings")
	if err != nil {
		t.Fatalf("Definition: %v", err)
	}
	if got := settings.TabKeys(); len(got) != 1 || got[0] != "general" {
		t.Fatalf("unexpected tab keys %v", got)
	}
	email := settings.Fields[0]
	if !email.Required || email.String("placeholder") != "you@example.com" {
		t.Fatalf("unexpected email field %+v", email)
	}
	want := []Choice{{Value: "x", Label: "X"}, {Value: "y", Label: "y"}}
	if diff := cmp.Diff(want, settings.Fields[1].Choices()); diff != "" {
		t.Fatalf("choices mismatch (-want +got):\n%s", diff)
	}
	if got := settings.Fields[2].Conditions.Fields(); len(got) != 1 || got[0] != "kind" {
		t.Fatalf("unexpected condition fields %v", got)
	}

	color, err := store.Definition("term-color")
	if err != nil {
		t.Fatalf("Definition: %v", err)
	}
	if color.Surface != SurfaceTerm || color.Fields[0].Default != "#ffffff" {
		t.Fatalf("unexpected yaml definition %+v", color)
	}

	if _, err := store.Definition("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadFSRejectsDuplicateFieldIDs(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"dup.json": &fstest.MapFile{Data: []byte(`{"items": [
			{"id": "a", "type": "text"},
			{"id": "a", "type": "number"}
		]}`)},
	}
	if _, err := LoadFS(fsys); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestGroupScopesAreIndependent(t *testing.T) {
	t.Parallel()

	def := Definition{ID: "scoped", Fields: []Field{
		{ID: "name", Type: "text"},
		{ID: "address", Type: "group", Items: []Field{{ID: "name", Type: "text"}}},
	}}
	if err := def.Validate(); err != nil {
		t.Fatalf("nested ids should not clash with root ids: %v", err)
	}
	field, ok := Lookup(def.Fields, "address.name")
	if !ok || field.Type != "text" {
		t.Fatalf("Lookup failed: %+v %v", field, ok)
	}
}

func TestConditionsRejectNonArray(t *testing.T) {
	t.Parallel()

	cases := []string{
		`{"field": "a", "condition": "=", "value": 1}`,
		`"and"`,
		`[{"field": "a"}, "xor", {"field": "b"}]`,
		`[{"condition": "="}]`,
		`[42]`,
	}
	for _, raw := range cases {
		var conds Conditions
		err := json.Unmarshal([]byte(raw), &conds)
		if !errors.Is(err, ErrMalformedConditions) {
			t.Fatalf("%s: expected ErrMalformedConditions, got %v", raw, err)
		}
	}
}

func TestConditionsRoundTrip(t *testing.T) {
	t.Parallel()

	conds := Conditions{
		Leaf("a", "=", 1.0),
		Or(),
		Group(Leaf("b", ">", 2.0), And(), Leaf("c", "contains", "x")),
	}
	data, err := json.Marshal(conds)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `[{"field":"a","condition":"=","value":1},"or",[{"field":"b","condition":">","value":2},"and",{"field":"c","condition":"contains","value":"x"}]]`
	if string(data) != want {
		t.Fatalf("unexpected encoding:\n got %s\nwant %s", data, want)
	}

	var decoded Conditions
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(conds, decoded); diff != "" {
		t.Fatalf("conditions mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldPreservesExtraOptions(t *testing.T) {
	t.Parallel()

	var field Field
	if err := json.Unmarshal([]byte(`{"id":"qty","type":"number","min":1,"max":"10","step":0.5}`), &field); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	minimum, maximum := field.Bounds()
	if minimum == nil || *minimum != 1 || maximum == nil || *maximum != 10 {
		t.Fatalf("unexpected bounds %v %v", minimum, maximum)
	}

	data, err := json.Marshal(field)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("Unmarshal generic: %v", err)
	}
	if generic["step"] != 0.5 || generic["id"] != "qty" {
		t.Fatalf("extra keys lost: %s", data)
	}
}

func TestItemType(t *testing.T) {
	t.Parallel()

	if got := (Field{Type: "multi_text"}).ItemType(); got != "text" {
		t.Fatalf("ItemType = %q", got)
	}
	if got := (Field{Type: "multi_"}).ItemType(); got != "" {
		t.Fatalf("bare prefix should not count as repeater, got %q", got)
	}
}
