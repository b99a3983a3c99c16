package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-customfields/pkg/prompt"
)

const profileDefinition = `{
	"id": "profile",
	"title": "Profile",
	"surface": "term",
	"items": [
		{"id": "name", "type": "text", "title": "Name", "required": true},
		{"id": "agree", "type": "checkbox", "title": "Agree"},
		{"id": "note", "type": "text", "conditions": [{"field": "missing", "condition": "=", "value": "x"}]}
	]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, env Env, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	env.Stdout = &stdout
	env.Stderr = &stderr
	err := Run(context.Background(), env, args)
	return stdout.String(), stderr.String(), err
}

func TestValidateReportsLintAndValues(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "profile.json", profileDefinition)
	valuesPath := writeFile(t, t.TempDir(), "values.yaml", "agree: true\n")

	out, _, err := run(t, Env{}, "validate", "-definitions", dir)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{"profile (3 fields)", `note: condition references unknown field "missing"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}

	out, _, err = run(t, Env{}, "validate", "-definitions", dir, "-values", valuesPath)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if !strings.Contains(out, "name: This field is required.") {
		t.Fatalf("expected the name error in %q", out)
	}
}

func TestRenderUsesDefinitionSurface(t *testing.T) {
	t.Parallel()
	file := writeFile(t, t.TempDir(), "profile.json", profileDefinition)

	out, _, err := run(t, Env{}, "render", "-file", file)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "cf-surface--term") || !strings.Contains(out, `data-field-id="name"`) {
		t.Fatalf("unexpected markup %s", out)
	}

	out, _, err = run(t, Env{}, "render", "-file", file, "-surface", "variation", "-loop", "3")
	if err != nil {
		t.Fatalf("render variation: %v", err)
	}
	if !strings.Contains(out, `name="variable_3[name]"`) {
		t.Fatalf("unexpected variation markup %s", out)
	}

	if _, _, err := run(t, Env{}, "render", "-file", file, "-surface", "sidebar"); err == nil {
		t.Fatal("expected an unknown surface error")
	}
}

type scriptedDriver struct {
	inputs []string
}

func (d *scriptedDriver) Input(context.Context, prompt.InputConfig) (string, error) {
	next := d.inputs[0]
	d.inputs = d.inputs[1:]
	return next, nil
}

func (d *scriptedDriver) Password(ctx context.Context, cfg prompt.InputConfig) (string, error) {
	return d.Input(ctx, cfg)
}

func (d *scriptedDriver) Confirm(context.Context, prompt.ConfirmConfig) (bool, error) {
	return true, nil
}

func (d *scriptedDriver) Select(context.Context, prompt.SelectConfig) (int, error) { return 0, nil }

func (d *scriptedDriver) MultiSelect(context.Context, prompt.SelectConfig) ([]int, error) {
	return nil, nil
}

func (d *scriptedDriver) TextArea(ctx context.Context, cfg prompt.TextAreaConfig) (string, error) {
	return d.Input(ctx, prompt.InputConfig{Message: cfg.Message})
}

func (d *scriptedDriver) Info(context.Context, string) error { return nil }

func TestFillEncodesAnswers(t *testing.T) {
	t.Parallel()
	file := writeFile(t, t.TempDir(), "profile.json", profileDefinition)

	out, _, err := run(t, Env{Driver: &scriptedDriver{inputs: []string{"", "Ada"}}}, "fill", "-file", file)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got["name"] != "Ada" || got["agree"] != true {
		t.Fatalf("unexpected answers %v", got)
	}
}

func TestSchemaDescribesDefinitions(t *testing.T) {
	t.Parallel()
	out, _, err := run(t, Env{}, "schema")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	defs, _ := doc["$defs"].(map[string]any)
	for _, name := range []string{"Definition", "Field"} {
		if _, ok := defs[name]; !ok {
			t.Fatalf("missing $defs.%s in %v", name, keys(defs))
		}
	}
	if !strings.Contains(out, `"oneOf"`) || !strings.Contains(out, `"and"`) {
		t.Fatalf("condition nodes not described: %s", out)
	}
}

func TestImportOpenAPI(t *testing.T) {
	t.Parallel()
	doc := writeFile(t, t.TempDir(), "api.json", `{
		"openapi": "3.0.3",
		"info": {"title": "Pets", "version": "1.0.0"},
		"paths": {"/pets": {"post": {
			"operationId": "createPet",
			"requestBody": {"content": {"application/json": {"schema": {
				"type": "object",
				"required": ["name"],
				"properties": {"name": {"type": "string"}, "age": {"type": "integer"}}
			}}}},
			"responses": {"201": {"description": "created"}}
		}}}
	}`)

	out, _, err := run(t, Env{}, "import", "-openapi", doc, "-operation", "createPet", "-format", "yaml")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	for _, want := range []string{"id: createPet", "id: name", "required: true"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	t.Parallel()
	_, stderr, err := run(t, Env{}, "frobnicate")
	if err == nil || !strings.Contains(stderr, "Usage: customfields") {
		t.Fatalf("err = %v, stderr = %q", err, stderr)
	}
	if diff := cmp.Diff([]string{"a", "b"}, sortedKeys(map[string]int{"b": 1, "a": 2})); diff != "" {
		t.Fatalf("sortedKeys (-want +got):\n%s", diff)
	}
}

func keys(m map[string]any) []string {
	return sortedKeys(m)
}
