package pongo

import (
	"fmt"
	"strings"
	"testing"
	"testing/fstest"
)

func newTestEngine(t *testing.T, options ...Option) *Engine {
	t.Helper()
	files := fstest.MapFS{
		"hello.tpl":  &fstest.MapFile{Data: []byte(`Hello {{ name }}!`)},
		"global.tpl": &fstest.MapFile{Data: []byte(`env={{ settings.env }}`)},
		"escape.tpl": &fstest.MapFile{Data: []byte(`<b>{{ value }}</b>`)},
		"shout.tpl":  &fstest.MapFile{Data: []byte(`{{ name|shout_test }}`)},
	}
	engine, err := New(append([]Option{WithFS(files)}, options...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine
}

func TestRenderTemplateWritesToOutputs(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	var out strings.Builder
	got, err := engine.RenderTemplate("hello", map[string]any{"name": "Ada"}, &out)
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if got != "Hello Ada!" || out.String() != got {
		t.Fatalf("unexpected output %q / %q", got, out.String())
	}
}

func TestRenderTemplateEscapes(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	got, err := engine.RenderTemplate("escape", map[string]any{"value": `<script>x</script>`})
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if strings.Contains(got, "<script>") {
		t.Fatalf("expected autoescaped output, got %q", got)
	}
}

func TestGlobals(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, WithGlobals(map[string]any{
		"settings": map[string]any{"env": "staging"},
	}))
	got, err := engine.RenderTemplate("global.tpl", nil)
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if got != "env=staging" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRegisterFilter(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, WithFilter("shout_test", func(input any, _ any) (any, error) {
		return fmt.Sprintf("%s!", strings.ToUpper(fmt.Sprint(input))), nil
	}))
	got, err := engine.RenderTemplate("shout", map[string]any{"name": "ada"})
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if got != "ADA!" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRenderString(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	got, err := engine.RenderString(`{{ items|tojson|safe }}`, map[string]any{"items": []any{"a", 1.0}})
	if err != nil {
		t.Fatalf("RenderString: %v", err)
	}
	if got != `["a",1]` {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestNewRequiresSource(t *testing.T) {
	t.Parallel()

	if _, err := New(); err == nil {
		t.Fatalf("expected error without template source")
	}
}
