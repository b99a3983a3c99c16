package registry

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-customfields/pkg/hooks"
	"github.com/goliatone/go-customfields/pkg/schema"
)

func stubRenderer(label string) Renderer {
	return func(buf *bytes.Buffer, _ Props) error {
		buf.WriteString(label)
		return nil
	}
}

func render(t *testing.T, caps Capabilities, field schema.Field) string {
	t.Helper()
	var buf bytes.Buffer
	if err := caps.Render(&buf, Props{Field: field}); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func TestRegisterLastWriteWins(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.MustRegister("text", Capabilities{Render: stubRenderer("first")})
	reg.MustRegister(" TEXT ", Capabilities{Render: stubRenderer("second")})

	if got := render(t, reg.Resolve("text"), schema.Field{Type: "text"}); got != "second" {
		t.Fatalf("expected override, got %q", got)
	}
	if diff := cmp.Diff([]string{"text"}, reg.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterValidates(t *testing.T) {
	t.Parallel()

	reg := New()
	if err := reg.Register("", Capabilities{Render: stubRenderer("x")}); err == nil {
		t.Fatalf("expected error for empty type")
	}
	if err := reg.Register("text", Capabilities{}); err == nil {
		t.Fatalf("expected error for nil renderer")
	}
	if err := reg.Register("text", Capabilities{Render: stubRenderer("x"), DescriptionPosition: "middle"}); err == nil {
		t.Fatalf("expected error for invalid description position")
	}
}

func TestResolveUnknownFallsBack(t *testing.T) {
	t.Parallel()

	reg := New()
	caps := reg.Resolve("made_up")
	if caps.Render == nil {
		t.Fatalf("fallback must render")
	}
	if caps.CheckValidity != nil {
		t.Fatalf("fallback must not validate")
	}
	if caps.DescriptionPosition != DescriptionAfter {
		t.Fatalf("default description position should be after, got %q", caps.DescriptionPosition)
	}
	got := render(t, caps, schema.Field{Type: `made_up"><script>`})
	if !strings.Contains(got, "cf-unknown-field") || strings.Contains(got, "<script>") {
		t.Fatalf("unexpected placeholder %q", got)
	}
}

func TestResolveMultiWildcard(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.MustRegister(MultiWildcard, Capabilities{Render: stubRenderer("repeater"), Composite: true})
	reg.MustRegister("multi_select", Capabilities{Render: stubRenderer("multi select")})

	caps := reg.Resolve("multi_text")
	if got := render(t, caps, schema.Field{}); got != "repeater" {
		t.Fatalf("expected wildcard repeater, got %q", got)
	}
	if caps.Name != "multi_text" || !caps.Composite {
		t.Fatalf("unexpected capabilities %+v", caps)
	}
	if got := render(t, reg.Resolve("multi_select"), schema.Field{}); got != "multi select" {
		t.Fatalf("explicit registration must win, got %q", got)
	}
	if reg.Resolve("multi_").Composite {
		t.Fatalf("bare prefix is not a repeater")
	}
}

func TestResolveConsultsHooks(t *testing.T) {
	t.Parallel()

	bus := hooks.New(nil)
	reg := New(WithHooks(bus))
	reg.MustRegister("text", Capabilities{Render: stubRenderer("builtin")})

	bus.AddFilter(hooks.Field("text"), func(value any, _ ...any) any {
		caps := value.(Capabilities)
		caps.Render = stubRenderer("hooked")
		return caps
	})
	bus.AddFilter(hooks.Field("map"), func(value any, _ ...any) any {
		caps := value.(Capabilities)
		caps.Render = stubRenderer("host map")
		return caps
	})

	if got := render(t, reg.Resolve("text"), schema.Field{}); got != "hooked" {
		t.Fatalf("expected hook override, got %q", got)
	}
	if got := render(t, reg.Resolve("map"), schema.Field{}); got != "host map" {
		t.Fatalf("hooks should be able to supply unknown types, got %q", got)
	}
}

func TestResolveSurvivesPanickingFilter(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	bus := hooks.New(nil)
	reg := New(WithHooks(bus), WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	reg.MustRegister("text", Capabilities{Render: stubRenderer("builtin")})
	bus.AddFilter(hooks.Field("text"), func(any, ...any) any { panic("filter boom") })

	if got := render(t, reg.Resolve("text"), schema.Field{}); got != "builtin" {
		t.Fatalf("expected the unfiltered capabilities, got %q", got)
	}
	if !strings.Contains(logs.String(), "filter boom") {
		t.Fatalf("expected the panic to be logged, got %q", logs.String())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.MustRegister("text", Capabilities{Render: stubRenderer("a"), RenderOptions: &RenderOptions{NoLabel: true}})
	clone := reg.Clone()
	clone.MustRegister("number", Capabilities{Render: stubRenderer("n")})

	if reg.Known("number") {
		t.Fatalf("clone registration leaked into the original")
	}
	caps, _ := clone.Lookup("text")
	caps.RenderOptions.NoLabel = false
	original, _ := reg.Lookup("text")
	if !original.RenderOptions.NoLabel {
		t.Fatalf("render options are shared between copies")
	}
}

func TestRenderOptionsMerge(t *testing.T) {
	t.Parallel()

	got := RenderOptions{NoLabel: true}.Merge(RenderOptions{NoWrapper: true})
	want := RenderOptions{NoLabel: true, NoWrapper: true}
	if got != want {
		t.Fatalf("Merge = %+v, want %+v", got, want)
	}
}
