package fields

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-customfields/pkg/registry"
	"github.com/goliatone/go-customfields/pkg/render/template/pongo"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/validity"
)

func newEngine(t *testing.T) *pongo.Engine {
	t.Helper()
	engine, err := pongo.New(pongo.WithFS(Templates()))
	if err != nil {
		t.Fatalf("pongo.New: %v", err)
	}
	return engine
}

func renderControl(t *testing.T, props registry.Props) string {
	t.Helper()
	if props.Template == nil {
		props.Template = newEngine(t)
	}
	caps := NewRegistry().Resolve(props.Field.Type)
	var buf bytes.Buffer
	if err := caps.Render(&buf, props); err != nil {
		t.Fatalf("render %s: %v", props.Field.Type, err)
	}
	return buf.String()
}

func TestInputControl(t *testing.T) {
	t.Parallel()

	out := renderControl(t, registry.Props{
		Field:    schema.Field{ID: "name", Type: TypeText, Required: true, Extra: map[string]any{"maxlength": float64(20)}},
		HTMLID:   "cf-name",
		Name:     "name",
		Value:    `say "hi"`,
		Validity: validity.Messages(MsgRequired),
	})
	for _, want := range []string{
		`type="text"`,
		`id="cf-name"`,
		`name="name"`,
		` required`,
		`maxlength="20"`,
		`aria-invalid="true"`,
		`aria-describedby="cf-name-errors"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
	if strings.Contains(out, `value="say "hi""`) || strings.Contains(out, "pattern=") {
		t.Fatalf("unexpected markup %s", out)
	}
}

func TestInputTypes(t *testing.T) {
	t.Parallel()

	engine := newEngine(t)
	cases := map[string]string{
		TypeDatetime:   `type="datetime-local"`,
		TypeAttachment: `type="number"`,
		TypeRange:      `type="range"`,
		TypeHidden:     `type="hidden"`,
	}
	for fieldType, want := range cases {
		out := renderControl(t, registry.Props{Field: schema.Field{ID: "x", Type: fieldType}, Name: "x", Template: engine})
		if !strings.Contains(out, want) {
			t.Fatalf("%s: expected %q in %s", fieldType, want, out)
		}
	}
}

func TestSelectControl(t *testing.T) {
	t.Parallel()

	field := schema.Field{ID: "color", Type: TypeSelect, Extra: map[string]any{
		"options": []any{map[string]any{"value": "r", "label": "Red"}, map[string]any{"value": "g", "label": "Green"}},
	}}
	out := renderControl(t, registry.Props{Field: field, HTMLID: "cf-color", Name: "color", Value: "g"})
	if !strings.Contains(out, `<option value="g" selected>Green</option>`) {
		t.Fatalf("selected option missing: %s", out)
	}
	if !strings.Contains(out, `<option value="r">Red</option>`) {
		t.Fatalf("unselected option missing: %s", out)
	}

	legacy := renderControl(t, registry.Props{Field: field, Name: "color", Value: "b"})
	if !strings.Contains(legacy, `<option value="b" selected>b</option>`) {
		t.Fatalf("unknown current value must be kept: %s", legacy)
	}
}

func TestSelectRemoteError(t *testing.T) {
	t.Parallel()

	field := schema.Field{ID: "page", Type: TypePost, Extra: map[string]any{"options_source": "posts"}}
	out := renderControl(t, registry.Props{
		Field:      field,
		Name:       "page",
		ChoicesErr: errors.New("timeout"),
		Translate:  func(msg string) string { return "!" + msg },
	})
	if !strings.Contains(out, `data-options-source="posts"`) {
		t.Fatalf("source attribute missing: %s", out)
	}
	if !strings.Contains(out, `<p class="cf-options-error" role="alert">!Error loading options</p>`) {
		t.Fatalf("error state missing: %s", out)
	}

	loaded := renderControl(t, registry.Props{
		Field:   field,
		Name:    "page",
		Value:   "7",
		Choices: []schema.Choice{{Value: "7", Label: "About"}},
	})
	if !strings.Contains(loaded, `<option value="7" selected>About</option>`) || strings.Contains(loaded, "cf-options-error") {
		t.Fatalf("remote choices not rendered: %s", loaded)
	}
}

func TestMultiControlsSubmitEmptySentinel(t *testing.T) {
	t.Parallel()

	options := map[string]any{"options": []any{"a", "b", "c"}}
	sel := renderControl(t, registry.Props{
		Field: schema.Field{ID: "tags", Type: TypeMultiSelect, Extra: options},
		Name:  "tags",
		Value: []any{"a", "c"},
	})
	if !strings.HasPrefix(sel, `<input type="hidden" name="tags[]" value="">`) {
		t.Fatalf("sentinel missing: %s", sel)
	}
	if !strings.Contains(sel, ` multiple`) || strings.Count(sel, " selected") != 2 {
		t.Fatalf("unexpected multi select %s", sel)
	}

	boxes := renderControl(t, registry.Props{
		Field: schema.Field{ID: "tags", Type: TypeMultiCheckbox, Extra: options},
		Name:  "tags",
		Value: []any{"b"},
	})
	if !strings.Contains(boxes, `<input type="hidden" name="tags[]" value="">`) ||
		!strings.Contains(boxes, `name="tags[]" value="b" checked`) {
		t.Fatalf("unexpected checkboxes %s", boxes)
	}
}

func TestCheckboxControl(t *testing.T) {
	t.Parallel()

	out := renderControl(t, registry.Props{
		Field: schema.Field{ID: "agree", Type: TypeToggle, Extra: map[string]any{"label": "I agree"}},
		Name:  "agree",
		Value: true,
	})
	if !strings.HasPrefix(out, `<input type="hidden" name="agree" value="false">`) {
		t.Fatalf("unchecked fallback missing: %s", out)
	}
	if !strings.Contains(out, `value="true" checked`) || !strings.Contains(out, "I agree") {
		t.Fatalf("unexpected checkbox %s", out)
	}
}

func TestLinkControl(t *testing.T) {
	t.Parallel()

	out := renderControl(t, registry.Props{
		Field: schema.Field{ID: "cta", Type: TypeLink},
		Name:  "cta",
		Value: map[string]any{"url": "https://example.com", "label": "Go", "target": "_blank"},
	})
	for _, want := range []string{
		`name="cta[url]" value="https://example.com"`,
		`name="cta[label]" value="Go"`,
		`name="cta[target]" value="_blank" checked`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
}

func TestStaticControlsSanitize(t *testing.T) {
	t.Parallel()

	html := renderControl(t, registry.Props{Field: schema.Field{ID: "intro", Type: TypeHTML, Extra: map[string]any{
		"content": `<p>Hello</p><script>alert(1)</script>`,
	}}})
	if !strings.Contains(html, "<p>Hello</p>") || strings.Contains(html, "<script>") {
		t.Fatalf("unexpected html block %s", html)
	}

	title := renderControl(t, registry.Props{Field: schema.Field{ID: "t", Type: TypeTitle, Title: "<em>Shipping</em>", Extra: map[string]any{"level": float64(3)}}})
	if !strings.Contains(title, `<h3 class="cf-title"`) || !strings.Contains(title, "<em>Shipping</em></h3>") {
		t.Fatalf("unexpected title %s", title)
	}

	caps := NewRegistry().Resolve(TypeTitle)
	if caps.RenderOptions == nil || !caps.RenderOptions.NoLabel {
		t.Fatalf("title must suppress its label")
	}
}

func TestTemplateRequired(t *testing.T) {
	t.Parallel()

	caps := NewRegistry().Resolve(TypeText)
	var buf bytes.Buffer
	if err := caps.Render(&buf, registry.Props{Field: schema.Field{Type: TypeText}}); err == nil {
		t.Fatalf("expected an error without a template renderer")
	}
}

type childCall struct {
	Key   string
	Type  string
	Value any
}

func TestGroupRendersChildren(t *testing.T) {
	t.Parallel()

	field := schema.Field{ID: "address", Type: TypeGroup, Items: []schema.Field{
		{ID: "street", Type: TypeText},
		{ID: "zip", Type: TypeNumber},
	}}
	var (
		calls   []childCall
		changed any
	)
	props := registry.Props{
		Field:    field,
		HTMLID:   "cf-address",
		Value:    map[string]any{"street": "Main", "zip": float64(1000)},
		OnChange: func(v any) { changed = v },
		RenderChild: func(buf *bytes.Buffer, child registry.Child) error {
			calls = append(calls, childCall{Key: child.Key, Type: child.Field.Type, Value: child.Value})
			fmt.Fprintf(buf, "[%s]", child.Key)
			if child.Key == "zip" {
				child.OnChange(float64(2000))
			}
			return nil
		},
	}
	out := renderControl(t, props)
	if out != `<fieldset class="cf-group" id="cf-address">[street][zip]</fieldset>` {
		t.Fatalf("unexpected group markup %s", out)
	}
	want := []childCall{{Key: "street", Type: TypeText, Value: "Main"}, {Key: "zip", Type: TypeNumber, Value: float64(1000)}}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Fatalf("children mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"street": "Main", "zip": float64(2000)}, changed); diff != "" {
		t.Fatalf("group setter must rebuild the full value (-want +got):\n%s", diff)
	}
}

func TestRepeaterRendersItems(t *testing.T) {
	t.Parallel()

	field := schema.Field{ID: "links", Type: "multi_link", Extra: map[string]any{"max": float64(2)}}
	var (
		keys    []string
		changed any
	)
	out := renderControl(t, registry.Props{
		Field:    field,
		Value:    []any{"https://a.test", map[string]any{"url": "https://b.test", "label": "B"}},
		OnChange: func(v any) { changed = v },
		RenderChild: func(buf *bytes.Buffer, child registry.Child) error {
			keys = append(keys, child.Key)
			if child.Field.Type != TypeLink || !child.Options.NoLabel {
				return fmt.Errorf("unexpected child %+v", child)
			}
			if child.Key == "0" {
				child.OnChange("https://c.test")
			}
			return nil
		},
	})
	if diff := cmp.Diff([]string{"0", "1"}, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	for _, want := range []string{
		`class="cf-repeater cf-repeater--link"`,
		`data-max="2"`,
		`<span class="cf-repeater__title">B</span>`,
		`data-add-item disabled>Add item</button>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
	list, ok := changed.([]any)
	if !ok || len(list) != 2 || list[0] != "https://c.test" {
		t.Fatalf("repeater setter must rebuild the list, got %#v", changed)
	}
}
