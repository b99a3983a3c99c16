package hooks

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestApplyRunsByPriorityThenRegistration(t *testing.T) {
	t.Parallel()

	h := New(nil)
	var order []string
	h.AddFilter("title", func(value any, _ ...any) any {
		order = append(order, "late")
		return value.(string) + "!"
	}, 20)
	h.AddFilter("title", func(value any, _ ...any) any {
		order = append(order, "first")
		return value.(string) + " world"
	})
	h.AddFilter("title", func(value any, _ ...any) any {
		order = append(order, "second")
		return value
	})

	got := Apply(h, "title", "hello")
	if got != "hello world!" {
		t.Fatalf("unexpected result %q", got)
	}
	if diff := cmp.Diff([]string{"first", "second", "late"}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyIgnoresWrongType(t *testing.T) {
	t.Parallel()

	h := New(nil)
	h.AddFilter("count", func(any, ...any) any { return "not a number" })
	if got := Apply(h, "count", 3); got != 3 {
		t.Fatalf("expected original value, got %v", got)
	}
}

func TestRemoveFilter(t *testing.T) {
	t.Parallel()

	h := New(nil)
	remove := h.AddFilter("x", func(any, ...any) any { return 2 })
	if got := Apply(h, "x", 1); got != 2 {
		t.Fatalf("filter not applied")
	}
	remove()
	if h.Has("x") {
		t.Fatalf("filter still registered")
	}
	if got := Apply(h, "x", 1); got != 1 {
		t.Fatalf("removed filter still applied")
	}
}

func TestSuppressTypes(t *testing.T) {
	t.Parallel()

	h := New(nil)
	SuppressTypes(h, FieldWithoutLabel, "Title", "html")

	if !Suppressed(h, FieldWithoutLabel, "title") {
		t.Fatalf("expected title label to be suppressed")
	}
	if Suppressed(h, FieldWithoutLabel, "text") {
		t.Fatalf("text label must stay")
	}
	if Suppressed(h, FieldWithoutWrapper, "title") {
		t.Fatalf("unrelated hook must not suppress")
	}
	if Suppressed(nil, FieldWithoutLabel, "title") {
		t.Fatalf("nil hooks never suppress")
	}
}

func TestFieldHookName(t *testing.T) {
	t.Parallel()

	if got := Field(" Multi_Text "); got != "wpifycf_field_multi_text" {
		t.Fatalf("unexpected hook name %q", got)
	}
}
