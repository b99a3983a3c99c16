package conditions

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/values"
)

func TestEvaluateEmptyIsVisible(t *testing.T) {
	t.Parallel()

	for _, conds := range []schema.Conditions{nil, {}} {
		ok, err := Evaluate(values.Bag{"a": 1.0}, conds, "x")
		if err != nil {
			t.Fatalf("Evaluate returned error: %v", err)
		}
		if !ok {
			t.Fatalf("expected empty conditions to be visible")
		}
	}
}

func TestEvaluateEquality(t *testing.T) {
	t.Parallel()

	conds := schema.Conditions{schema.Leaf("a", "=", 5)}

	ok, err := Evaluate(values.Bag{"a": 5.0}, conds, "b")
	if err != nil || !ok {
		t.Fatalf("expected a=5 to match, got %v %v", ok, err)
	}
	ok, err = Evaluate(values.Bag{"a": 6.0}, conds, "b")
	if err != nil || ok {
		t.Fatalf("expected a=6 not to match, got %v %v", ok, err)
	}
	ok, _ = Evaluate(values.Bag{"a": "5"}, conds, "b")
	if ok {
		t.Fatalf("equality must be strict between strings and numbers")
	}
}

func TestEvaluateOrIsCommutative(t *testing.T) {
	t.Parallel()

	a := schema.Leaf("a", "=", 1)
	b := schema.Leaf("b", "=", 2)
	bags := []values.Bag{
		{"a": 1.0, "b": 0.0},
		{"a": 0.0, "b": 2.0},
		{"a": 1.0, "b": 2.0},
		{"a": 0.0, "b": 0.0},
	}
	for _, bag := range bags {
		left, err := Evaluate(bag, schema.Conditions{a, schema.Or(), b}, "")
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		right, err := Evaluate(bag, schema.Conditions{b, schema.Or(), a}, "")
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		want := bag["a"] == 1.0 || bag["b"] == 2.0
		if left != want || right != want {
			t.Fatalf("bag %v: got %v/%v want %v", bag, left, right, want)
		}
	}
}

func TestEvaluateStickyOperatorLeftToRight(t *testing.T) {
	t.Parallel()

	bag := values.Bag{"a": 1.0, "b": 0.0, "c": 0.0}
	// (a or b) and c, evaluated left to right with no precedence.
	conds := schema.Conditions{
		schema.Leaf("a", "=", 1), schema.Or(), schema.Leaf("b", "=", 1), schema.And(), schema.Leaf("c", "=", 1),
	}
	ok, err := Evaluate(bag, conds, "")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ok {
		t.Fatalf("expected false for (true or false) and false")
	}

	// Without an operator token consecutive leaves combine with and.
	ok, _ = Evaluate(bag, schema.Conditions{schema.Leaf("a", "=", 1), schema.Leaf("b", "=", 1)}, "")
	if ok {
		t.Fatalf("expected implicit and")
	}

	// Once "or" is seen it stays in effect.
	ok, _ = Evaluate(bag, schema.Conditions{
		schema.Leaf("b", "=", 1), schema.Or(), schema.Leaf("c", "=", 1), schema.Leaf("a", "=", 1),
	}, "")
	if !ok {
		t.Fatalf("expected sticky or")
	}
}

func TestEvaluateNestedGroups(t *testing.T) {
	t.Parallel()

	raw := `[{"field":"kind","condition":"=","value":"x"},"and",[{"field":"n","condition":">","value":3},"or",{"field":"n","condition":"<","value":0}]]`
	var conds schema.Conditions
	if err := json.Unmarshal([]byte(raw), &conds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	cases := []struct {
		bag  values.Bag
		want bool
	}{
		{values.Bag{"kind": "x", "n": 5.0}, true},
		{values.Bag{"kind": "x", "n": -1.0}, true},
		{values.Bag{"kind": "x", "n": 1.0}, false},
		{values.Bag{"kind": "y", "n": 5.0}, false},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.bag, conds, "")
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got != tc.want {
			t.Fatalf("bag %v: got %v want %v", tc.bag, got, tc.want)
		}
	}
}

func TestEvaluateRelativePaths(t *testing.T) {
	t.Parallel()

	bag := values.Bag{
		"top": "root",
		"group1": map[string]any{
			"sibling": "yes",
			"child2":  "",
		},
	}

	one := schema.Conditions{schema.Leaf("#sibling", "=", "yes")}
	ok, err := Evaluate(bag, one, "group1.child2")
	if err != nil || !ok {
		t.Fatalf("one level up: got %v %v", ok, err)
	}

	two := schema.Conditions{schema.Leaf("##top", "=", "root")}
	ok, err = Evaluate(bag, two, "group1.child2")
	if err != nil || !ok {
		t.Fatalf("two levels up: got %v %v", ok, err)
	}

	var buf bytes.Buffer
	eval := New(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	three := schema.Conditions{schema.Leaf("###top", "=", "root")}
	ok, err = eval.Evaluate(bag, three, "group1.child2")
	if err != nil {
		t.Fatalf("out of range must not fail: %v", err)
	}
	if ok {
		t.Fatalf("out of range must evaluate to false")
	}
	if !strings.Contains(buf.String(), "out of range") {
		t.Fatalf("expected a warning, got %q", buf.String())
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	cases := []struct {
		field, path string
		want        []string
	}{
		{"#sibling", "group1.child2", []string{"group1", "sibling"}},
		{"##top", "group1.child2", []string{"top"}},
		{"#url", "rows[1].title", []string{"rows", "1", "url"}},
		{"other.deep", "rows[1].title", []string{"other", "deep"}},
		{"list[0]", "x", []string{"list", "0"}},
	}
	for _, tc := range cases {
		got, err := Resolve(tc.field, tc.path)
		if err != nil {
			t.Fatalf("Resolve(%q, %q): %v", tc.field, tc.path, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("Resolve(%q, %q) mismatch (-want +got):\n%s", tc.field, tc.path, diff)
		}
	}

	if _, err := Resolve("###x", "a.b"); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestEvaluateIndexedPaths(t *testing.T) {
	t.Parallel()

	bag := values.Bag{"rows": []any{map[string]any{"enabled": true}, map[string]any{"enabled": false}}}
	ok, err := Evaluate(bag, schema.Conditions{schema.Leaf("rows[0].enabled", "=", true)}, "")
	if err != nil || !ok {
		t.Fatalf("indexed path: got %v %v", ok, err)
	}
	ok, _ = Evaluate(bag, schema.Conditions{schema.Leaf("rows[1].enabled", "=", true)}, "")
	if ok {
		t.Fatalf("expected second row to be disabled")
	}
}

func TestEvaluateMalformedFailsLoudly(t *testing.T) {
	t.Parallel()

	bad := schema.Conditions{{Kind: schema.NodeInvalid}}
	if _, err := Evaluate(values.Bag{}, bad, ""); !errors.Is(err, ErrMalformedCondition) {
		t.Fatalf("expected ErrMalformedCondition, got %v", err)
	}

	unknown := schema.Conditions{schema.Leaf("a", "~", 1)}
	if _, err := Evaluate(values.Bag{"a": 1.0}, unknown, ""); !errors.Is(err, ErrUnknownOperator) {
		t.Fatalf("expected ErrUnknownOperator, got %v", err)
	}
}

func TestVisibleCombinesRule(t *testing.T) {
	t.Parallel()

	eval := New()
	field := schema.Field{
		ID:         "c",
		Type:       "text",
		Conditions: schema.Conditions{schema.Leaf("b", "=", "x")},
		Rule:       `fields.count > 2 && !isEmpty(value("#b"))`,
	}

	ok, err := eval.Visible(values.Bag{"b": "x", "count": 3.0}, field, "c")
	if err != nil || !ok {
		t.Fatalf("expected visible, got %v %v", ok, err)
	}
	ok, err = eval.Visible(values.Bag{"b": "x", "count": 1.0}, field, "c")
	if err != nil || ok {
		t.Fatalf("expected rule to hide field, got %v %v", ok, err)
	}

	field.Rule = "fields.count >"
	if _, err := eval.Visible(values.Bag{"b": "x"}, field, "c"); !errors.Is(err, ErrMalformedCondition) {
		t.Fatalf("expected compile error, got %v", err)
	}
}
