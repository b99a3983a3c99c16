package validity

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateEmptyAggregator(t *testing.T) {
	t.Parallel()

	if !NewAggregator().Validate() {
		t.Fatalf("an aggregator without results is valid")
	}
}

func TestValidateDetectsNestedMessages(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	agg.HandleValidityChange("email")(Result{})
	agg.HandleValidityChange("address")(Result{Children: map[string]Result{
		"city": {},
		"zip":  {},
	}})
	agg.HandleValidityChange("links")(Result{Children: map[string]Result{
		"0": {Children: map[string]Result{"url": {}}},
		"1": {Children: map[string]Result{"url": {}}},
	}})
	if !agg.Validate() {
		t.Fatalf("expected all-empty tree to be valid")
	}

	agg.HandleValidityChange("links")(Result{Children: map[string]Result{
		"0": {Children: map[string]Result{"url": {}}},
		"1": {Children: map[string]Result{"url": Messages("This field must be a valid URL.")}},
	}})
	if agg.Validate() {
		t.Fatalf("a single nested message must fail validation")
	}

	want := map[string][]string{"links.1.url": {"This field must be a valid URL."}}
	if diff := cmp.Diff(want, agg.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	agg.HandleValidityChange("links")(Result{})
	if !agg.Validate() {
		t.Fatalf("replacing the result should clear the failure")
	}
}

func TestMessagesNormalizes(t *testing.T) {
	t.Parallel()

	got := Messages(" a ", "", "a", "b")
	if diff := cmp.Diff([]string{"a", "b"}, got.Messages); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
	if Messages().Messages != nil || !Messages("  ").Valid() {
		t.Fatalf("blank messages should produce a valid result")
	}
}

func TestWithChildDoesNotAlias(t *testing.T) {
	t.Parallel()

	base := Result{Children: map[string]Result{"a": {}}}
	next := base.WithChild("b", Messages("x"))
	if _, ok := base.Children["b"]; ok {
		t.Fatalf("WithChild mutated the receiver")
	}
	if next.Valid() {
		t.Fatalf("expected nested message")
	}
}
