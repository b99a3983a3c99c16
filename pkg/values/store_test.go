package values

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryUpdateValueLeavesOtherKeysUntouched(t *testing.T) {
	t.Parallel()

	initial := Bag{
		"title":   "Hello",
		"address": map[string]any{"city": "Prague"},
		"tags":    []any{"a", "b"},
	}
	store := NewMemory(initial)
	before := store.Snapshot()
	beforeJSON, _ := json.Marshal(before)

	store.UpdateValue("email")("a@b.com")

	after := store.Snapshot()
	if after["email"] != "a@b.com" {
		t.Fatalf("expected email to be set, got %v", after["email"])
	}
	for _, key := range []string{"title", "address", "tags"} {
		if diff := cmp.Diff(before[key], after[key]); diff != "" {
			t.Fatalf("key %q changed (-before +after):\n%s", key, diff)
		}
	}

	snapshotJSON, _ := json.Marshal(before)
	if string(beforeJSON) != string(snapshotJSON) {
		t.Fatalf("earlier snapshot was mutated: %s vs %s", beforeJSON, snapshotJSON)
	}
	if _, ok := before["email"]; ok {
		t.Fatalf("earlier snapshot gained the new key")
	}
}

func TestMemoryCopiesInitialBag(t *testing.T) {
	t.Parallel()

	initial := Bag{"nested": map[string]any{"a": 1.0}}
	store := NewMemory(initial)
	initial["nested"].(map[string]any)["a"] = 2.0

	got, _ := Get(store.Snapshot(), "nested.a")
	if got != 1.0 {
		t.Fatalf("store shares state with its seed: %v", got)
	}
}

func TestMemorySetterIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewMemory(Bag{"a": "x"})
	calls := 0
	cancel := store.Subscribe(func(Bag) { calls++ })
	defer cancel()

	set := store.UpdateValue("a")
	set("y")
	set("y")
	set("y")
	if calls != 1 {
		t.Fatalf("expected one notification, got %d", calls)
	}

	cancel()
	set("z")
	if calls != 1 {
		t.Fatalf("cancelled subscriber was notified")
	}
}

func TestMemoryConcurrentSetters(t *testing.T) {
	t.Parallel()

	store := NewMemory(nil)
	ids := []string{"a", "b", "c", "d", "e", "f"}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			store.UpdateValue(id)(id)
			_ = store.Snapshot()
		}(id)
	}
	wg.Wait()

	snapshot := store.Snapshot()
	for _, id := range ids {
		if snapshot[id] != id {
			t.Fatalf("lost update for %q: %v", id, snapshot)
		}
	}
}

func TestExternalStoreWritesThroughHost(t *testing.T) {
	t.Parallel()

	hostState := Bag{"color": "red"}
	var mu sync.Mutex
	store := NewExternal(
		func() Bag { mu.Lock(); defer mu.Unlock(); return hostState },
		func(next Bag) { mu.Lock(); hostState = next; mu.Unlock() },
	)

	var seen Bag
	store.Subscribe(func(bag Bag) { seen = bag })
	store.UpdateValue("size")(12.0)

	if hostState["size"] != 12.0 || hostState["color"] != "red" {
		t.Fatalf("unexpected host state %v", hostState)
	}
	if diff := cmp.Diff(hostState, seen); diff != "" {
		t.Fatalf("subscriber saw a different bag (-host +seen):\n%s", diff)
	}
}

func TestResolvePrefersExternal(t *testing.T) {
	t.Parallel()

	internal := NewMemory(nil)
	external := NewExternal(func() Bag { return Bag{"x": 1.0} }, nil)

	if got := Resolve(external, internal); got != Store(external) {
		t.Fatalf("expected external store")
	}
	if got := Resolve(nil, internal); got != Store(internal) {
		t.Fatalf("expected fallback store")
	}
	var missing *External
	if got := Resolve(missing, internal); got != Store(internal) {
		t.Fatalf("typed nil external should fall back")
	}
}

func TestSegments(t *testing.T) {
	t.Parallel()

	cases := map[string][]string{
		"a":           {"a"},
		"a.b":         {"a", "b"},
		"rows[2].url": {"rows", "2", "url"},
		"m[0][1]":     {"m", "0", "1"},
		"":            nil,
	}
	for input, want := range cases {
		if diff := cmp.Diff(want, Segments(input)); diff != "" {
			t.Fatalf("Segments(%q) mismatch (-want +got):\n%s", input, diff)
		}
	}
}

func TestSetPathCopiesOnWrite(t *testing.T) {
	t.Parallel()

	original := Bag{"rows": []any{map[string]any{"url": "a"}}, "other": "keep"}
	updated, err := SetPath(original, "rows[0].url", "b")
	if err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	if got, _ := Get(original, "rows[0].url"); got != "a" {
		t.Fatalf("original mutated: %v", got)
	}
	if got, _ := Get(updated, "rows.0.url"); got != "b" {
		t.Fatalf("update missing: %v", got)
	}

	grown, err := SetPath(updated, "rows[2].url", "c")
	if err != nil {
		t.Fatalf("SetPath grow: %v", err)
	}
	rows := grown["rows"].([]any)
	if len(rows) != 3 || rows[1] != nil {
		t.Fatalf("unexpected rows %v", rows)
	}

	if _, err := SetPath(Bag{"other": "x"}, "other.child", 1); err == nil {
		t.Fatalf("expected error writing through a scalar")
	}
}

func TestSetPathWithinBoundsGrowth(t *testing.T) {
	t.Parallel()

	bag := Bag{"rows": []any{"a"}}
	if _, err := SetPathWithin(bag, "rows[2]", "c", 2); err != nil {
		t.Fatalf("growth within bound: %v", err)
	}
	for _, path := range []string{"rows[3]", "rows[4611686018427387904]"} {
		if _, err := SetPathWithin(bag, path, "x", 2); !errors.Is(err, ErrIndexRange) {
			t.Fatalf("%s: expected ErrIndexRange, got %v", path, err)
		}
	}
	if _, err := SetPath(Bag{}, "rows[5000]", "x"); !errors.Is(err, ErrIndexRange) {
		t.Fatalf("SetPath past MaxGrowth: %v", err)
	}
}
