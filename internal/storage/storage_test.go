package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-customfields/pkg/values"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), Config{
		Engine: EngineSQLite,
		Path:   filepath.Join(t.TempDir(), "values.db"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSaveLoad(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	bag := values.Bag{
		"title": "Hello",
		"count": float64(3),
		"links": []any{map[string]any{"url": "https://example.com", "label": "Example", "target": ""}},
	}
	if err := store.Save(ctx, "settings", "1", bag); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, "settings", "1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(bag, got); diff != "" {
		t.Fatalf("loaded bag mismatch (-want +got):\n%s", diff)
	}

	if err := store.Save(ctx, "settings", "1", values.Bag{"title": "Updated"}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	got, err = store.Load(ctx, "settings", "1")
	if err != nil {
		t.Fatalf("load again: %v", err)
	}
	if diff := cmp.Diff(values.Bag{"title": "Updated"}, got); diff != "" {
		t.Fatalf("upsert mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Load(ctx, "settings", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	bag, err := store.LoadOrEmpty(ctx, "settings", "missing")
	if err != nil {
		t.Fatalf("load or empty: %v", err)
	}
	if len(bag) != 0 {
		t.Fatalf("expected empty bag, got %v", bag)
	}
}

func TestStoreListAndDelete(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"b", "a"} {
		if err := store.Save(ctx, "product", id, values.Bag{"sku": id}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	if err := store.Save(ctx, "other", "a", values.Bag{}); err != nil {
		t.Fatalf("save other: %v", err)
	}

	records, err := store.List(ctx, "product")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, record := range records {
		ids = append(ids, record.ObjectID)
		if record.Values["sku"] != record.ObjectID {
			t.Fatalf("record %s carries %v", record.ObjectID, record.Values)
		}
	}
	if diff := cmp.Diff([]string{"a", "b"}, ids); diff != "" {
		t.Fatalf("list order mismatch (-want +got):\n%s", diff)
	}

	if err := store.Delete(ctx, "product", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, "product", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted row to be gone, got %v", err)
	}
	if err := store.Delete(ctx, "product", "a"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestStoreRequiresDefinition(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	if err := store.Save(context.Background(), "", "1", values.Bag{}); err == nil {
		t.Fatal("expected an error for an empty definition id")
	}
}

func TestOpenUnknownEngine(t *testing.T) {
	t.Parallel()
	_, err := Open(context.Background(), Config{Engine: "oracle"})
	if !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
}

func TestRebindNumbersPostgresPlaceholders(t *testing.T) {
	t.Parallel()
	pg := New(nil, "postgresql")
	got := pg.rebind("SELECT data FROM t WHERE a = ? AND b = ?")
	if got != "SELECT data FROM t WHERE a = $1 AND b = $2" {
		t.Fatalf("unexpected postgres query %q", got)
	}
	lite := New(nil, EngineSQLite3)
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite query rewritten: %q", got)
	}
}

func TestDSN(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "postgres",
			cfg:  Config{Engine: "postgres", Host: "db", User: "cf", Password: "secret", Name: "fields"},
			want: "host=db port=5432 user=cf password=secret dbname=fields sslmode=disable",
		},
		{
			name: "mariadb",
			cfg:  Config{Engine: "mariadb", User: "cf", Password: "secret", Name: "fields", Port: "3307"},
			want: "cf:secret@tcp(localhost:3307)/fields?parseTime=true&charset=utf8mb4",
		},
		{
			name: "sqlite path",
			cfg:  Config{Engine: "sqlite3", Path: "/tmp/cf.db"},
			want: "/tmp/cf.db",
		},
		{
			name: "explicit dsn",
			cfg:  Config{Engine: "postgres", DSN: "postgres://localhost/fields"},
			want: "postgres://localhost/fields",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d, ok := dialectFor(tc.cfg.Engine)
			if !ok {
				t.Fatalf("engine %q not recognised", tc.cfg.Engine)
			}
			if got := dsn(d, tc.cfg); got != tc.want {
				t.Fatalf("dsn = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseTimeFormats(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"2026-03-01T10:00:00Z",
		"2026-03-01 10:00:00",
		"2026-03-01 10:00:00.5 +0000 UTC",
		"2026-03-01 10:00:00.5 +0000 UTC m=+0.001",
	} {
		if parseTime(raw).IsZero() {
			t.Fatalf("failed to parse %q", raw)
		}
	}
}
