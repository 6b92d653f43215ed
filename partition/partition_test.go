package partition

import (
	"net/http"
	"path/filepath"
	"testing"
)

func TestIdentity(t *testing.T) {
	r, _ := http.NewRequest("GET", "http://example.com/page?q=1", nil)
	if id := Identity(r); id != "GET /page?q=1" {
		t.Fatalf("Identity is %s", id)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	m := NewManager(NewMemStore(), nil)
	p1, err := m.Open("app-static-v1")
	if err != nil {
		t.Fatal(err)
	}
	if err := p1.Put("GET /", []byte("root")); err != nil {
		t.Fatal(err)
	}
	p2, err := m.Open("app-static-v1")
	if err != nil {
		t.Fatal(err)
	}
	if bts, ok, _ := p2.Get("GET /"); !ok || string(bts) != "root" {
		t.Fatalf("Entry lost on re-open, got %q (ok=%v)", bts, ok)
	}
	if names, _ := m.List(); len(names) != 1 {
		t.Fatalf("Expected 1 partition, got %v", names)
	}
}

func TestPutOverwrites(t *testing.T) {
	m := NewManager(NewMemStore(), nil)
	p, _ := m.Open("app-dynamic-v1")
	p.Put("GET /data", []byte("old"))
	p.Put("GET /data", []byte("new"))
	if bts, ok, _ := p.Get("GET /data"); !ok || string(bts) != "new" {
		t.Fatalf("Got %q (ok=%v)", bts, ok)
	}
}

func TestCleanupDeletesOnlyObsoleteOwnPartitions(t *testing.T) {
	m := NewManager(NewMemStore(), nil)
	for _, name := range []string{"app-static-v1", "app-dynamic-v1", "app-static-v2", "app-dynamic-v2", "other-consumer-v1"} {
		if _, err := m.Open(name); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := m.Cleanup("app-", []string{"app-static-v2", "app-dynamic-v2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 2 {
		t.Fatalf("Deleted %v", deleted)
	}

	names, _ := m.List()
	remaining := make(map[string]bool)
	for _, name := range names {
		remaining[name] = true
	}
	if !remaining["app-static-v2"] || !remaining["app-dynamic-v2"] {
		t.Fatalf("Current partitions deleted, remaining: %v", names)
	}
	if !remaining["other-consumer-v1"] {
		t.Fatalf("Foreign-prefixed partition deleted, remaining: %v", names)
	}
	if remaining["app-static-v1"] || remaining["app-dynamic-v1"] {
		t.Fatalf("Obsolete partitions survived: %v", names)
	}
}

func TestSQLiteStore(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "partitions.db"))
	m := NewManager(store, nil)

	p, err := m.Open("app-static-v1")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Put("GET /app.js", []byte("console.log(1)")); err != nil {
		t.Fatal(err)
	}
	if bts, ok, err := p.Get("GET /app.js"); err != nil || !ok || string(bts) != "console.log(1)" {
		t.Fatalf("Got %q (ok=%v, err=%v)", bts, ok, err)
	}
	if _, ok, err := p.Get("GET /missing.js"); err != nil || ok {
		t.Fatalf("Expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := m.Delete("app-static-v1"); err != nil {
		t.Fatal(err)
	}
	if names, _ := m.List(); len(names) != 0 {
		t.Fatalf("Partitions remaining after delete: %v", names)
	}
	if _, ok, _ := store.Get("app-static-v1", "GET /app.js"); ok {
		t.Fatal("Entry survived partition delete")
	}
}
