package syncqueue

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func enqueue(t *testing.T, c *Coordinator, endpoint, payload string) string {
	t.Helper()
	id, err := c.Enqueue(Submission{Endpoint: endpoint, Payload: json.RawMessage(payload)})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestEnqueueAssignsId(t *testing.T) {
	c := NewCoordinator(NewMemStore(), nil)
	id := enqueue(t, c, "http://example.com/feedback", `{"msg":"hi"}`)
	if id == "" {
		t.Fatal("No id assigned")
	}
	pending, err := c.ListPending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != id || pending[0].CreatedAt.IsZero() {
		t.Fatalf("Pending is %+v", pending)
	}
}

func TestDequeueUnknownIdIsNoop(t *testing.T) {
	c := NewCoordinator(NewMemStore(), nil)
	enqueue(t, c, "http://example.com/feedback", `{}`)
	if err := c.Dequeue("no-such-id"); err != nil {
		t.Fatal(err)
	}
	if pending, _ := c.ListPending(); len(pending) != 1 {
		t.Fatalf("Pending has %d entries", len(pending))
	}
}

// Three submissions queued in order; the second one fails to deliver.
// After trigger, only the failed one remains, and nothing was duplicated.
func TestTriggerSkipsFailuresAndKeepsOrder(t *testing.T) {
	var delivered []string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type is %s", ct)
		}
		if strings.Contains(string(body), "two") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		delivered = append(delivered, string(body))
	}))
	defer backend.Close()

	c := NewCoordinator(NewMemStore(), nil)
	enqueue(t, c, backend.URL+"/feedback", `{"n":"one"}`)
	idTwo := enqueue(t, c, backend.URL+"/feedback", `{"n":"two"}`)
	enqueue(t, c, backend.URL+"/feedback", `{"n":"three"}`)

	n, err := c.Trigger(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("Delivered %d submissions", n)
	}
	if len(delivered) != 2 || !strings.Contains(delivered[0], "one") || !strings.Contains(delivered[1], "three") {
		t.Fatalf("Delivered %v", delivered)
	}
	pending, _ := c.ListPending()
	if len(pending) != 1 || pending[0].ID != idTwo {
		t.Fatalf("Pending is %+v", pending)
	}
}

func TestRepeatedTriggerIsIdempotent(t *testing.T) {
	var count int
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
	}))
	defer backend.Close()

	c := NewCoordinator(NewMemStore(), nil)
	enqueue(t, c, backend.URL+"/feedback", `{}`)

	for i := 0; i < 3; i++ {
		if _, err := c.Trigger(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if count != 1 {
		t.Fatalf("Backend called %d times", count)
	}
	if pending, _ := c.ListPending(); len(pending) != 0 {
		t.Fatalf("Pending has %d entries", len(pending))
	}
}

func TestTriggerWithUnreachableBackendKeepsQueue(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	c := NewCoordinator(NewMemStore(), nil)
	enqueue(t, c, backend.URL+"/feedback", `{"keep":"me"}`)

	if n, err := c.Trigger(context.Background()); err != nil || n != 0 {
		t.Fatalf("Trigger returned n=%d err=%v", n, err)
	}
	if pending, _ := c.ListPending(); len(pending) != 1 {
		t.Fatalf("Pending has %d entries", len(pending))
	}
}

func TestSQLiteStoreKeepsInsertionOrder(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "queue.db"))
	c := NewCoordinator(store, nil)

	first := enqueue(t, c, "http://example.com/feedback", `{"n":1}`)
	second := enqueue(t, c, "http://example.com/feedback", `{"n":2}`)

	pending, err := store.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].ID != first || pending[1].ID != second {
		t.Fatalf("Pending is %+v", pending)
	}

	if err := store.Remove(first); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(first); err != nil {
		t.Fatal(err)
	}
	pending, _ = store.Pending()
	if len(pending) != 1 || pending[0].ID != second {
		t.Fatalf("Pending is %+v", pending)
	}
}
