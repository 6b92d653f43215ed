package offlinegateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/offline-gateway/offline-gateway/partition"
	"github.com/offline-gateway/offline-gateway/pkg/snapshot"

	"github.com/rs/zerolog"
)

func TestPreloadToleratesIndividualFailures(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cc := r.Header.Get("Cache-Control"); cc != "no-cache" {
			t.Errorf("Cache-Control is %q", cc)
		}
		switch r.URL.Path {
		case "/a.css":
			w.Write([]byte("a"))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer origin.Close()

	originURL, _ := url.Parse(origin.URL)
	manager := partition.NewManager(partition.NewMemStore(), nil)
	logger := zerolog.Nop()
	g := New(Config{Partitions: manager, OriginURL: *originURL, Logger: &logger})
	part, err := manager.Open(g.staticPartition)
	if err != nil {
		t.Fatal(err)
	}

	result := g.Preload(context.Background(), part, []string{"/a.css", "/b.css"})

	if result.Succeeded != 1 || result.Skipped != 1 {
		t.Fatalf("Result is %+v", result)
	}
	bts, ok, err := part.Get("GET /a.css")
	if err != nil || !ok {
		t.Fatalf("Preloaded asset missing (ok=%v, err=%v)", ok, err)
	}
	res, err := snapshot.ToResponse(bts)
	if err != nil {
		t.Fatal(err)
	}
	if body, _ := io.ReadAll(res.Body); string(body) != "a" {
		t.Fatalf("Body is %s", body)
	}
	res.Body.Close()
	if _, ok, _ := part.Get("GET /b.css"); ok {
		t.Fatal("Failed asset ended up in partition")
	}
}

func TestInstallPreloadsManifest(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pre" + r.URL.Path))
	}))
	defer origin.Close()

	originURL, _ := url.Parse(origin.URL)
	manager := partition.NewManager(partition.NewMemStore(), nil)
	logger := zerolog.Nop()
	g := New(Config{
		Partitions: manager,
		OriginURL:  *originURL,
		Logger:     &logger,
		Precache:   []string{"/", "/app.js"},
	})
	if err := g.Install(context.Background()); err != nil {
		t.Fatal(err)
	}

	// preloaded root is served without touching the origin
	origin.Close()
	if rr := get(g, "/", nil); rr.Body.String() != "pre/" {
		t.Fatalf("Body is %s", rr.Body.String())
	}
	if rr := get(g, "/app.js", nil); rr.Body.String() != "pre/app.js" {
		t.Fatalf("Body is %s", rr.Body.String())
	}
}
