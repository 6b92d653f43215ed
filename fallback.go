package offlinegateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/offline-gateway/offline-gateway/partition"
	"github.com/offline-gateway/offline-gateway/pkg/snapshot"
)

const rootIdentity = "GET /"

type offlineBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// resolveOffline produces a best-effort response when both cache and
// network have failed. It is the terminal fallback and never errors:
// navigations get the cached root document, anything else gets a
// last-chance lookup across all partitions, and failing that a
// synthesized 503 with a machine-readable body.
func (g *Gateway) resolveOffline(w http.ResponseWriter, r *http.Request) {
	if isNavigation(r) {
		if g.serveFromAnyPartition(w, rootIdentity) {
			return
		}
	}

	if g.serveFromAnyPartition(w, partition.Identity(r)) {
		return
	}

	offlineResponses.Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	// encoding a fixed struct cannot fail; the error is ignored so this
	// path stays terminal
	json.NewEncoder(w).Encode(offlineBody{
		Error:   "Offline",
		Message: "The requested resource is not available offline.",
	})
}

// serveFromAnyPartition searches every partition for the identity,
// as opposed to the single partition a strategy would consult.
func (g *Gateway) serveFromAnyPartition(w http.ResponseWriter, key string) bool {
	names, err := g.partitions.List()
	if err != nil {
		g.log.Error().Err(err).Msg("Could not list partitions for offline lookup")
		return false
	}
	for _, name := range names {
		bts, ok, err := g.partitions.Get(name, key)
		if err != nil || !ok {
			continue
		}
		res, err := snapshot.ToResponse(bts)
		if err != nil {
			g.log.Error().Err(err).Str("key", key).Str("partition", name).Msg("Corrupted cache entry")
			continue
		}
		defer res.Body.Close()
		if err := send(w, res); err != nil {
			g.log.Error().Err(err).Msg("Could not write offline response to client")
		}
		return true
	}
	return false
}

// isNavigation reports whether the request represents a full-page
// navigation rather than a subresource fetch.
func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
