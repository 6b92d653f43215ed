package offlinegateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/offline-gateway/offline-gateway/partition"
	"github.com/offline-gateway/offline-gateway/pkg/snapshot"
)

// PreloadResult counts the outcome of one preload run.
type PreloadResult struct {
	Succeeded int
	Skipped   int
}

// Preload populates a partition with the given manifest of URLs.
// Each URL is fetched from the origin with cache-bypass semantics.
// A single unreachable asset never aborts the rest: failures are
// logged, counted as skipped, and the run continues.
func (g *Gateway) Preload(ctx context.Context, part *partition.Partition, manifest []string) PreloadResult {
	var result PreloadResult
	for _, uri := range manifest {
		if err := g.preloadOne(ctx, part, uri); err != nil {
			g.log.Warn().Err(err).Str("url", uri).Msg("Could not preload asset")
			preloads.WithLabelValues("skipped").Inc()
			result.Skipped++
			continue
		}
		preloads.WithLabelValues("succeeded").Inc()
		result.Succeeded++
	}
	g.log.Debug().
		Int("succeeded", result.Succeeded).
		Int("skipped", result.Skipped).
		Str("partition", part.Name()).
		Msg("Preload finished")
	return result
}

func (g *Gateway) preloadOne(ctx context.Context, part *partition.Partition, uri string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", g.originURL.String()+uri, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-cache")
	res, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &preloadStatusError{status: res.StatusCode}
	}
	bts, err := snapshot.FromResponse(res)
	if err != nil {
		return err
	}
	return part.Put("GET "+uri, bts)
}

type preloadStatusError struct {
	status int
}

func (e *preloadStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}
