package offlinegateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/offline-gateway/offline-gateway/partition"
	"github.com/offline-gateway/offline-gateway/pkg/routing"
	"github.com/offline-gateway/offline-gateway/pkg/snapshot"
	"github.com/offline-gateway/offline-gateway/syncqueue"

	"github.com/rs/zerolog"
)

type Config struct {
	// Partition manager for cached responses.
	Partitions *partition.Manager
	// URL of the origin server.
	// Origins with paths are not supported.
	OriginURL url.URL
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
	// Naming prefix for this application's partitions.
	// Defaults to "offline-gateway".
	Prefix string
	// Cache version. Bumping it makes the previous version's partitions
	// obsolete; they are deleted on the next Activate.
	// Defaults to "v2".
	Version string
	// Path prefix for API requests (stale-while-revalidate).
	// Defaults to "/api/".
	APIPrefix string
	// Path prefix for large media (network-first).
	// Defaults to "/assets/videos/".
	MediaPrefix string
	// URLs to load into the static partition during Install.
	Precache []string
	// Optional deferred-write queue. When set, failed POSTs to the
	// sync endpoint are queued instead of erroring out.
	Queue *syncqueue.Coordinator
	// Path whose failed POSTs are captured as deferred submissions.
	// Defaults to "/api/feedback".
	SyncEndpoint string
}

// Gateway intercepts requests from controlled clients and serves them
// through per-class caching strategies, backed by named partitions.
type Gateway struct {
	partitions   *partition.Manager
	routes       *routing.Table
	queue        *syncqueue.Coordinator
	originURL    *url.URL
	client       http.Client
	log          zerolog.Logger
	prefix       string
	version      string
	manifest     []string
	syncEndpoint string

	staticPartition  string
	dynamicPartition string
}

// New creates the gateway instance and sets up the needed variables.
func New(config Config) *Gateway {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	logger = logger.With().
		Str("origin", config.OriginURL.String()).
		Logger()

	prefix := config.Prefix
	if prefix == "" {
		prefix = "offline-gateway"
	}
	version := config.Version
	if version == "" {
		version = "v2"
	}
	apiPrefix := config.APIPrefix
	if apiPrefix == "" {
		apiPrefix = "/api/"
	}
	mediaPrefix := config.MediaPrefix
	if mediaPrefix == "" {
		mediaPrefix = "/assets/videos/"
	}
	syncEndpoint := config.SyncEndpoint
	if syncEndpoint == "" {
		syncEndpoint = "/api/feedback"
	}

	originURL := config.OriginURL
	g := &Gateway{
		partitions:   config.Partitions,
		routes:       routing.NewTable(apiPrefix, mediaPrefix),
		queue:        config.Queue,
		originURL:    &originURL,
		log:          logger,
		prefix:       prefix,
		version:      version,
		manifest:     config.Precache,
		syncEndpoint: syncEndpoint,

		staticPartition:  prefix + "-static-" + version,
		dynamicPartition: prefix + "-dynamic-" + version,
	}

	// create client instance to use for origin requests
	g.client = http.Client{
		// do not follow redirects
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return g
}

// CurrentPartitions returns the partition names of this cache version.
func (g *Gateway) CurrentPartitions() []string {
	return []string{g.staticPartition, g.dynamicPartition}
}

// Install opens the current partitions and preloads the configured
// manifest into the static partition. The gateway is not considered
// installed until Install returns.
func (g *Gateway) Install(ctx context.Context) error {
	static, err := g.partitions.Open(g.staticPartition)
	if err != nil {
		return err
	}
	if _, err := g.partitions.Open(g.dynamicPartition); err != nil {
		return err
	}
	result := g.Preload(ctx, static, g.manifest)
	g.log.Info().
		Int("succeeded", result.Succeeded).
		Int("skipped", result.Skipped).
		Msg("Install complete")
	return nil
}

// Activate deletes partitions left over from previous cache versions.
// Partitions with a foreign prefix are never touched.
func (g *Gateway) Activate(ctx context.Context) error {
	_, err := g.partitions.Cleanup(g.prefix+"-", g.CurrentPartitions())
	return err
}

// ServeHTTP implements the http.Handler interface.
// It is the fetch interception point: GET requests go through the
// strategy engine, everything else passes through to the origin.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.passthrough(w, r)
		return
	}

	class := g.routes.Classify(r.URL.Path)
	res, err := g.execute(class, r)
	if err != nil {
		g.log.Debug().Err(err).
			Str("class", string(class)).
			Str("path", r.URL.Path).
			Msg("Strategy failed, falling back to offline resolver")
		requests.WithLabelValues(string(class), "fallback").Inc()
		g.resolveOffline(w, r)
		return
	}
	defer res.Body.Close()
	if err := send(w, res); err != nil {
		g.log.Error().Err(err).Msg("Could not write response body to client")
	}
}

// execute runs the retrieval/update policy of the given class.
// Any returned error is handled by the offline fallback resolver.
func (g *Gateway) execute(class routing.Class, r *http.Request) (*http.Response, error) {
	part, err := g.partitions.Open(g.partitionFor(class))
	if err != nil {
		return nil, err
	}
	switch class.Strategy() {
	case routing.CacheFirst:
		return g.cacheFirst(part, r, class)
	case routing.StaleWhileRevalidate:
		return g.staleWhileRevalidate(part, r, class)
	default:
		return g.networkFirst(part, r, class)
	}
}

func (g *Gateway) partitionFor(class routing.Class) string {
	if class == routing.ClassStatic {
		return g.staticPartition
	}
	return g.dynamicPartition
}

// cacheFirst serves from the partition when possible and touches the
// network at most once, on a miss. Successful responses are stored
// before they are returned.
func (g *Gateway) cacheFirst(part *partition.Partition, r *http.Request, class routing.Class) (*http.Response, error) {
	key := partition.Identity(r)
	if bts, ok, err := part.Get(key); err == nil && ok {
		if res, err := snapshot.ToResponse(bts); err == nil {
			g.log.Trace().Str("key", key).Msg("Cache hit and serving")
			requests.WithLabelValues(string(class), "hit").Inc()
			return res, nil
		}
		g.log.Error().Str("key", key).Msg("Corrupted cache entry, refetching")
	}
	res, err := g.fetch(r)
	if err != nil {
		return nil, err
	}
	g.store(part, key, res)
	requests.WithLabelValues(string(class), "network").Inc()
	return res, nil
}

// networkFirst tries the origin first and keeps the partition fresh
// from successful responses only. On network failure it falls back to
// the partition, and propagates the failure when nothing is stored.
func (g *Gateway) networkFirst(part *partition.Partition, r *http.Request, class routing.Class) (*http.Response, error) {
	key := partition.Identity(r)
	res, err := g.fetch(r)
	if err == nil {
		g.store(part, key, res)
		requests.WithLabelValues(string(class), "network").Inc()
		return res, nil
	}
	g.log.Debug().Err(err).Str("key", key).Msg("Network failed, trying cache")
	if bts, ok, gerr := part.Get(key); gerr == nil && ok {
		if cached, cerr := snapshot.ToResponse(bts); cerr == nil {
			requests.WithLabelValues(string(class), "hit").Inc()
			return cached, nil
		}
	}
	return nil, err
}

// staleWhileRevalidate returns the cached value immediately when one
// exists and refreshes the partition in the background. The refresh is
// deliberately decoupled from the response lifecycle: its completion is
// observable only through the partition's subsequent state.
func (g *Gateway) staleWhileRevalidate(part *partition.Partition, r *http.Request, class routing.Class) (*http.Response, error) {
	key := partition.Identity(r)
	if bts, ok, err := part.Get(key); err == nil && ok {
		if res, err := snapshot.ToResponse(bts); err == nil {
			go g.revalidate(part, key, r.URL.RequestURI())
			requests.WithLabelValues(string(class), "hit").Inc()
			return res, nil
		}
	}
	res, err := g.fetch(r)
	if err != nil {
		return nil, err
	}
	g.store(part, key, res)
	requests.WithLabelValues(string(class), "network").Inc()
	return res, nil
}

// revalidate refreshes one partition entry from the origin.
// It builds its own request so an abandoned client connection cannot
// cancel the refresh.
func (g *Gateway) revalidate(part *partition.Partition, key, uri string) {
	req, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		g.log.Error().Err(err).Str("key", key).Msg("Could not create revalidation request")
		return
	}
	res, err := g.fetch(req)
	if err != nil {
		g.log.Debug().Err(err).Str("key", key).Msg("Could not revalidate cache entry")
		return
	}
	defer res.Body.Close()
	g.store(part, key, res)
}

// store saves a snapshot of a successful (2xx) response, leaving the
// response body usable for the caller. Failures are logged, not returned:
// a cache write must never break the response path.
func (g *Gateway) store(part *partition.Partition, key string, res *http.Response) {
	if res.StatusCode < 200 || res.StatusCode > 299 {
		g.log.Trace().Str("key", key).Int("http-status", res.StatusCode).Msg("Non-cacheable response")
		return
	}
	bts, err := snapshot.FromResponse(res)
	if err != nil {
		g.log.Error().Err(err).Str("key", key).Msg("Could not serialize response")
		return
	}
	if err := part.Put(key, bts); err != nil {
		g.log.Error().Err(err).Str("key", key).Msg("Could not write to cache")
		return
	}
	g.log.Trace().Str("key", key).Str("partition", part.Name()).Msg("Cache write")
}

// fetch the resource specified in the incoming request from the origin
func (g *Gateway) fetch(r *http.Request) (*http.Response, error) {
	req, err := http.NewRequest(r.Method, g.originURL.String()+r.URL.RequestURI(), r.Body)
	if err != nil {
		return nil, err
	}
	copyHeader(req.Header, r.Header)
	req.Host = g.originURL.Host
	return g.client.Do(req)
}

// passthrough pipes a non-GET request to the origin untouched.
// The single exception is a POST to the sync endpoint that cannot reach
// the origin: its payload becomes a deferred submission.
func (g *Gateway) passthrough(w http.ResponseWriter, r *http.Request) {
	if g.queue != nil && r.Method == http.MethodPost && r.URL.Path == g.syncEndpoint {
		g.forwardOrDefer(w, r)
		return
	}
	res, err := g.fetch(r)
	if err != nil {
		http.Error(w, "Could not get response", http.StatusBadGateway)
		return
	}
	defer res.Body.Close()
	send(w, res)
}

func (g *Gateway) forwardOrDefer(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Could not read request body", http.StatusBadRequest)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(payload))
	res, err := g.fetch(r)
	if err == nil {
		defer res.Body.Close()
		send(w, res)
		return
	}

	id, qerr := g.queue.Enqueue(syncqueue.Submission{
		Endpoint: g.originURL.String() + r.URL.RequestURI(),
		Payload:  payload,
	})
	if qerr != nil {
		g.log.Error().Err(qerr).Msg("Could not queue submission")
		http.Error(w, "Could not queue submission", http.StatusServiceUnavailable)
		return
	}
	g.log.Info().Str("id", id).Str("path", r.URL.Path).Msg("Origin unreachable, submission queued")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"id": id, "status": "queued"})
}

func send(w http.ResponseWriter, r *http.Response) error {
	copyHeader(w.Header(), r.Header)
	w.WriteHeader(r.StatusCode)
	_, err := io.Copy(w, r.Body)
	return err
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
