package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	offlinegateway "github.com/offline-gateway/offline-gateway"
	"github.com/offline-gateway/offline-gateway/notify"
	"github.com/offline-gateway/offline-gateway/partition"
	"github.com/offline-gateway/offline-gateway/syncqueue"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	originFlag         string
	portFlag           int
	providerFlag       string
	dbFilenameFlag     string
	redisAddrFlag      string
	queueDbFlag        string
	verbosityTraceFlag bool

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to (overrides config)")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&providerFlag, "provider", "sqlite", "Partition store to use (memory, sqlite, redis)")
	flag.StringVar(&dbFilenameFlag, "db", "partitions.db", "Partition DB file name (use 'memory' for in-memory db)")
	flag.StringVar(&redisAddrFlag, "redis", "localhost:6379", "Redis address for the redis provider")
	flag.StringVar(&queueDbFlag, "queue-db", "queue.db", "Deferred submission queue DB file name")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: os.Stdout})
	log.Info().Str("version", version).Msg("Starting offline-gateway")

	var config Config
	if configFilenameFlag != "" {
		var err error
		config, err = getConfig(configFilenameFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not read config file")
		}
	}

	if originFlag != "" {
		config.Origin = originFlag
	}
	if config.Origin == "" {
		log.Fatal().Msg("Please specify origin")
	}
	if config.Port <= 0 {
		config.Port = portFlag
	}
	if config.Provider == "" {
		config.Provider = providerFlag
	}
	if config.DBFile == "" {
		config.DBFile = dbFilenameFlag
	}
	if config.RedisAddr == "" {
		config.RedisAddr = redisAddrFlag
	}
	if config.QueueDBFile == "" {
		config.QueueDBFile = queueDbFlag
	}

	originURL, err := url.Parse(config.Origin)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse origin URL")
	}

	// use configured provider, fail if unsupported
	var store partition.Store
	switch config.Provider {
	case "sqlite":
		filename := config.DBFile
		if filename == "memory" {
			filename = ""
		}
		store = partition.NewSQLiteStore(filename)
	case "memory":
		store = partition.NewMemStore()
	case "redis":
		store = partition.NewRedisStore(redis.NewClient(&redis.Options{Addr: config.RedisAddr}))
	default:
		log.Fatal().Msgf("Unsupported partition store: %s", config.Provider)
	}
	partitions := partition.NewManager(store, &log.Logger)

	queue := syncqueue.NewCoordinator(syncqueue.NewSQLiteStore(config.QueueDBFile), &log.Logger)
	queue.SetInterval(config.SyncInterval)

	gateway := offlinegateway.New(offlinegateway.Config{
		Partitions:   partitions,
		OriginURL:    *originURL,
		Logger:       &log.Logger,
		Prefix:       config.CachePrefix,
		Version:      config.CacheVersion,
		APIPrefix:    config.APIPrefix,
		MediaPrefix:  config.MediaPrefix,
		Precache:     config.Precache,
		Queue:        queue,
		SyncEndpoint: config.SyncEndpoint,
	})

	ctx := context.Background()
	if err := gateway.Install(ctx); err != nil {
		log.Fatal().Err(err).Msg("Install failed")
	}
	if err := gateway.Activate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Activation failed")
	}

	relay := notify.NewRelay(logNotifier{}, &log.Logger)
	go queue.Run(ctx)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Post("/-/sync/{tag}", syncHandler(queue))
	router.Post("/-/push", pushHandler(relay))
	router.Post("/-/notifications/{action}", actionHandler(relay))
	router.Handle("/*", gateway)

	addr := fmt.Sprintf(":%d", config.Port)
	log.Info().Str("addr", addr).Str("origin", originURL.String()).Msg("Listening")
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// syncHandler is the connectivity-restoration signal: it runs one
// delivery pass over the deferred-write queue.
func syncHandler(queue *syncqueue.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := chi.URLParam(r, "tag")
		log.Debug().Str("tag", tag).Msg("Sync signal received")
		delivered, err := queue.Trigger(r.Context())
		if err != nil {
			http.Error(w, "Could not process queue", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"tag": tag, "delivered": delivered})
	}
}

func pushHandler(relay *notify.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Could not read payload", http.StatusBadRequest)
			return
		}
		// a push without payload is a no-op, not an error
		if len(body) == 0 {
			relay.OnPush(nil)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		var payload notify.Payload
		if err := json.Unmarshal(body, &payload); err != nil {
			http.Error(w, "Malformed payload", http.StatusBadRequest)
			return
		}
		if _, err := relay.OnPush(&payload); err != nil {
			http.Error(w, "Could not display notification", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func actionHandler(relay *notify.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nav := relay.OnAction(chi.URLParam(r, "action"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"open": nav.Open, "url": nav.URL})
	}
}

// logNotifier is the default display collaborator: it logs the
// notification instead of rendering it.
type logNotifier struct{}

func (logNotifier) Display(d notify.Descriptor) error {
	log.Info().Str("title", d.Title).Str("body", d.Body).Str("tag", d.Tag).Msg("Notification")
	return nil
}
