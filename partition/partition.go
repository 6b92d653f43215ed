package partition

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is the backend for partitioned cache storage.
// It stores and retrieves []byte values, which represent serialized
// HTTP response snapshots, namespaced by partition name.
//
// Implementations must be thread-safe!
type Store interface {
	// Open creates the named partition if it does not exist yet.
	// Opening an existing partition is a no-op.
	Open(partition string) error
	// Get returns the stored snapshot for the given key, if it exists.
	// It also returns a boolean indicating whether retrieval was successful.
	Get(partition, key string) ([]byte, bool, error)
	// Put stores the given snapshot under the given key,
	// overwriting any previous entry for the same key.
	Put(partition, key string, bytes []byte) error
	// Partitions returns the names of all partitions in the store.
	Partitions() ([]string, error)
	// Drop removes the named partition and all of its entries.
	Drop(partition string) error
}

// Identity returns the canonical cache identity for a request.
// Only GET requests are ever stored, so the method is included
// purely to keep identities self-describing.
func Identity(r *http.Request) string {
	return r.Method + " " + r.URL.RequestURI()
}

// Manager owns the named partitions of a single application.
// All components share one manager instance; there is no ambient registry.
type Manager struct {
	store Store
	log   zerolog.Logger
}

func NewManager(store Store, logger *zerolog.Logger) *Manager {
	if logger == nil {
		logger = &log.Logger
	}
	return &Manager{
		store: store,
		log:   logger.With().Str("component", "partition").Logger(),
	}
}

// Open returns a handle to the named partition, creating it if absent.
func (m *Manager) Open(name string) (*Partition, error) {
	if err := m.store.Open(name); err != nil {
		storeErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("open partition %q: %w", name, err)
	}
	return &Partition{name: name, store: m.store}, nil
}

// Get looks up a key in the named partition without opening it first.
// Used for last-chance lookups across partitions.
func (m *Manager) Get(name, key string) ([]byte, bool, error) {
	return m.store.Get(name, key)
}

// List returns the names of all partitions currently in the store,
// including ones belonging to other consumers.
func (m *Manager) List() ([]string, error) {
	return m.store.Partitions()
}

// Delete irreversibly removes the named partition.
func (m *Manager) Delete(name string) error {
	m.log.Debug().Str("partition", name).Msg("Deleting partition")
	if err := m.store.Drop(name); err != nil {
		storeErrors.WithLabelValues("drop").Inc()
		return fmt.Errorf("delete partition %q: %w", name, err)
	}
	return nil
}

// Cleanup deletes every partition that carries the given application prefix
// but is not part of the current set. Partitions with a different prefix
// belong to other consumers and are left untouched.
// It returns the names of the deleted partitions.
func (m *Manager) Cleanup(prefix string, current []string) ([]string, error) {
	names, err := m.store.Partitions()
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	keep := make(map[string]struct{}, len(current))
	for _, name := range current {
		keep[name] = struct{}{}
	}
	var deleted []string
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if _, ok := keep[name]; ok {
			continue
		}
		if err := m.Delete(name); err != nil {
			m.log.Error().Err(err).Str("partition", name).Msg("Could not delete obsolete partition")
			continue
		}
		deleted = append(deleted, name)
	}
	if len(deleted) > 0 {
		m.log.Info().Strs("partitions", deleted).Msg("Cleaned up obsolete partitions")
	}
	return deleted, nil
}

// Partition is a handle to one named partition.
type Partition struct {
	name  string
	store Store
}

func (p *Partition) Name() string {
	return p.name
}

func (p *Partition) Get(key string) ([]byte, bool, error) {
	bts, ok, err := p.store.Get(p.name, key)
	if err != nil {
		storeErrors.WithLabelValues("get").Inc()
		return nil, false, err
	}
	if ok {
		hits.WithLabelValues(p.name).Inc()
	} else {
		misses.WithLabelValues(p.name).Inc()
	}
	return bts, ok, nil
}

func (p *Partition) Put(key string, bytes []byte) error {
	if err := p.store.Put(p.name, key, bytes); err != nil {
		storeErrors.WithLabelValues("put").Inc()
		return err
	}
	return nil
}
