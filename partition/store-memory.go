package partition

import "sync"

// MemStore is an in-memory partition store.
// It is used by tests and as a provider for ephemeral deployments.
type MemStore struct {
	mutex *sync.RWMutex
	db    map[string]map[string][]byte
}

func NewMemStore() MemStore {
	return MemStore{
		mutex: &sync.RWMutex{},
		db:    make(map[string]map[string][]byte),
	}
}

func (m MemStore) Open(partition string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.db[partition]; !ok {
		m.db[partition] = make(map[string][]byte)
	}
	return nil
}

func (m MemStore) Get(partition, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entries, ok := m.db[partition]
	if !ok {
		return nil, false, nil
	}
	bts, ok := entries[key]
	return bts, ok, nil
}

func (m MemStore) Put(partition, key string, bytes []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entries, ok := m.db[partition]
	if !ok {
		// putting into an unopened partition opens it
		entries = make(map[string][]byte)
		m.db[partition] = entries
	}
	entries[key] = bytes
	return nil
}

func (m MemStore) Partitions() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	names := make([]string, 0, len(m.db))
	for name := range m.db {
		names = append(names, name)
	}
	return names, nil
}

func (m MemStore) Drop(partition string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, partition)
	return nil
}
