package syncqueue

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore is a durable submission store. It survives restarts,
// so queued writes are never lost with the process.
type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStore creates a new store with the given filename as the db.
// If the file name is empty, a new in-memory db is opened.
func NewSQLiteStore(filename string) SQLiteStore {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS submissions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE,
		endpoint TEXT,
		payload BLOB,
		created_at INTEGER
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		panic(err)
	}
	return SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}
}

func (s SQLiteStore) Append(sub Submission) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec(
		"INSERT INTO submissions (id, endpoint, payload, created_at) VALUES (?, ?, ?, ?)",
		sub.ID, sub.Endpoint, []byte(sub.Payload), sub.CreatedAt.Unix(),
	)
	return err
}

func (s SQLiteStore) Remove(id string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM submissions WHERE id = ?", id)
	return err
}

func (s SQLiteStore) Pending() ([]Submission, error) {
	rows, err := s.db.Query(
		"SELECT id, endpoint, payload, created_at FROM submissions ORDER BY seq ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	subs := make([]Submission, 0)
	for rows.Next() {
		var sub Submission
		var payload []byte
		var createdAt int64
		if err := rows.Scan(&sub.ID, &sub.Endpoint, &payload, &createdAt); err != nil {
			return subs, err
		}
		sub.Payload = payload
		sub.CreatedAt = time.Unix(createdAt, 0)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// MemStore is an in-memory submission store for tests and ephemeral use.
type MemStore struct {
	mutex *sync.Mutex
	subs  *[]Submission
}

func NewMemStore() MemStore {
	return MemStore{
		mutex: &sync.Mutex{},
		subs:  &[]Submission{},
	}
}

func (m MemStore) Append(sub Submission) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	*m.subs = append(*m.subs, sub)
	return nil
}

func (m MemStore) Remove(id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for i, sub := range *m.subs {
		if sub.ID == id {
			*m.subs = append((*m.subs)[:i], (*m.subs)[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m MemStore) Pending() ([]Submission, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	subs := make([]Submission, len(*m.subs))
	copy(subs, *m.subs)
	return subs, nil
}
