// Package store persists instructor test definitions in SQLite. It backs the
// TestStore collaborator interface; the coordinator core never touches the
// database directly.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"audiotest/pkg/interfaces"
	"audiotest/pkg/types"
)

var _ interfaces.TestStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS tests (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	definition TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tests_updated_at ON tests(updated_at);
`

const (
	maxOpenConns    = 10
	writeRetryDelay = 5 * time.Second
	writeTimeout    = 30 * time.Second
)

// Store is a SQLite-backed test-definition store.
// ARCHITECTURAL DISCOVERY: all writes run on a single goroutine; SQLite
// allows concurrent readers but contended writers, so funneling writes keeps
// the busy-timeout path out of normal operation.
type Store struct {
	db       *sql.DB
	writeCh  chan writeOperation
	shutdown chan struct{}
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// Open opens (creating if needed) the store at path and bootstraps its
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open test store: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to bootstrap test store schema: %w", err)
	}

	s := &Store{
		db:       db,
		writeCh:  make(chan writeOperation, 100),
		shutdown: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

// writeLoop processes all write operations in a single goroutine, retrying
// each failed write once.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeCh:
			err := op.operation(s.db)
			if err != nil {
				log.Printf("Test store write failed, retrying in %v: %v", writeRetryDelay, err)
				time.Sleep(writeRetryDelay)
				err = op.operation(s.db)
				if err != nil {
					log.Printf("Test store write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-s.shutdown:
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion.
func (s *Store) executeWrite(operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("test store is closed")
	}
	s.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case s.writeCh <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(writeTimeout):
		return fmt.Errorf("test store write timeout")
	case <-s.shutdown:
		return fmt.Errorf("test store is shutting down")
	}
}

// PersistTest saves a test definition, replacing any prior version with the
// same id.
func (s *Store) PersistTest(ctx context.Context, test *types.Test) error {
	if err := test.Validate(); err != nil {
		return err
	}

	definition, err := json.Marshal(test)
	if err != nil {
		return fmt.Errorf("failed to serialize test %s: %w", test.ID, err)
	}

	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO tests (id, name, definition, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				definition = excluded.definition,
				updated_at = excluded.updated_at
		`, test.ID, test.Name, string(definition), time.Now().UTC())
		return err
	})
}

// LoadTest returns the most recently persisted test definition.
func (s *Store) LoadTest(ctx context.Context) (*types.Test, error) {
	var definition string
	err := s.db.QueryRowContext(ctx, `
		SELECT definition FROM tests
		ORDER BY updated_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&definition)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load test: %w", err)
	}

	var test types.Test
	if err := json.Unmarshal([]byte(definition), &test); err != nil {
		return nil, fmt.Errorf("failed to decode stored test: %w", err)
	}
	return &test, nil
}

// ListTests returns all persisted test definitions, most recent first.
func (s *Store) ListTests(ctx context.Context) ([]*types.Test, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT definition FROM tests
		ORDER BY updated_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	defer rows.Close()

	var tests []*types.Test
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("failed to scan stored test: %w", err)
		}
		var test types.Test
		if err := json.Unmarshal([]byte(definition), &test); err != nil {
			return nil, fmt.Errorf("failed to decode stored test: %w", err)
		}
		tests = append(tests, &test)
	}
	return tests, rows.Err()
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("test store unreachable: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tests").Scan(&count); err != nil {
		return fmt.Errorf("test store query failed: %w", err)
	}
	return nil
}

// Close stops the writer goroutine and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()
	return s.db.Close()
}
