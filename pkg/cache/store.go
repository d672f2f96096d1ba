// Package cache keeps retrieved documents in a local sqlite database so a
// repeated request does not hit the archive again.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/saveenergy/nwm/internal/logging"
)

type Entry struct {
	Key       string
	Data      []byte
	CreatedAt time.Time
}

type Store struct {
	db         *sql.DB
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	closeOnce  sync.Once
}

// New opens (or creates) the cache database at dbPath. Expired entries are
// dropped and the table trimmed to maxEntries before New returns.
func New(dbPath string, maxEntries int, ttl time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// modernc.org/sqlite requires explicit PRAGMAs (not query-string params)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{
		db:         db,
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
	s.cleanup()
	return s, nil
}

func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if err := s.db.Close(); err != nil {
			logging.Warn("fetch cache: close failed", logging.F("error", err))
		}
	})
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at)`)
	return err
}

// Put stores data under key, replacing any previous entry.
func (s *Store) Put(key string, data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO documents (key, data, created_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		key, data, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Get returns the entry for key, or nil when it is absent or older than the TTL.
func (s *Store) Get(key string) (*Entry, error) {
	var e Entry
	err := s.db.QueryRow(
		`SELECT key, data, created_at FROM documents WHERE key = ?`, key,
	).Scan(&e.Key, &e.Data, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	if s.ttl > 0 && s.now().Sub(e.CreatedAt) > s.ttl {
		return nil, nil
	}
	return &e, nil
}

func (s *Store) cleanup() {
	if s.ttl > 0 {
		cutoff := s.now().UTC().Add(-s.ttl)
		res, err := s.db.Exec(`DELETE FROM documents WHERE created_at < ?`, cutoff)
		if err != nil {
			logging.Warn("fetch cache cleanup (age) failed", logging.F("error", err))
		} else if n, _ := res.RowsAffected(); n > 0 {
			logging.Debug("fetch cache cleanup: removed expired", logging.F("count", n))
		}
	}

	// Trim to max count, keeping newest
	if s.maxEntries > 0 {
		res, err := s.db.Exec(
			`DELETE FROM documents WHERE key NOT IN (
				SELECT key FROM documents ORDER BY created_at DESC LIMIT ?
			)`, s.maxEntries)
		if err != nil {
			logging.Warn("fetch cache cleanup (count) failed", logging.F("error", err))
		} else if n, _ := res.RowsAffected(); n > 0 {
			logging.Debug("fetch cache cleanup: trimmed to max",
				logging.F("removed", n),
				logging.F("max", s.maxEntries))
		}
	}
}
