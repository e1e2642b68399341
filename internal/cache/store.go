// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
)

// Store is a Cache backed by a SQLite database file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the cache database at path and creates the schema
// if it does not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating cache directory")
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "opening cache database")
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating cache schema")
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			written_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_written ON entries(written_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "executing schema statement")
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, namespace, key string, ttl time.Duration) ([]byte, bool, error) {
	var value []byte
	var written int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, written_at FROM entries WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&value, &written)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading cache entry %s/%s", namespace, key)
	}
	if ttl > 0 && s.now().Sub(time.Unix(0, written)) > ttl {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (namespace, key, value, written_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value=excluded.value, written_at=excluded.written_at`,
		namespace, key, value, s.now().UnixNano(),
	)
	if err != nil {
		return errors.Wrapf(err, "writing cache entry %s/%s", namespace, key)
	}
	return nil
}

// Prune deletes entries older than ttl and returns how many were removed.
func (s *Store) Prune(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := s.now().Add(-ttl).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE written_at < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "pruning cache")
	}
	return res.RowsAffected()
}
