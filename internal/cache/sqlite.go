package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const createCacheEntries = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	data       BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS cache_entries_expires_at ON cache_entries (expires_at);
`

// SQLiteStore keeps entries in a cache_entries table. Timestamps are unix
// milliseconds. Expired rows stay until PurgeExpired removes them.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// KindStats counts rows for one kind.
type KindStats struct {
	Kind    string `json:"kind"`
	Entries int64  `json:"entries"`
	Live    int64  `json:"live"`
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createCacheEntries); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &SQLiteStore{db: db, now: o.now}, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)"
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM cache_entries WHERE key = ? AND expires_at > ?`,
		key, s.now().UnixMilli(),
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite get: %w", err)
	}
	return data, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, kind Kind, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
			return fmt.Errorf("sqlite delete: %w", err)
		}
		return nil
	}

	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, type, data, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			type = excluded.type,
			data = excluded.data,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		key, string(kind), value, now.UnixMilli(), now.Add(ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite upsert: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows whose expiry is at or before now.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite purge: %w", err)
	}
	return int(n), nil
}

// Stats reports total and unexpired rows per kind.
func (s *SQLiteStore) Stats(ctx context.Context) ([]KindStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*), SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END)
		 FROM cache_entries GROUP BY type ORDER BY type`, s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("sqlite stats: %w", err)
	}
	defer rows.Close()

	var out []KindStats
	for rows.Next() {
		var ks KindStats
		if err := rows.Scan(&ks.Kind, &ks.Entries, &ks.Live); err != nil {
			return nil, fmt.Errorf("sqlite stats: %w", err)
		}
		out = append(out, ks)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
