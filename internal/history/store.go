// Package history records past searches per owner in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultLimit is how many entries Recent returns when asked for none.
const DefaultLimit = 10

// AnonymousOwner is used when a caller does not identify itself.
const AnonymousOwner = "anon"

var ErrMissingLocation = errors.New("history: location_name is required")

const createSearchHistory = `
CREATE TABLE IF NOT EXISTS search_history (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	location_name TEXT NOT NULL,
	risk_score    INTEGER,
	search_data   TEXT,
	latitude      REAL,
	longitude     REAL,
	city          TEXT,
	state         TEXT,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS search_history_owner_created ON search_history (owner_id, created_at DESC);
`

// Entry is one recorded search.
type Entry struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"user_id"`
	LocationName string          `json:"location_name"`
	RiskScore    *int            `json:"risk_score,omitempty"`
	SearchData   json.RawMessage `json:"search_data,omitempty"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	City         string          `json:"city,omitempty"`
	State        string          `json:"state,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Option func(*Store)

// WithClock overrides time.Now for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the history database at path.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := path
	if !strings.Contains(path, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createSearchHistory); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Record stores e under a fresh id and returns the stored entry.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	e.LocationName = strings.TrimSpace(e.LocationName)
	if e.LocationName == "" {
		return Entry{}, ErrMissingLocation
	}
	if e.OwnerID == "" {
		e.OwnerID = AnonymousOwner
	}
	e.ID = uuid.NewString()
	e.CreatedAt = s.now().UTC().Truncate(time.Millisecond)

	var data any
	if len(e.SearchData) > 0 {
		data = string(e.SearchData)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_history (
			id, owner_id, location_name, risk_score, search_data,
			latitude, longitude, city, state, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.LocationName, e.RiskScore, data,
		e.Latitude, e.Longitude, nullString(e.City), nullString(e.State), e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("history insert: %w", err)
	}
	return e, nil
}

// Recent returns owner's newest entries first. limit <= 0 means DefaultLimit.
func (s *Store) Recent(ctx context.Context, owner string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, location_name, risk_score, search_data,
			latitude, longitude, city, state, created_at
		 FROM search_history WHERE owner_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		owner, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history query: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e         Entry
			score     sql.NullInt64
			data      sql.NullString
			lat, lng  sql.NullFloat64
			city, st  sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.LocationName, &score, &data,
			&lat, &lng, &city, &st, &createdAt); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		if score.Valid {
			v := int(score.Int64)
			e.RiskScore = &v
		}
		if data.Valid {
			e.SearchData = json.RawMessage(data.String)
		}
		if lat.Valid {
			e.Latitude = &lat.Float64
		}
		if lng.Valid {
			e.Longitude = &lng.Float64
		}
		e.City = city.String
		e.State = st.String
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteByOwner removes every entry for owner and reports how many went.
func (s *Store) DeleteByOwner(ctx context.Context, owner string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_history WHERE owner_id = ?`, owner)
	if err != nil {
		return 0, fmt.Errorf("history delete: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
