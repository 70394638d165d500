// Package cache keeps dated channel manifests in a local SQLite database.
//
// Dated manifests never change upstream once published, so a body fetched
// once can be served for every later search. Dates known to have no release
// are remembered as misses. The latest manifest of a channel is never
// stored here.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"

	_ "modernc.org/sqlite"
)

// Entry is one cached candidate date.
type Entry struct {
	Channel release.Channel
	Date    release.Date

	// Body is the raw manifest document. Nil when Missing is set.
	Body []byte

	// Missing records that nothing was published on Date.
	Missing bool

	// Verified is the verification method the body passed when stored.
	Verified string

	FetchedAt time.Time
}

// Store is a SQLite-backed manifest cache. It is safe for concurrent use.
type Store struct {
	sql   *sql.DB
	clock Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp new entries.
func WithClock(clock Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// Open opens or creates the cache database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("cache path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS manifests (
  channel    TEXT NOT NULL,
  date       TEXT NOT NULL,
  body       BLOB,
  missing    INTEGER NOT NULL CHECK (missing IN (0,1)),
  verified   TEXT NOT NULL DEFAULT 'none',
  fetched_at TEXT NOT NULL,
  PRIMARY KEY (channel, date)
);
`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	s := &Store{sql: db, clock: RealClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

// Get returns the entry for channel and date, or nil when nothing is cached.
func (s *Store) Get(ctx context.Context, channel release.Channel, date release.Date) (*Entry, error) {
	var (
		body      []byte
		missing   int
		verified  string
		fetchedAt string
	)
	err := s.sql.QueryRowContext(ctx,
		"SELECT body, missing, verified, fetched_at FROM manifests WHERE channel = ? AND date = ?",
		string(channel), date.String(),
	).Scan(&body, &missing, &verified, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry %s/%s: %w", channel, date, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("read cache entry %s/%s: bad timestamp %q: %w", channel, date, fetchedAt, err)
	}

	return &Entry{
		Channel:   channel,
		Date:      date,
		Body:      body,
		Missing:   missing == 1,
		Verified:  verified,
		FetchedAt: ts,
	}, nil
}

// Put stores a manifest body, replacing any earlier entry for the date.
func (s *Store) Put(ctx context.Context, channel release.Channel, date release.Date, body []byte, verified string) error {
	if len(body) == 0 {
		return errors.New("refusing to cache an empty manifest")
	}
	_, err := s.sql.ExecContext(ctx, `
INSERT INTO manifests(channel, date, body, missing, verified, fetched_at) VALUES(?,?,?,0,?,?)
ON CONFLICT(channel, date) DO UPDATE SET body = excluded.body, missing = 0, verified = excluded.verified, fetched_at = excluded.fetched_at`,
		string(channel), date.String(), body, verified, s.now())
	if err != nil {
		return fmt.Errorf("write cache entry %s/%s: %w", channel, date, err)
	}
	return nil
}

// PutMissing records that nothing was published on date. A stored body is
// never replaced by a miss.
func (s *Store) PutMissing(ctx context.Context, channel release.Channel, date release.Date) error {
	_, err := s.sql.ExecContext(ctx, `
INSERT INTO manifests(channel, date, body, missing, verified, fetched_at) VALUES(?,?,NULL,1,'none',?)
ON CONFLICT(channel, date) DO NOTHING`,
		string(channel), date.String(), s.now())
	if err != nil {
		return fmt.Errorf("write cache miss %s/%s: %w", channel, date, err)
	}
	return nil
}

// Len returns the number of cached entries, misses included.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM manifests").Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}

func (s *Store) now() string {
	return s.clock.Now().UTC().Format(time.RFC3339Nano)
}
