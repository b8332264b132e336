package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"
)

var (
	// ErrPathRequired is returned when the backing store path is missing.
	ErrPathRequired = errors.New("dscd storage path must be configured")
	// ErrSnapshotNotFound is returned when a feed has no aggregated snapshot.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Storage persists oracle samples and aggregated snapshots.
type Storage struct {
	db *sql.DB
}

// Open initialises the backing store using a sqlite-compatible DSN.
func Open(dsn string) (*Storage, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases database resources.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordSample persists a raw source quote.
func (s *Storage) RecordSample(ctx context.Context, feed, source, price string, observed, recorded time.Time) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO oracle_samples(feed, source, price, observed_at, recorded_at)
        VALUES(?, ?, ?, ?, ?)
    `, feedKey(feed), strings.ToLower(strings.TrimSpace(source)), strings.TrimSpace(price), observed.UTC().Unix(), recorded.UTC())
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// RecordSnapshot stores an aggregated median.
func (s *Storage) RecordSnapshot(ctx context.Context, feed, median string, feeders []string, proofID string, ts time.Time) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO oracle_snapshots(feed, median_price, feeders, proof_id, observed_at, recorded_at)
        VALUES(?, ?, ?, ?, ?, ?)
    `, feedKey(feed), strings.TrimSpace(median), strings.Join(feeders, ","), proofID, ts.UTC().Unix(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Snapshot captures an aggregated oracle round.
type Snapshot struct {
	Feed           string
	MedianPrice    string
	Feeders        []string
	ProofID        string
	ObservedAtUnix int64
	RecordedAt     time.Time
}

// LatestSnapshot returns the most recent aggregated median for feed.
func (s *Storage) LatestSnapshot(ctx context.Context, feed string) (Snapshot, error) {
	result := Snapshot{Feed: feedKey(feed)}
	if s == nil {
		return result, fmt.Errorf("storage not configured")
	}
	row := s.db.QueryRowContext(ctx, `
        SELECT median_price, feeders, proof_id, observed_at, recorded_at
        FROM oracle_snapshots
        WHERE feed = ?
        ORDER BY id DESC
        LIMIT 1
    `, result.Feed)
	var feeders string
	if err := row.Scan(&result.MedianPrice, &feeders, &result.ProofID, &result.ObservedAtUnix, &result.RecordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, ErrSnapshotNotFound
		}
		return result, fmt.Errorf("query snapshot: %w", err)
	}
	if feeders != "" {
		result.Feeders = strings.Split(feeders, ",")
	}
	return result, nil
}

// SampleCount reports how many raw samples were stored for feed since cutoff.
func (s *Storage) SampleCount(ctx context.Context, feed string, cutoff time.Time) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("storage not configured")
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM oracle_samples WHERE feed = ? AND observed_at >= ?
    `, feedKey(feed), cutoff.UTC().Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return count, nil
}

// PruneSamples removes raw samples observed before cutoff.
func (s *Storage) PruneSamples(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("storage not configured")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM oracle_samples WHERE observed_at < ?`, cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune samples: %w", err)
	}
	return res.RowsAffected()
}

func feedKey(feed string) string {
	return strings.ToLower(strings.TrimSpace(feed))
}

const schema = `
CREATE TABLE IF NOT EXISTS oracle_samples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    feed TEXT NOT NULL,
    source TEXT NOT NULL,
    price TEXT NOT NULL,
    observed_at INTEGER NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_oracle_samples_feed_ts ON oracle_samples(feed, observed_at);

CREATE TABLE IF NOT EXISTS oracle_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    feed TEXT NOT NULL,
    median_price TEXT NOT NULL,
    feeders TEXT NOT NULL,
    proof_id TEXT NOT NULL,
    observed_at INTEGER NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_oracle_snapshots_feed_ts ON oracle_snapshots(feed, observed_at);
`
