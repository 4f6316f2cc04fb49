package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/reading"
)

const duckdbSchema = `
CREATE TABLE IF NOT EXISTS readings (
	id           VARCHAR PRIMARY KEY,
	temperature  DOUBLE  NOT NULL,
	moisture     BIGINT  NOT NULL,
	timestamp_ms BIGINT  NOT NULL
);
CREATE INDEX IF NOT EXISTS readings_timestamp_idx ON readings (timestamp_ms);
`

// =============================================================================
// DuckDB Store
// =============================================================================

// DuckDB persists records in an embedded DuckDB database.
//
// DuckDB is safe for concurrent use.
type DuckDB struct {
	db     *sql.DB
	sensor string
	mu     sync.RWMutex
	closed bool
}

// OpenDuckDB opens (or creates) the database at path.
func OpenDuckDB(ctx context.Context, path, sensor string) (*DuckDB, error) {
	s, err := openDuckDB(ctx, path, sensor)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, duckdbSchema); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Info("duckdb store opened", "path", path)
	return s, nil
}

// OpenDuckDBReadOnly opens an existing database without taking the write
// lock. Writes through the returned store are rejected.
func OpenDuckDBReadOnly(ctx context.Context, path string) (*DuckDB, error) {
	return openDuckDB(ctx, path+"?access_mode=read_only", "")
}

func openDuckDB(ctx context.Context, dsn, sensor string) (*DuckDB, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DuckDB{
		db:     db,
		sensor: sensor,
	}, nil
}

// Write inserts rec. A record whose id is already present is ignored.
func (s *DuckDB) Write(ctx context.Context, rec reading.Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return classify(ctx, "write", errors.ErrClosed)
	}

	rec = rec.WithID(s.sensor)

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO readings (id, temperature, moisture, timestamp_ms)
		VALUES (?, ?, ?, ?)
	`, rec.ID, rec.Temperature, rec.Moisture, rec.TimestampMs)

	return classify(ctx, "insert", err)
}

// Recent returns up to limit records, newest first.
func (s *DuckDB) Recent(ctx context.Context, limit int) ([]reading.Record, error) {
	return s.query(ctx, `
		SELECT id, temperature, moisture, timestamp_ms
		FROM readings
		ORDER BY timestamp_ms DESC
		LIMIT ?
	`, limit)
}

// Between returns the records captured in [fromMs, toMs), oldest first.
func (s *DuckDB) Between(ctx context.Context, fromMs, toMs int64) ([]reading.Record, error) {
	return s.query(ctx, `
		SELECT id, temperature, moisture, timestamp_ms
		FROM readings
		WHERE timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`, fromMs, toMs)
}

// Count returns the number of stored records.
func (s *DuckDB) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errors.ErrClosed
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM readings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

func (s *DuckDB) query(ctx context.Context, query string, args ...any) ([]reading.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var records []reading.Record
	for rows.Next() {
		var rec reading.Record
		if err := rows.Scan(&rec.ID, &rec.Temperature, &rec.Moisture, &rec.TimestampMs); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Health checks database connectivity.
func (s *DuckDB) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *DuckDB) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}
