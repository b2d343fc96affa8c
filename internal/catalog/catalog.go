// Package catalog provides an optional Postgres-backed record of segment
// lifecycle events, observed from a queue.Queue but never required for its
// correctness — a read side-channel for external tooling.
package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Status mirrors a segment's lifecycle stage in the catalog table.
type Status string

const (
	StatusActive  Status = "active"
	StatusSealed  Status = "sealed"
	StatusRemoved Status = "removed"
)

const schema = `
CREATE TABLE IF NOT EXISTS segment_catalog (
	segment_id       BIGINT PRIMARY KEY,
	status           TEXT NOT NULL,
	durable_size     BIGINT NOT NULL DEFAULT 0,
	newest_timestamp BIGINT NOT NULL DEFAULT -1,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	sealed_at        TIMESTAMPTZ,
	removed_at       TIMESTAMPTZ
)`

// Store implements queue.SegmentObserver against a Postgres table. Its
// methods satisfy the observer interface's no-error-return contract by
// reporting failures to onFail rather than propagating them, so a catalog
// outage never fails a queue write. Each method runs its statement
// synchronously on the caller's goroutine.
type Store struct {
	pool   *pgxpool.Pool
	onFail func(error)
}

// Open connects to Postgres at connString and ensures the catalog schema
// exists. onFail is called, on the goroutine that delivered the event,
// whenever a catalog write fails; pass nil to ignore failures silently.
func Open(ctx context.Context, connString string, onFail func(error)) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connecting to catalog database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging catalog database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating segment_catalog table: %w", err)
	}
	if onFail == nil {
		onFail = func(error) {}
	}
	return &Store{pool: pool, onFail: onFail}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) SegmentCreated(id uint64) {
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO segment_catalog (segment_id, status)
		VALUES ($1, $2)
		ON CONFLICT (segment_id) DO NOTHING
	`, int64(id), StatusActive)
	if err != nil {
		s.onFail(fmt.Errorf("recording segment %d created: %w", id, err))
	}
}

func (s *Store) SegmentSealed(id uint64, durableSize uint64, newestTimestamp int64) {
	_, err := s.pool.Exec(context.Background(), `
		UPDATE segment_catalog
		SET status = $2, durable_size = $3, newest_timestamp = $4, sealed_at = now()
		WHERE segment_id = $1
	`, int64(id), StatusSealed, int64(durableSize), newestTimestamp)
	if err != nil {
		s.onFail(fmt.Errorf("recording segment %d sealed: %w", id, err))
	}
}

func (s *Store) SegmentRemoved(id uint64) {
	_, err := s.pool.Exec(context.Background(), `
		UPDATE segment_catalog
		SET status = $2, removed_at = now()
		WHERE segment_id = $1
	`, int64(id), StatusRemoved)
	if err != nil {
		s.onFail(fmt.Errorf("recording segment %d removed: %w", id, err))
	}
}

// Noop is a no-op observer: it discards every lifecycle event. A queue
// opened without WithObserver does not need it; queue.Open installs its own
// no-op observer by default.
type Noop struct{}

func (Noop) SegmentCreated(uint64)               {}
func (Noop) SegmentSealed(uint64, uint64, int64) {}
func (Noop) SegmentRemoved(uint64)               {}

// Entry is one row of the catalog, returned by List.
type Entry struct {
	SegmentID       uint64
	Status          Status
	DurableSize     uint64
	NewestTimestamp int64
}

// List returns every known segment, ordered by ID, for external tooling to
// inspect lifecycle history.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT segment_id, status, durable_size, newest_timestamp
		FROM segment_catalog
		ORDER BY segment_id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing segment catalog: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var id, durableSize int64
		if err := rows.Scan(&id, &e.Status, &durableSize, &e.NewestTimestamp); err != nil {
			return nil, fmt.Errorf("scanning segment catalog row: %w", err)
		}
		e.SegmentID = uint64(id)
		e.DurableSize = uint64(durableSize)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
