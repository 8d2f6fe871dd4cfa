package clickhouse

import (
	"context"
	"fmt"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// TickStore implements storage.TickStore using ClickHouse. The ticks
// table is an append-only MergeTree; nothing in the live system reads
// it back, so there is no duplicate detection on this path.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// InsertBulk appends a batch of ticks.
func (s *TickStore) InsertBulk(ctx context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ticks (symbol, ts, price)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, tk := range ticks {
		if err := batch.Append(tk.Symbol, tk.Timestamp, tk.Price); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// CountSince reports how many ticks were archived at or after the given
// time. Used by operational tooling, not by the live pipeline.
func (s *TickStore) CountSince(ctx context.Context, since time.Time) (uint64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM ticks WHERE ts >= ?`, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ticks: %w", err)
	}
	return count, nil
}
