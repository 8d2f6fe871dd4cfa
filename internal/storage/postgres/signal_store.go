package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

const signalColumns = `
	id, symbol, ts, direction, price, move_pct,
	volume_1m, volume_10m_avg, volume_ratio,
	oi, buy_vol, sell_vol, cvd_snapshot,
	ema_side, liquidity_tier, cooldown_passed
`

// Insert adds a new signal. Returns ErrDuplicateKey if the id exists.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.Signal) error {
	query := `
		INSERT INTO signals (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := s.pool.Exec(ctx, query,
		sig.ID, sig.Symbol, sig.Timestamp, sig.Direction, sig.Price, sig.MovePct,
		sig.Volume1m, sig.Volume10mAvg, sig.VolumeRatio,
		sig.OI, sig.BuyVol, sig.SellVol, sig.CVDSnapshot,
		sig.EMASide, sig.LiquidityTier, sig.CooldownPassed,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// GetByID retrieves a signal by its id. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(ctx context.Context, id string) (*domain.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	sig, err := scanSignal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal by id: %w", err)
	}
	return sig, nil
}

// ListSince retrieves signals with timestamp >= since, oldest first.
// Signals that already have a trade are filtered out in SQL so repeated
// polls do not re-read the whole converted backlog. Callers still keep
// their own dedup since other implementations may not filter.
func (s *SignalStore) ListSince(ctx context.Context, since time.Time, limit int) ([]*domain.Signal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE ts >= $1
		  AND NOT EXISTS (
			SELECT 1 FROM trades WHERE trades.signal_id = signals.id
		  )
		ORDER BY ts ASC, id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list signals since: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

func scanSignal(row pgx.Row) (*domain.Signal, error) {
	var sig domain.Signal
	err := row.Scan(
		&sig.ID, &sig.Symbol, &sig.Timestamp, &sig.Direction, &sig.Price, &sig.MovePct,
		&sig.Volume1m, &sig.Volume10mAvg, &sig.VolumeRatio,
		&sig.OI, &sig.BuyVol, &sig.SellVol, &sig.CVDSnapshot,
		&sig.EMASide, &sig.LiquidityTier, &sig.CooldownPassed,
	)
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

func scanSignals(rows pgx.Rows) ([]*domain.Signal, error) {
	var signals []*domain.Signal

	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		signals = append(signals, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}

	return signals, nil
}
