package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
// Lifecycle state is not stored as a column; the pending/open/closed
// queries partition on the nullable entry and exit fields.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	id, signal_id, symbol, direction,
	entry_delay_seconds, planned_entry_time,
	entry_time, entry_price, tp_price, sl_price,
	exit_time, exit_price, exit_reason,
	pnl_1x, pnl_5x, hold_seconds
`

// CreatePending adds a new pending trade. Returns ErrDuplicateKey if the
// trade id or the signal id already exists.
func (s *TradeStore) CreatePending(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trades (id, signal_id, symbol, direction, entry_delay_seconds, planned_entry_time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.SignalID, t.Symbol, t.Direction,
		t.EntryDelaySeconds, t.PlannedEntryTime,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("create pending trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its id. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, id string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// ExistsForSignal reports whether a trade referencing the signal exists.
func (s *TradeStore) ExistsForSignal(ctx context.Context, signalID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM trades WHERE signal_id = $1)`, signalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("trade exists for signal: %w", err)
	}
	return exists, nil
}

// ListPending retrieves all trades that have not entered yet.
func (s *TradeStore) ListPending(ctx context.Context) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE entry_time IS NULL
		ORDER BY planned_entry_time ASC, id ASC
	`
	return s.list(ctx, query, "list pending trades")
}

// ListOpen retrieves all trades that entered but have not exited.
func (s *TradeStore) ListOpen(ctx context.Context) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE entry_time IS NOT NULL AND exit_time IS NULL
		ORDER BY entry_time ASC, id ASC
	`
	return s.list(ctx, query, "list open trades")
}

// ListClosed retrieves all closed trades.
func (s *TradeStore) ListClosed(ctx context.Context) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE exit_time IS NOT NULL
		ORDER BY exit_time ASC, id ASC
	`
	return s.list(ctx, query, "list closed trades")
}

// MarkOpen records the Pending -> Open transition. The WHERE clause only
// matches pending rows, so a repeated call cannot overwrite entry data.
func (s *TradeStore) MarkOpen(ctx context.Context, id string, entryTime time.Time, entryPrice float64, tp, sl *float64) error {
	query := `
		UPDATE trades
		SET entry_time = $2, entry_price = $3, tp_price = $4, sl_price = $5
		WHERE id = $1 AND entry_time IS NULL
	`

	tag, err := s.pool.Exec(ctx, query, id, entryTime, entryPrice, tp, sl)
	if err != nil {
		return fmt.Errorf("mark trade open: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id)
	}
	return nil
}

// MarkClosed records the Open -> Closed transition.
func (s *TradeStore) MarkClosed(ctx context.Context, id string, c storage.TradeClose) error {
	query := `
		UPDATE trades
		SET exit_time = $2, exit_price = $3, exit_reason = $4,
			pnl_1x = $5, pnl_5x = $6, hold_seconds = $7
		WHERE id = $1 AND entry_time IS NOT NULL AND exit_time IS NULL
	`

	tag, err := s.pool.Exec(ctx, query,
		id, c.ExitTime, c.ExitPrice, c.ExitReason, c.PnL1x, c.PnL5x, c.HoldSeconds,
	)
	if err != nil {
		return fmt.Errorf("mark trade closed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id)
	}
	return nil
}

// transitionError distinguishes a missing trade from one in the wrong state
// after a guarded UPDATE matched no rows.
func (s *TradeStore) transitionError(ctx context.Context, id string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM trades WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check trade exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrInvalidTransition
}

func (s *TradeStore) list(ctx context.Context, query, opName string) ([]*domain.Trade, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opName, err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	err := row.Scan(
		&t.ID, &t.SignalID, &t.Symbol, &t.Direction,
		&t.EntryDelaySeconds, &t.PlannedEntryTime,
		&t.EntryTime, &t.EntryPrice, &t.TPPrice, &t.SLPrice,
		&t.ExitTime, &t.ExitPrice, &t.ExitReason,
		&t.PnL1x, &t.PnL5x, &t.HoldSeconds,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
