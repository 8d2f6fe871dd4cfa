package storage

import (
	"context"
	"time"

	"momentum-lab/internal/domain"
)

// SignalStore provides access to signals storage.
type SignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, s *domain.Signal) error

	// GetByID retrieves a signal by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Signal, error)

	// ListSince retrieves signals with timestamp >= since, ordered by
	// timestamp ASC, at most limit rows. Implementations may additionally
	// exclude signals that already have a trade; callers must not rely on
	// that and must guard with TradeStore.ExistsForSignal.
	ListSince(ctx context.Context, since time.Time, limit int) ([]*domain.Signal, error)
}

// TradeStore provides access to trades storage.
type TradeStore interface {
	// CreatePending adds a new pending trade. Returns ErrDuplicateKey if
	// the trade id (or signal id) already exists.
	CreatePending(ctx context.Context, t *domain.Trade) error

	// GetByID retrieves a trade by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Trade, error)

	// ExistsForSignal reports whether a trade referencing the signal exists.
	ExistsForSignal(ctx context.Context, signalID string) (bool, error)

	// ListPending retrieves all trades that have not entered yet,
	// ordered by planned entry time ASC.
	ListPending(ctx context.Context) ([]*domain.Trade, error)

	// ListOpen retrieves all trades that entered but have not exited,
	// ordered by entry time ASC.
	ListOpen(ctx context.Context) ([]*domain.Trade, error)

	// ListClosed retrieves all closed trades, ordered by exit time ASC.
	ListClosed(ctx context.Context) ([]*domain.Trade, error)

	// MarkOpen records the Pending -> Open transition. tp and sl are nil in
	// trailing mode. Returns ErrNotFound for an unknown id and
	// ErrInvalidTransition if the trade is not pending.
	MarkOpen(ctx context.Context, id string, entryTime time.Time, entryPrice float64, tp, sl *float64) error

	// MarkClosed records the Open -> Closed transition.
	// Returns ErrNotFound for an unknown id and ErrInvalidTransition if the
	// trade is not open.
	MarkClosed(ctx context.Context, id string, c TradeClose) error
}

// TradeClose carries the Open -> Closed transition fields.
type TradeClose struct {
	ExitTime    time.Time
	ExitPrice   float64
	ExitReason  string
	PnL1x       float64
	PnL5x       float64
	HoldSeconds int64
}

// TickStore archives raw feed ticks. Write path only; the live system never
// reads the archive back.
type TickStore interface {
	// InsertBulk appends a batch of ticks.
	InsertBulk(ctx context.Context, ticks []*domain.Tick) error
}
