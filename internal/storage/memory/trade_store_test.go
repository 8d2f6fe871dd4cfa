package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

func pendingTrade(id, signalID string, planned time.Time) *domain.Trade {
	return &domain.Trade{
		ID:               id,
		SignalID:         signalID,
		Symbol:           "BTCUSDT",
		Direction:        domain.DirectionLong,
		PlannedEntryTime: planned,
	}
}

func TestTradeStore_CreateAndGet(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	tr := pendingTrade("t1", "sig1", time.Unix(1000, 0).UTC())
	if err := store.CreatePending(ctx, tr); err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}

	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status() != domain.TradeStatusPending {
		t.Errorf("Expected PENDING, got %s", got.Status())
	}
}

func TestTradeStore_DuplicateTradeID(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	if err := store.CreatePending(ctx, pendingTrade("t1", "sig1", time.Unix(1000, 0))); err != nil {
		t.Fatalf("First create failed: %v", err)
	}

	err := store.CreatePending(ctx, pendingTrade("t1", "sig2", time.Unix(1000, 0)))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeStore_DuplicateSignalID(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	if err := store.CreatePending(ctx, pendingTrade("t1", "sig1", time.Unix(1000, 0))); err != nil {
		t.Fatalf("First create failed: %v", err)
	}

	err := store.CreatePending(ctx, pendingTrade("t2", "sig1", time.Unix(1000, 0)))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for same signal, got %v", err)
	}
}

func TestTradeStore_ExistsForSignal(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	exists, err := store.ExistsForSignal(ctx, "sig1")
	if err != nil {
		t.Fatalf("ExistsForSignal failed: %v", err)
	}
	if exists {
		t.Error("Expected false before create")
	}

	if err := store.CreatePending(ctx, pendingTrade("t1", "sig1", time.Unix(1000, 0))); err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}

	exists, err = store.ExistsForSignal(ctx, "sig1")
	if err != nil {
		t.Fatalf("ExistsForSignal failed: %v", err)
	}
	if !exists {
		t.Error("Expected true after create")
	}
}

func TestTradeStore_Lifecycle(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	entryTime := time.Unix(1005, 0).UTC()
	exitTime := time.Unix(1050, 0).UTC()

	if err := store.CreatePending(ctx, pendingTrade("t1", "sig1", time.Unix(1000, 0).UTC())); err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}

	tp, sl := 102.0, 99.0
	if err := store.MarkOpen(ctx, "t1", entryTime, 100, &tp, &sl); err != nil {
		t.Fatalf("MarkOpen failed: %v", err)
	}

	open, err := store.ListOpen(ctx)
	if err != nil {
		t.Fatalf("ListOpen failed: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("Expected 1 open trade, got %d", len(open))
	}
	if *open[0].TPPrice != 102.0 || *open[0].SLPrice != 99.0 {
		t.Errorf("TP/SL mismatch: got %f/%f", *open[0].TPPrice, *open[0].SLPrice)
	}

	err = store.MarkClosed(ctx, "t1", storage.TradeClose{
		ExitTime:    exitTime,
		ExitPrice:   102.5,
		ExitReason:  domain.ExitReasonTP,
		PnL1x:       0.025,
		PnL5x:       0.125,
		HoldSeconds: 45,
	})
	if err != nil {
		t.Fatalf("MarkClosed failed: %v", err)
	}

	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status() != domain.TradeStatusClosed {
		t.Errorf("Expected CLOSED, got %s", got.Status())
	}
	if *got.ExitReason != domain.ExitReasonTP {
		t.Errorf("Expected TP, got %s", *got.ExitReason)
	}
	if *got.HoldSeconds != 45 {
		t.Errorf("Expected hold 45s, got %d", *got.HoldSeconds)
	}

	closed, err := store.ListClosed(ctx)
	if err != nil {
		t.Fatalf("ListClosed failed: %v", err)
	}
	if len(closed) != 1 {
		t.Errorf("Expected 1 closed trade, got %d", len(closed))
	}
}

func TestTradeStore_InvalidTransitions(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	if err := store.MarkOpen(ctx, "missing", time.Unix(1000, 0), 100, nil, nil); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := store.CreatePending(ctx, pendingTrade("t1", "sig1", time.Unix(1000, 0))); err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}

	// Closing a trade that never opened.
	err := store.MarkClosed(ctx, "t1", storage.TradeClose{ExitTime: time.Unix(1050, 0)})
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	if err := store.MarkOpen(ctx, "t1", time.Unix(1005, 0), 100, nil, nil); err != nil {
		t.Fatalf("MarkOpen failed: %v", err)
	}

	// Opening twice.
	err = store.MarkOpen(ctx, "t1", time.Unix(1006, 0), 101, nil, nil)
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition on reopen, got %v", err)
	}
}

func TestTradeStore_ListPendingOrdered(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	if err := store.CreatePending(ctx, pendingTrade("t2", "sig2", time.Unix(2000, 0))); err != nil {
		t.Fatal(err)
	}
	if err := store.CreatePending(ctx, pendingTrade("t1", "sig1", time.Unix(1000, 0))); err != nil {
		t.Fatal(err)
	}

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending trades, got %d", len(pending))
	}
	if pending[0].ID != "t1" || pending[1].ID != "t2" {
		t.Errorf("Expected [t1 t2] by planned entry time, got [%s %s]", pending[0].ID, pending[1].ID)
	}
}
