package trades

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/marketstate"
	"momentum-lab/internal/storage/memory"
)

func fixedEngine(market *marketstate.Store, trades *memory.TradeStore) *Engine {
	return NewEngine(EngineOptions{
		Config: EngineConfig{
			Policy:          ExitPolicyFixed,
			TakeProfitPct:   0.02,
			StopLossPct:     0.01,
			TimeStopSeconds: 45,
		},
		Market: market,
		Trades: trades,
	})
}

func trailingEngine(market *marketstate.Store, trades *memory.TradeStore) *Engine {
	return NewEngine(EngineOptions{
		Config: EngineConfig{
			Policy:                ExitPolicyTrailing,
			TrailingActivationPct: 0.002,
			TrailingDistancePct:   0.0015,
			TimeStopBypassPct:     0.002,
			TimeStopSeconds:       45,
			MaxHoldSeconds:        300,
		},
		Market: market,
		Trades: trades,
	})
}

func seedPending(t *testing.T, trades *memory.TradeStore, id, symbol, direction string, planned time.Time) {
	t.Helper()
	err := trades.CreatePending(context.Background(), &domain.Trade{
		ID:               id,
		SignalID:         "sig-" + id,
		Symbol:           symbol,
		Direction:        direction,
		PlannedEntryTime: planned,
	})
	require.NoError(t, err)
}

func getTrade(t *testing.T, trades *memory.TradeStore, id string) *domain.Trade {
	t.Helper()
	tr, err := trades.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tr
}

func TestEntry_WaitsForPlannedTime(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	e := fixedEngine(market, trades)

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionLong, now.Add(5*time.Second))
	market.Record("BTCUSDT", 100, now)

	e.Tick(context.Background(), now)
	assert.Equal(t, domain.TradeStatusPending, getTrade(t, trades, "t1").Status())

	e.Tick(context.Background(), now.Add(5*time.Second))
	tr := getTrade(t, trades, "t1")
	require.Equal(t, domain.TradeStatusOpen, tr.Status())
	assert.Equal(t, 100.0, *tr.EntryPrice)
	require.NotNil(t, tr.TPPrice)
	require.NotNil(t, tr.SLPrice)
	assert.InDelta(t, 102.0, *tr.TPPrice, 1e-9)
	assert.InDelta(t, 99.0, *tr.SLPrice, 1e-9)
}

func TestEntry_StaysPendingWithoutPrice(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	e := fixedEngine(market, trades)

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionLong, now)

	// No tick ever arrived for the symbol: no timeout, stays pending.
	e.Tick(context.Background(), now.Add(time.Hour))
	assert.Equal(t, domain.TradeStatusPending, getTrade(t, trades, "t1").Status())
}

func TestEntry_ShortExitPricesMirrored(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	e := fixedEngine(market, trades)

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionShort, now)
	market.Record("BTCUSDT", 100, now)

	e.Tick(context.Background(), now)
	tr := getTrade(t, trades, "t1")
	require.Equal(t, domain.TradeStatusOpen, tr.Status())
	assert.InDelta(t, 98.0, *tr.TPPrice, 1e-9)
	assert.InDelta(t, 101.0, *tr.SLPrice, 1e-9)
}

func TestFixedExit_TakeProfit(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	e := fixedEngine(market, trades)
	ctx := context.Background()

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionLong, now)

	market.Record("BTCUSDT", 100, now)
	e.Tick(ctx, now)

	market.Record("BTCUSDT", 101, now.Add(time.Second))
	e.Tick(ctx, now.Add(time.Second))
	assert.Equal(t, domain.TradeStatusOpen, getTrade(t, trades, "t1").Status())

	market.Record("BTCUSDT", 102.5, now.Add(2*time.Second))
	e.Tick(ctx, now.Add(2*time.Second))

	tr := getTrade(t, trades, "t1")
	require.Equal(t, domain.TradeStatusClosed, tr.Status())
	assert.Equal(t, domain.ExitReasonTP, *tr.ExitReason)
	assert.GreaterOrEqual(t, *tr.ExitPrice, 102.0)
	assert.InDelta(t, 0.025, *tr.PnL1x, 1e-9)
	assert.InDelta(t, 0.125, *tr.PnL5x, 1e-9)
}

func TestFixedExit_StopLoss(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	e := fixedEngine(market, trades)
	ctx := context.Background()

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionLong, now)

	market.Record("BTCUSDT", 100, now)
	e.Tick(ctx, now)

	market.Record("BTCUSDT", 98.9, now.Add(time.Second))
	e.Tick(ctx, now.Add(time.Second))

	tr := getTrade(t, trades, "t1")
	require.Equal(t, domain.TradeStatusClosed, tr.Status())
	assert.Equal(t, domain.ExitReasonSL, *tr.ExitReason)
	assert.InDelta(t, -0.011, *tr.PnL1x, 1e-9)
}

func TestFixedExit_TPWinsOverTimeStop(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	e := fixedEngine(market, trades)
	ctx := context.Background()

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionLong, now)
	market.Record("BTCUSDT", 100, now)
	e.Tick(ctx, now)

	// TP touch and time stop are both true on this pass; TP has precedence.
	market.Record("BTCUSDT", 103, now.Add(60*time.Second))
	e.Tick(ctx, now.Add(60*time.Second))

	tr := getTrade(t, trades, "t1")
	require.Equal(t, domain.TradeStatusClosed, tr.Status())
	assert.Equal(t, domain.ExitReasonTP, *tr.ExitReason)
}

func TestFixedExit_TimeStop(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	e := fixedEngine(market, trades)
	ctx := context.Background()

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionLong, now)
	market.Record("BTCUSDT", 100, now)
	e.Tick(ctx, now)

	market.Record("BTCUSDT", 100.2, now.Add(45*time.Second))
	e.Tick(ctx, now.Add(45*time.Second))

	tr := getTrade(t, trades, "t1")
	require.Equal(t, domain.TradeStatusClosed, tr.Status())
	assert.Equal(t, domain.ExitReasonTime, *tr.ExitReason)
	assert.Equal(t, int64(45), *tr.HoldSeconds)
}

func TestTrailingExit_ArmPeakAndTrail(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	e := trailingEngine(market, trades)
	ctx := context.Background()

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionLong, now)

	market.Record("BTCUSDT", 100, now)
	e.Tick(ctx, now)
	tr := getTrade(t, trades, "t1")
	require.Equal(t, domain.TradeStatusOpen, tr.Status())
	assert.Nil(t, tr.TPPrice)
	assert.Nil(t, tr.SLPrice)

	// +0.5%: arms the trail, peak=100.5.
	market.Record("BTCUSDT", 100.5, now.Add(time.Second))
	e.Tick(ctx, now.Add(time.Second))
	assert.Equal(t, domain.TradeStatusOpen, getTrade(t, trades, "t1").Status())

	// New peak 101.
	market.Record("BTCUSDT", 101, now.Add(2*time.Second))
	e.Tick(ctx, now.Add(2*time.Second))
	assert.Equal(t, domain.TradeStatusOpen, getTrade(t, trades, "t1").Status())

	// 100.84 < 101*(1-0.0015)=100.8485: trail crossed.
	market.Record("BTCUSDT", 100.84, now.Add(3*time.Second))
	e.Tick(ctx, now.Add(3*time.Second))

	tr = getTrade(t, trades, "t1")
	require.Equal(t, domain.TradeStatusClosed, tr.Status())
	assert.Equal(t, domain.ExitReasonTrail, *tr.ExitReason)
	assert.Equal(t, 100.84, *tr.ExitPrice)
}

func TestTrailingExit_ShortTrailMirrored(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	e := trailingEngine(market, trades)
	ctx := context.Background()

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionShort, now)

	market.Record("BTCUSDT", 100, now)
	e.Tick(ctx, now)

	// Falling price is favorable for a short: peak tracks the minimum.
	market.Record("BTCUSDT", 99.5, now.Add(time.Second))
	e.Tick(ctx, now.Add(time.Second))

	market.Record("BTCUSDT", 99, now.Add(2*time.Second))
	e.Tick(ctx, now.Add(2*time.Second))
	assert.Equal(t, domain.TradeStatusOpen, getTrade(t, trades, "t1").Status())

	// 99.16 > 99*(1+0.0015)=99.1485: trail crossed against the short.
	market.Record("BTCUSDT", 99.16, now.Add(3*time.Second))
	e.Tick(ctx, now.Add(3*time.Second))

	tr := getTrade(t, trades, "t1")
	require.Equal(t, domain.TradeStatusClosed, tr.Status())
	assert.Equal(t, domain.ExitReasonTrail, *tr.ExitReason)
	assert.Positive(t, *tr.PnL1x)
}

func TestTrailingExit_TimeStopBypassForProfitableTrade(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	e := trailingEngine(market, trades)
	ctx := context.Background()

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionLong, now)
	market.Record("BTCUSDT", 100, now)
	e.Tick(ctx, now)

	// +0.4% at the time stop: above the bypass threshold, left to run.
	market.Record("BTCUSDT", 100.4, now.Add(45*time.Second))
	e.Tick(ctx, now.Add(45*time.Second))
	assert.Equal(t, domain.TradeStatusOpen, getTrade(t, trades, "t1").Status())
}

func TestTrailingExit_TimeStopClosesFlatTrade(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	e := trailingEngine(market, trades)
	ctx := context.Background()

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionLong, now)
	market.Record("BTCUSDT", 100, now)
	e.Tick(ctx, now)

	// +0.1% at the time stop: below the bypass threshold, time-boxed.
	market.Record("BTCUSDT", 100.1, now.Add(45*time.Second))
	e.Tick(ctx, now.Add(45*time.Second))

	tr := getTrade(t, trades, "t1")
	require.Equal(t, domain.TradeStatusClosed, tr.Status())
	assert.Equal(t, domain.ExitReasonTime, *tr.ExitReason)
}

func TestTrailingExit_MaxHoldClosesRegardlessOfProfit(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	e := trailingEngine(market, trades)
	ctx := context.Background()

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionLong, now)
	market.Record("BTCUSDT", 100, now)
	e.Tick(ctx, now)

	// Deep in profit but at the absolute cap: forced TIME exit.
	market.Record("BTCUSDT", 110, now.Add(300*time.Second))
	e.Tick(ctx, now.Add(300*time.Second))

	tr := getTrade(t, trades, "t1")
	require.Equal(t, domain.TradeStatusClosed, tr.Status())
	assert.Equal(t, domain.ExitReasonTime, *tr.ExitReason)
	assert.Equal(t, int64(300), *tr.HoldSeconds)
}

func TestManage_SkipsTradeWithSilentFeed(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	e := fixedEngine(market, trades)
	ctx := context.Background()

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionLong, now)
	market.Record("BTCUSDT", 100, now)
	e.Tick(ctx, now)

	// The engine reads only Latest, which persists after entry, so a
	// permanently silent feed would keep returning the stale entry price.
	// An unknown symbol models the skip path directly.
	seedPending(t, trades, "t2", "NOPRICE", domain.DirectionLong, now)
	e.Tick(ctx, now.Add(time.Hour))
	assert.Equal(t, domain.TradeStatusPending, getTrade(t, trades, "t2").Status())
}

func TestTrailing_RestartRecoversUnarmed(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	ctx := context.Background()

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionLong, now)
	market.Record("BTCUSDT", 100, now)

	e1 := trailingEngine(market, trades)
	e1.Tick(ctx, now)
	require.Equal(t, domain.TradeStatusOpen, getTrade(t, trades, "t1").Status())

	// A fresh engine models a restart: trailing memory is gone. The trade
	// re-derives its trail unarmed with peak reset to the entry price, so
	// a small dip does not trigger a trail exit.
	e2 := trailingEngine(market, trades)
	market.Record("BTCUSDT", 99.9, now.Add(time.Second))
	e2.Tick(ctx, now.Add(time.Second))
	assert.Equal(t, domain.TradeStatusOpen, getTrade(t, trades, "t1").Status())

	// It can re-arm and trail out as usual.
	market.Record("BTCUSDT", 100.5, now.Add(2*time.Second))
	e2.Tick(ctx, now.Add(2*time.Second))
	market.Record("BTCUSDT", 100.2, now.Add(3*time.Second))
	e2.Tick(ctx, now.Add(3*time.Second))

	tr := getTrade(t, trades, "t1")
	require.Equal(t, domain.TradeStatusClosed, tr.Status())
	assert.Equal(t, domain.ExitReasonTrail, *tr.ExitReason)
}

func TestFixed_ManagesTradeOpenedUnderTrailingPolicy(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := memory.NewTradeStore()
	ctx := context.Background()

	now := time.Unix(1000, 0).UTC()
	seedPending(t, trades, "t1", "BTCUSDT", domain.DirectionLong, now)
	seedPending(t, trades, "t2", "ETHUSDT", domain.DirectionLong, now)
	market.Record("BTCUSDT", 100, now)
	market.Record("ETHUSDT", 200, now)

	// Trailing entries persist no TP/SL levels.
	e1 := trailingEngine(market, trades)
	e1.Tick(ctx, now)
	require.Equal(t, domain.TradeStatusOpen, getTrade(t, trades, "t1").Status())
	require.Nil(t, getTrade(t, trades, "t1").TPPrice)
	require.Nil(t, getTrade(t, trades, "t1").SLPrice)

	// A restart under the fixed policy derives the levels from the entry
	// price instead of dereferencing the missing ones.
	e2 := fixedEngine(market, trades)
	market.Record("BTCUSDT", 101.5, now.Add(time.Second))
	e2.Tick(ctx, now.Add(time.Second))
	assert.Equal(t, domain.TradeStatusOpen, getTrade(t, trades, "t1").Status())

	market.Record("BTCUSDT", 102, now.Add(2*time.Second))
	e2.Tick(ctx, now.Add(2*time.Second))
	tr := getTrade(t, trades, "t1")
	require.Equal(t, domain.TradeStatusClosed, tr.Status())
	assert.Equal(t, domain.ExitReasonTP, *tr.ExitReason)
	assert.InDelta(t, 0.02, *tr.PnL1x, 1e-9)

	// The derived stop loss fires the same way.
	market.Record("ETHUSDT", 197.5, now.Add(3*time.Second))
	e2.Tick(ctx, now.Add(3*time.Second))
	tr = getTrade(t, trades, "t2")
	require.Equal(t, domain.TradeStatusClosed, tr.Status())
	assert.Equal(t, domain.ExitReasonSL, *tr.ExitReason)
}

// deadlineTradeStore records whether ListPending saw a deadline on its context.
type deadlineTradeStore struct {
	*memory.TradeStore
	hadDeadline bool
}

func (s *deadlineTradeStore) ListPending(ctx context.Context) ([]*domain.Trade, error) {
	_, s.hadDeadline = ctx.Deadline()
	return s.TradeStore.ListPending(ctx)
}

func TestTick_BoundsStorageCalls(t *testing.T) {
	market := marketstate.NewStore(10)
	trades := &deadlineTradeStore{TradeStore: memory.NewTradeStore()}
	e := NewEngine(EngineOptions{
		Config: EngineConfig{
			Policy:          ExitPolicyFixed,
			TakeProfitPct:   0.02,
			StopLossPct:     0.01,
			TimeStopSeconds: 45,
		},
		Market: market,
		Trades: trades,
	})

	e.Tick(context.Background(), time.Unix(1000, 0).UTC())

	assert.True(t, trades.hadDeadline)
}
