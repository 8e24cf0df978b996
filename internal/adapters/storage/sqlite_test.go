package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleForecast(id, marketID string, createdAt time.Time) domain.Forecast {
	return domain.Forecast{
		ID:                    id,
		MarketID:              marketID,
		RawProbability:        0.65,
		CalibratedProbability: 0.65,
		Confidence:            0.80,
		MarketPrice:           0.50,
		CreatedAt:             createdAt,
		Outcome:               domain.OutcomeUnresolved,
		Opinions: []domain.Opinion{
			{Role: domain.RoleProponent, Probability: 0.70, Rationale: "case for yes", Round: 1},
			{Role: domain.RoleOpponent, Probability: 0.55, Rationale: "case for no", Round: 1},
			{Role: domain.RoleChallenger, Probability: 0.60, Rationale: "weak points", Round: 1},
			{Role: domain.RoleArbiter, Probability: 0.65, Rationale: "verdict", Round: 1},
		},
	}
}

func TestForecasts_SaveResolveRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.SaveForecast(ctx, sampleForecast("f1", "0xa", now)))
	require.NoError(t, store.SaveForecast(ctx, sampleForecast("f2", "0xb", now.Add(time.Minute))))

	total, resolved, err := store.ForecastCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 0, resolved)

	require.NoError(t, store.ResolveForecasts(ctx, "0xa", domain.OutcomeYes))

	got, err := store.ResolvedForecasts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "f1", got[0].ID)
	assert.Equal(t, domain.OutcomeYes, got[0].Outcome)
	assert.Equal(t, 0.65, got[0].RawProbability)
	assert.True(t, got[0].CreatedAt.Equal(now))

	total, resolved, err = store.ForecastCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, resolved)
}

func TestResolveForecasts_OnlyTouchesUnresolved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveForecast(ctx, sampleForecast("f1", "0xa", now)))
	require.NoError(t, store.ResolveForecasts(ctx, "0xa", domain.OutcomeNo))

	// una segunda resolución no reescribe el outcome
	require.NoError(t, store.ResolveForecasts(ctx, "0xa", domain.OutcomeYes))

	got, err := store.ResolvedForecasts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.OutcomeNo, got[0].Outcome)
}

func bank(balance string) domain.BankrollState {
	return domain.BankrollState{
		Balance:     decimal.RequireFromString(balance),
		RealizedPnL: decimal.Zero,
	}
}

func posTrade(pos domain.Position, decision string) domain.Trade {
	return domain.Trade{
		ID: "t-" + pos.ID, PositionID: pos.ID, MarketID: pos.MarketID,
		DecisionID: decision, Side: pos.Side, Stake: pos.Stake, Price: pos.EntryPrice,
		Mode: domain.ModePaper, Status: domain.TradeFilled, ExecutedAt: pos.OpenedAt,
	}
}

func TestPositions_OpenCloseLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	pos := domain.Position{
		ID: "p1", MarketID: "0xa", Side: domain.SideYes,
		Stake: 5, EntryPrice: 0.5, OpenedAt: now, Status: domain.PositionOpen,
	}
	require.NoError(t, store.OpenPosition(ctx, pos, posTrade(pos, "d1"), bank("45")))

	open, err := store.OpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "p1", open[0].ID)
	assert.Equal(t, domain.SideYes, open[0].Side)

	// el trade y el bankroll aterrizaron en la misma transacción
	got, err := store.TradeByDecision(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, got)
	state, err := store.Bankroll(ctx)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.Balance.Equal(decimal.RequireFromString("45")))

	require.NoError(t, store.ClosePosition(ctx, "p1", now.Add(time.Hour), 5.0, bank("55")))

	open, err = store.OpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	state, err = store.Bankroll(ctx)
	require.NoError(t, err)
	assert.True(t, state.Balance.Equal(decimal.RequireFromString("55")))
}

func TestPositions_SchemaRejectsDoubleOpen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p := domain.Position{
		ID: "p1", MarketID: "0xa", Side: domain.SideYes,
		Stake: 5, EntryPrice: 0.5, OpenedAt: now, Status: domain.PositionOpen,
	}
	require.NoError(t, store.OpenPosition(ctx, p, posTrade(p, "d1"), bank("45")))

	p.ID = "p2"
	err := store.OpenPosition(ctx, p, posTrade(p, "d2"), bank("40"))
	assert.Error(t, err, "el índice parcial único debe rechazar el segundo OPEN")

	// la transacción fallida se revierte entera: ni trade huérfano ni
	// bankroll movido
	orphan, qerr := store.TradeByDecision(ctx, "d2")
	require.NoError(t, qerr)
	assert.Nil(t, orphan)
	state, qerr := store.Bankroll(ctx)
	require.NoError(t, qerr)
	require.NotNil(t, state)
	assert.True(t, state.Balance.Equal(decimal.RequireFromString("45")), "balance = %s", state.Balance)

	// cerrar la primera libera el mercado
	require.NoError(t, store.ClosePosition(ctx, "p1", now, -5, bank("40")))
	p.ID = "p3"
	assert.NoError(t, store.OpenPosition(ctx, p, posTrade(p, "d3"), bank("35")))
}

func TestDailyRealizedPnL_SumsTodayOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	open := func(id string) {
		pos := domain.Position{
			ID: id, MarketID: "m-" + id, Side: domain.SideYes,
			Stake: 5, EntryPrice: 0.5, OpenedAt: now.Add(-48 * time.Hour), Status: domain.PositionOpen,
		}
		require.NoError(t, store.OpenPosition(ctx, pos, posTrade(pos, "d-"+id), bank("50")))
	}
	open("p1")
	open("p2")
	open("p3")

	require.NoError(t, store.ClosePosition(ctx, "p1", now, -3, bank("47")))
	require.NoError(t, store.ClosePosition(ctx, "p2", now, 7, bank("54")))
	// cerrada ayer: fuera de la ventana
	require.NoError(t, store.ClosePosition(ctx, "p3", now.Add(-24*time.Hour), -100, bank("0")))

	pnl, err := store.DailyRealizedPnL(ctx, now)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, pnl, 1e-9)
}

func TestDailyRealizedPnL_EmptyDayIsZero(t *testing.T) {
	store := newTestStore(t)

	pnl, err := store.DailyRealizedPnL(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0.0, pnl)
}

func TestTrades_HistoryAndIdempotencyLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	trade := func(id, decision string, at time.Time) domain.Trade {
		return domain.Trade{
			ID: id, PositionID: "p-" + id, MarketID: "0xa", DecisionID: decision,
			Side: domain.SideYes, Stake: 5, Price: 0.5, Mode: domain.ModePaper,
			Status: domain.TradeFilled, ExecutedAt: at,
		}
	}
	require.NoError(t, store.SaveTrade(ctx, trade("t1", "d1", now)))
	require.NoError(t, store.SaveTrade(ctx, trade("t2", "d2", now.Add(time.Minute))))

	got, err := store.TradeByDecision(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, domain.TradeFilled, got.Status)

	missing, err := store.TradeByDecision(ctx, "d-none")
	require.NoError(t, err)
	assert.Nil(t, missing)

	history, err := store.TradeHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// más reciente primero
	assert.Equal(t, "t2", history[0].ID)

	// un trade FAILED entra al histórico pero no compromete su decisión
	failed := trade("t3", "d3", now.Add(2*time.Minute))
	failed.Status = domain.TradeFailed
	failed.PositionID = ""
	require.NoError(t, store.SaveTrade(ctx, failed))

	skipped, err := store.TradeByDecision(ctx, "d3")
	require.NoError(t, err)
	assert.Nil(t, skipped)

	history, err = store.TradeHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
}

func TestBankroll_SeedAndUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state, err := store.Bankroll(ctx)
	require.NoError(t, err)
	assert.Nil(t, state, "sin sembrar debe devolver nil")

	require.NoError(t, store.SaveBankroll(ctx, domain.BankrollState{
		Balance:     decimal.RequireFromString("50"),
		RealizedPnL: decimal.Zero,
	}))
	require.NoError(t, store.SaveBankroll(ctx, domain.BankrollState{
		Balance:     decimal.RequireFromString("55.25"),
		RealizedPnL: decimal.RequireFromString("5.25"),
	}))

	state, err = store.Bankroll(ctx)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.Balance.Equal(decimal.RequireFromString("55.25")), "balance = %s", state.Balance)
	assert.True(t, state.RealizedPnL.Equal(decimal.RequireFromString("5.25")))
}
