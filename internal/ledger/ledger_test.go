package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

func filledTrade(marketID string, side domain.Side, stake, price float64) domain.Trade {
	return domain.Trade{
		ID:         "t-" + marketID,
		PositionID: "p-" + marketID,
		MarketID:   marketID,
		Side:       side,
		Stake:      stake,
		Price:      price,
		Mode:       domain.ModePaper,
		Status:     domain.TradeFilled,
		ExecutedAt: time.Now().UTC(),
	}
}

func TestOpenPosition_DebitsStake(t *testing.T) {
	l := New(50)

	pos, err := l.OpenPosition(context.Background(), filledTrade("0xa", domain.SideYes, 5, 0.50))

	require.NoError(t, err)
	assert.Equal(t, "0xa", pos.MarketID)
	assert.Equal(t, domain.PositionOpen, pos.Status)
	assert.Equal(t, 45.0, l.Balance())

	view := l.View("0xa")
	assert.True(t, view.HasPosition)
	assert.Equal(t, 1, view.OpenPositions)
}

func TestOpenPosition_RejectsDuplicate(t *testing.T) {
	l := New(50)

	_, err := l.OpenPosition(context.Background(), filledTrade("0xa", domain.SideYes, 5, 0.50))
	require.NoError(t, err)

	_, err = l.OpenPosition(context.Background(), filledTrade("0xa", domain.SideNo, 3, 0.40))
	assert.ErrorIs(t, err, domain.ErrDuplicatePosition)
	assert.Equal(t, 45.0, l.Balance())
}

func TestOpenPosition_RejectsUnfilledTrade(t *testing.T) {
	l := New(50)

	trade := filledTrade("0xa", domain.SideYes, 5, 0.50)
	trade.Status = domain.TradeRejected

	_, err := l.OpenPosition(context.Background(), trade)
	require.Error(t, err)
	assert.Equal(t, 50.0, l.Balance())
}

func TestOpenPosition_RejectsOverdraft(t *testing.T) {
	l := New(3)

	_, err := l.OpenPosition(context.Background(), filledTrade("0xa", domain.SideYes, 5, 0.50))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds balance")
	assert.Equal(t, 3.0, l.Balance())
}

func TestOpenPosition_ConcurrentSingleWinner(t *testing.T) {
	l := New(1000)
	const workers = 16

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trade := filledTrade("0xrace", domain.SideYes, 5, 0.50)
			trade.ID = fmt.Sprintf("t-%d", i)
			trade.PositionID = fmt.Sprintf("p-%d", i)
			_, errs[i] = l.OpenPosition(context.Background(), trade)
		}(i)
	}
	wg.Wait()

	var opened, dupes int
	for _, err := range errs {
		switch {
		case err == nil:
			opened++
		case errors.Is(err, domain.ErrDuplicatePosition):
			dupes++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, opened)
	assert.Equal(t, workers-1, dupes)
	assert.Equal(t, 995.0, l.Balance())
}

func TestResolve_WinCreditsExactPayoff(t *testing.T) {
	l := New(50)
	ctx := context.Background()

	_, err := l.OpenPosition(ctx, filledTrade("0xa", domain.SideYes, 5, 0.50))
	require.NoError(t, err)

	pnl, err := l.Resolve(ctx, "0xa", domain.OutcomeYes)
	require.NoError(t, err)

	// payoff = 5 / 0.50 = 10; pnl = 5; balance = 50 − 5 + 10
	assert.True(t, pnl.Equal(decimal.NewFromInt(5)), "pnl = %s", pnl)
	assert.Equal(t, 55.0, l.Balance())

	snap := l.Snapshot()
	assert.Empty(t, snap.OpenPositions)
	assert.True(t, snap.Bankroll.RealizedPnL.Equal(decimal.NewFromInt(5)))
	assert.True(t, snap.DailyPnL.Equal(decimal.NewFromInt(5)))
}

func TestResolve_LossForfeitsStake(t *testing.T) {
	l := New(50)
	ctx := context.Background()

	_, err := l.OpenPosition(ctx, filledTrade("0xa", domain.SideYes, 5, 0.50))
	require.NoError(t, err)

	pnl, err := l.Resolve(ctx, "0xa", domain.OutcomeNo)
	require.NoError(t, err)

	assert.True(t, pnl.Equal(decimal.NewFromInt(-5)), "pnl = %s", pnl)
	assert.Equal(t, 45.0, l.Balance())
}

func TestResolve_NoSideWinsWhenOutcomeNo(t *testing.T) {
	l := New(50)
	ctx := context.Background()

	// lado NO a precio efectivo 0.25: payoff 4x
	_, err := l.OpenPosition(ctx, filledTrade("0xa", domain.SideNo, 5, 0.25))
	require.NoError(t, err)

	pnl, err := l.Resolve(ctx, "0xa", domain.OutcomeNo)
	require.NoError(t, err)

	assert.True(t, pnl.Equal(decimal.NewFromInt(15)), "pnl = %s", pnl)
	assert.Equal(t, 65.0, l.Balance())
}

func TestResolve_BalancePreservationExact(t *testing.T) {
	// stakes con decimales que en float64 acumularían error
	l := New(100)
	ctx := context.Background()

	stakes := []float64{3.33, 1.01, 7.77}
	for i, stake := range stakes {
		id := fmt.Sprintf("0x%d", i)
		_, err := l.OpenPosition(ctx, filledTrade(id, domain.SideYes, stake, 0.50))
		require.NoError(t, err)
	}
	for i := range stakes {
		_, err := l.Resolve(ctx, fmt.Sprintf("0x%d", i), domain.OutcomeYes)
		require.NoError(t, err)
	}

	// cada victoria a 0.50 duplica el stake: 100 + 3.33 + 1.01 + 7.77
	snap := l.Snapshot()
	assert.True(t, snap.Bankroll.Balance.Equal(decimal.RequireFromString("112.11")),
		"balance = %s", snap.Bankroll.Balance)
}

func TestResolve_RequiresOpenPosition(t *testing.T) {
	l := New(50)

	_, err := l.Resolve(context.Background(), "0xnone", domain.OutcomeYes)
	assert.Error(t, err)
}

func TestResolve_RejectsUnresolvedOutcome(t *testing.T) {
	l := New(50)
	ctx := context.Background()

	_, err := l.OpenPosition(ctx, filledTrade("0xa", domain.SideYes, 5, 0.50))
	require.NoError(t, err)

	_, err = l.Resolve(ctx, "0xa", domain.OutcomeUnresolved)
	require.Error(t, err)

	// la posición sigue abierta
	assert.Contains(t, l.OpenMarketIDs(), "0xa")
}

func TestDailyPnL_ResetsAcrossUTCDays(t *testing.T) {
	l := New(100)
	ctx := context.Background()

	_, err := l.OpenPosition(ctx, filledTrade("0xa", domain.SideYes, 10, 0.50))
	require.NoError(t, err)
	_, err = l.Resolve(ctx, "0xa", domain.OutcomeNo)
	require.NoError(t, err)

	view := l.View("0xa")
	assert.Equal(t, -10.0, view.DailyRealizedPnL)

	// simula el cruce de medianoche UTC retrocediendo el día registrado
	l.mu.Lock()
	l.day = "2020-01-01"
	l.mu.Unlock()

	view = l.View("0xa")
	assert.Equal(t, 0.0, view.DailyRealizedPnL)
	assert.True(t, l.Snapshot().DailyPnL.IsZero())
	// el realizado acumulado no se toca, solo el corte diario
	assert.True(t, l.Snapshot().Bankroll.RealizedPnL.Equal(decimal.NewFromInt(-10)))
}

func TestView_UnknownMarket(t *testing.T) {
	l := New(50)

	view := l.View("0xnone")

	assert.False(t, view.HasPosition)
	assert.Equal(t, 0, view.OpenPositions)
	assert.Equal(t, 50.0, view.Bankroll)
}
