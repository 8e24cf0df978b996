package loop

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
	"github.com/eeguskiza/Poly-Oracle/internal/risk"
	"github.com/eeguskiza/Poly-Oracle/internal/sizing"
)

func backtestConfig(mode BacktestMode) BacktestConfig {
	return BacktestConfig{
		Mode:            mode,
		InitialBankroll: 100,
		Risk: risk.Config{
			MinEdge:          0.08,
			MinConfidence:    0.65,
			MinLiquidity:     1000,
			MaxOpenPositions: 8,
			MaxDailyLossPct:  0.10,
		},
		Sizing:                sizing.Config{KellyFraction: 0.5, MinBet: 1, MaxBet: 10, MaxPositionPct: 0.10},
		MinCalibrationSamples: 50,
	}
}

// historyStore devuelve un memStore con n forecasts resueltos: raw 0.65 a
// precio 0.50, con el resultado alternando mayoritariamente a YES.
func historyStore(n int) *memStore {
	store := &memStore{}
	base := time.Now().UTC().Add(-time.Duration(n) * time.Hour)
	for i := 0; i < n; i++ {
		outcome := domain.OutcomeYes
		if i%4 == 3 {
			outcome = domain.OutcomeNo
		}
		store.forecasts = append(store.forecasts, domain.Forecast{
			ID:             fmt.Sprintf("f-%d", i),
			MarketID:       fmt.Sprintf("0x%d", i),
			RawProbability: 0.65,
			Confidence:     0.80,
			MarketPrice:    0.50,
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
			Outcome:        outcome,
		})
	}
	return store
}

func TestRunBacktest_FastReplaysHistory(t *testing.T) {
	store := historyStore(20)

	res, err := RunBacktest(context.Background(), store, backtestConfig(BacktestFast))

	require.NoError(t, err)
	assert.Equal(t, BacktestFast, res.Mode)
	assert.Equal(t, 20, res.Forecasts)
	// edge 0.15 y confianza 0.80: todos los forecasts operan
	assert.Equal(t, 20, res.Trades)
	assert.Equal(t, 15, res.Wins)
	assert.Equal(t, 5, res.Losses)

	// cada victoria a 0.50 duplica el stake; el neto debe ser positivo
	assert.Greater(t, res.FinalBankroll, res.InitialBankroll)
	assert.InDelta(t, res.TotalPnL, res.FinalBankroll-res.InitialBankroll, 1e-9)
	assert.Greater(t, res.BrierRaw, 0.0)
}

func TestRunBacktest_EmptyHistory(t *testing.T) {
	store := &memStore{}

	res, err := RunBacktest(context.Background(), store, backtestConfig(BacktestFast))

	require.NoError(t, err)
	assert.Equal(t, 0, res.Forecasts)
	assert.Equal(t, 0, res.Trades)
	assert.Equal(t, 100.0, res.FinalBankroll)
	assert.Equal(t, 0.0, res.TotalPnL)
}

func TestRunBacktest_FullWalkForward(t *testing.T) {
	// suficiente histórico para que el modelo llegue a ajustarse a mitad
	store := historyStore(80)

	res, err := RunBacktest(context.Background(), store, backtestConfig(BacktestFull))

	require.NoError(t, err)
	assert.Equal(t, BacktestFull, res.Mode)
	assert.Equal(t, 80, res.Forecasts)
	// con raw constante 0.65 y ~75% YES, la curva calibrada sube la
	// probabilidad pero no cambia el lado: sigue habiendo trades
	assert.Greater(t, res.Trades, 0)
	assert.Equal(t, res.Trades, res.Wins+res.Losses)
}

func TestRunBacktest_NeverTouchesStoredBankroll(t *testing.T) {
	store := historyStore(10)

	_, err := RunBacktest(context.Background(), store, backtestConfig(BacktestFast))

	require.NoError(t, err)
	// el replay no escribe posiciones ni trades en el store
	assert.Empty(t, store.positions)
	assert.Empty(t, store.trades)
}

func TestRunBacktest_DailyLossLimitStopsReplay(t *testing.T) {
	// histórico de puras derrotas: el freno diario corta los trades
	store := &memStore{}
	base := time.Now().UTC()
	for i := 0; i < 30; i++ {
		store.forecasts = append(store.forecasts, domain.Forecast{
			ID:             fmt.Sprintf("f-%d", i),
			MarketID:       fmt.Sprintf("0x%d", i),
			RawProbability: 0.65,
			Confidence:     0.80,
			MarketPrice:    0.50,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
			Outcome:        domain.OutcomeNo,
		})
	}

	res, err := RunBacktest(context.Background(), store, backtestConfig(BacktestFast))

	require.NoError(t, err)
	assert.Equal(t, 0, res.Wins)
	assert.Greater(t, res.Losses, 0)
	// con pérdida diaria limitada al 10%, el replay no quema el bankroll
	assert.Less(t, res.Losses, 30)
	assert.Greater(t, res.FinalBankroll, 80.0)
}
