package loop

// backtest.go — replay del pipeline de decisión sobre el histórico resuelto.
//
// Usa un ledger en memoria (sin store) y un gateway paper: varios backtests
// pueden correr en el mismo proceso sin tocar el estado persistido.
//
// Modos:
//   fast — cada forecast se replaya con su probabilidad calibrada tal como
//          quedó registrada en su momento.
//   full — walk-forward: antes de cada decisión se reajusta la calibración
//          solo con los forecasts anteriores, como habría ocurrido en vivo.

import (
	"context"
	"fmt"
	"sort"

	"github.com/eeguskiza/Poly-Oracle/internal/calibration"
	"github.com/eeguskiza/Poly-Oracle/internal/domain"
	"github.com/eeguskiza/Poly-Oracle/internal/execution"
	"github.com/eeguskiza/Poly-Oracle/internal/ledger"
	"github.com/eeguskiza/Poly-Oracle/internal/ports"
	"github.com/eeguskiza/Poly-Oracle/internal/risk"
	"github.com/eeguskiza/Poly-Oracle/internal/sizing"
)

// BacktestMode selecciona la profundidad del replay.
type BacktestMode string

const (
	BacktestFast BacktestMode = "fast"
	BacktestFull BacktestMode = "full"
)

// BacktestConfig parametriza el replay.
type BacktestConfig struct {
	Mode                  BacktestMode
	InitialBankroll       float64
	Risk                  risk.Config
	Sizing                sizing.Config
	MinCalibrationSamples int
}

// BacktestResult resume el replay.
type BacktestResult struct {
	Mode            BacktestMode
	Forecasts       int
	Trades          int
	Wins            int
	Losses          int
	InitialBankroll float64
	FinalBankroll   float64
	TotalPnL        float64
	BrierRaw        float64
	BrierReplayed   float64
}

// RunBacktest replaya los forecasts resueltos en orden temporal por el
// evaluador, el sizer y un gateway paper, resolviendo cada posición con el
// resultado conocido.
func RunBacktest(ctx context.Context, store ports.Store, cfg BacktestConfig) (BacktestResult, error) {
	resolved, err := store.ResolvedForecasts(ctx)
	if err != nil {
		return BacktestResult{}, fmt.Errorf("loop.RunBacktest: load history: %w", err)
	}
	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].CreatedAt.Before(resolved[j].CreatedAt)
	})

	sim := ledger.New(cfg.InitialBankroll)
	gateway := execution.NewGateway(sim, nil, nil, domain.ModePaper)
	evaluator := risk.NewEvaluator(cfg.Risk)
	sizer := sizing.NewSizer(cfg.Sizing)
	engine := calibration.NewEngine(cfg.MinCalibrationSamples)

	result := BacktestResult{
		Mode:            cfg.Mode,
		Forecasts:       len(resolved),
		InitialBankroll: cfg.InitialBankroll,
	}

	var rawPreds, replayed, outcomes []float64
	for i, f := range resolved {
		prob := f.CalibratedProbability
		if !f.Calibrated {
			prob = f.RawProbability
		}
		if cfg.Mode == BacktestFull {
			// Solo el pasado: el modelo se ajusta con los forecasts previos.
			engine.Fit(resolved[:i])
			if cal, ok := engine.Calibrate(f.RawProbability, f.Confidence); ok {
				prob = cal
			} else {
				prob = f.RawProbability
			}
		}

		rawPreds = append(rawPreds, f.RawProbability)
		replayed = append(replayed, prob)
		outcomes = append(outcomes, f.OutcomeValue())

		// El histórico no guarda liquidez; el replay asume mercado líquido.
		decision := evaluator.Evaluate(f.MarketID, prob, f.Confidence,
			f.MarketPrice, cfg.Risk.MinLiquidity, sim.View(f.MarketID))
		if !decision.Accepted {
			continue
		}
		order, ok := sizer.Size(decision, sim.Balance())
		if !ok {
			continue
		}
		if _, err := gateway.Execute(ctx, order, f.ID); err != nil {
			return BacktestResult{}, fmt.Errorf("loop.RunBacktest: execute %s: %w", f.MarketID, err)
		}
		pnl, err := sim.Resolve(ctx, f.MarketID, f.Outcome)
		if err != nil {
			return BacktestResult{}, fmt.Errorf("loop.RunBacktest: resolve %s: %w", f.MarketID, err)
		}

		result.Trades++
		if pnl.IsPositive() {
			result.Wins++
		} else {
			result.Losses++
		}
	}

	result.FinalBankroll = sim.Balance()
	result.TotalPnL = result.FinalBankroll - cfg.InitialBankroll
	result.BrierRaw = calibration.BrierScore(rawPreds, outcomes)
	result.BrierReplayed = calibration.BrierScore(replayed, outcomes)
	return result, nil
}
