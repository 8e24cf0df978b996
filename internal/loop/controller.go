package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eeguskiza/Poly-Oracle/internal/calibration"
	"github.com/eeguskiza/Poly-Oracle/internal/debate"
	"github.com/eeguskiza/Poly-Oracle/internal/domain"
	"github.com/eeguskiza/Poly-Oracle/internal/execution"
	"github.com/eeguskiza/Poly-Oracle/internal/ledger"
	"github.com/eeguskiza/Poly-Oracle/internal/ports"
	"github.com/eeguskiza/Poly-Oracle/internal/risk"
	"github.com/eeguskiza/Poly-Oracle/internal/sizing"
)

// State es el estado del controlador dentro de un ciclo.
type State string

const (
	StateIdle            State = "idle"
	StateScanning        State = "scanning"
	StateAwaitingContext State = "awaiting_context"
	StateDebating        State = "debating"
	StateAggregating     State = "aggregating"
	StateCalibrating     State = "calibrating"
	StateEvaluating      State = "evaluating"
	StateSizing          State = "sizing"
	StateExecuting       State = "executing"
	StateResolving       State = "resolving"
)

// ErrTooManyFailures: demasiados ciclos fallidos seguidos; parada fatal.
var ErrTooManyFailures = errors.New("consecutive cycle failure limit reached")

// Config controla el loop.
type Config struct {
	Interval               time.Duration
	MaxMarketsPerCycle     int
	MaxConsecutiveFailures int
	Selection              SelectionConfig
}

// Controller conduce ciclos repetidos del pipeline forecast→trade sobre el
// conjunto cambiante de mercados. Cada mercado es una pasada por el ciclo;
// un fallo en cualquier estado vuelve a Idle para ese mercado sin abortar el
// loop, tras registrarlo. La resolución de posiciones abiertas se comprueba
// una vez por iteración externa, se abran trades o no.
type Controller struct {
	cfg        Config
	markets    ports.MarketProvider
	assembler  ports.ContextAssembler
	runner     *debate.Runner
	aggregator *debate.Aggregator
	engine     *calibration.Engine
	evaluator  *risk.Evaluator
	sizer      *sizing.Sizer
	gateway    *execution.Gateway
	ledger     *ledger.Ledger
	store      ports.Store

	state    State
	failures int // ciclos fallidos consecutivos
}

// NewController crea el controlador con todas las dependencias inyectadas.
func NewController(
	cfg Config,
	markets ports.MarketProvider,
	assembler ports.ContextAssembler,
	runner *debate.Runner,
	aggregator *debate.Aggregator,
	engine *calibration.Engine,
	evaluator *risk.Evaluator,
	sizer *sizing.Sizer,
	gateway *execution.Gateway,
	l *ledger.Ledger,
	store ports.Store,
) *Controller {
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 5
	}
	if cfg.MaxMarketsPerCycle <= 0 {
		cfg.MaxMarketsPerCycle = 5
	}
	return &Controller{
		cfg:        cfg,
		markets:    markets,
		assembler:  assembler,
		runner:     runner,
		aggregator: aggregator,
		engine:     engine,
		evaluator:  evaluator,
		sizer:      sizer,
		gateway:    gateway,
		ledger:     l,
		store:      store,
		state:      StateIdle,
	}
}

// Run ejecuta el loop hasta que el contexto se cancele o un error fatal lo
// pare. La señal de shutdown se observa entre ciclos, nunca a mitad de una
// mutación del ledger.
func (c *Controller) Run(ctx context.Context) error {
	slog.Info("trading loop starting",
		"interval", c.cfg.Interval,
		"mode", c.gateway.Mode(),
		"max_markets", c.cfg.MaxMarketsPerCycle,
	)

	if err := c.refitCalibration(ctx); err != nil {
		return err
	}

	if err := c.iterateLoop(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("trading loop stopped")
			return nil
		case <-ticker.C:
			if err := c.iterateLoop(ctx); err != nil {
				return err
			}
		}
	}
}

// iterateLoop ejecuta una iteración tragándose los fallos de ciclo
// recuperables: en modo continuo solo paran el loop la persistencia rota y
// la escalada de fallos consecutivos.
func (c *Controller) iterateLoop(ctx context.Context) error {
	err := c.iterate(ctx)
	var cycleErr *CycleError
	if errors.As(err, &cycleErr) {
		return nil
	}
	return err
}

// RunOnce ejecuta exactamente una iteración completa sobre el conjunto de
// mercados seleccionado y termina. Devuelve error si algún ciclo falló, para
// que el proceso salga con código distinto de cero.
func (c *Controller) RunOnce(ctx context.Context) error {
	if err := c.refitCalibration(ctx); err != nil {
		return err
	}
	return c.iterate(ctx)
}

// iterate es una iteración externa: resolver posiciones abiertas, seleccionar
// mercados y pasar cada uno por el ciclo. Los fallos por mercado se aíslan;
// solo la persistencia rota o la escalada de fallos consecutivos suben.
func (c *Controller) iterate(ctx context.Context) error {
	start := time.Now()

	if err := c.resolveOpenPositions(ctx); err != nil {
		return err
	}

	c.setState(StateScanning)
	markets, err := c.selectMarkets(ctx)
	c.setState(StateIdle)
	if err != nil {
		slog.Error("market selection failed", "err", err)
		if esc := c.recordFailure(err); esc != nil {
			return esc
		}
		return failedOnly(err)
	}

	var failed error
	for _, market := range markets {
		if err := c.runCycle(ctx, market); err != nil {
			if errors.Is(err, domain.ErrPersistence) {
				return err
			}
			slog.Error("cycle failed", "market_id", market.ID, "err", err)
			if esc := c.recordFailure(err); esc != nil {
				return esc
			}
			failed = err
			continue
		}
		c.failures = 0
	}

	slog.Info("loop iteration complete",
		"markets", len(markets),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return failedOnly(failed)
}

// runCycle pasa un mercado por el pipeline completo. Un rechazo de riesgo o
// un stake bajo mínimo terminan el ciclo limpiamente: son decisiones, no
// fallos.
func (c *Controller) runCycle(ctx context.Context, market domain.Market) error {
	defer c.setState(StateIdle)

	c.setState(StateAwaitingContext)
	debateCtx, err := c.assembler.Assemble(ctx, market)
	if err != nil {
		return fmt.Errorf("loop.runCycle: assemble context: %w", err)
	}

	c.setState(StateDebating)
	opinions, err := c.runner.Run(ctx, market.ID, debateCtx)
	if err != nil {
		return fmt.Errorf("loop.runCycle: debate: %w", err)
	}

	c.setState(StateAggregating)
	forecast, err := c.aggregator.Aggregate(market.ID, market.Price, opinions)
	if err != nil {
		return fmt.Errorf("loop.runCycle: aggregate: %w", err)
	}

	c.setState(StateCalibrating)
	forecast.CalibratedProbability, forecast.Calibrated = c.engine.Calibrate(
		forecast.RawProbability, forecast.Confidence)
	if !forecast.Calibrated {
		forecast.CalibratedProbability = forecast.RawProbability
	}
	if err := c.store.SaveForecast(ctx, forecast); err != nil {
		return fmt.Errorf("loop.runCycle: save forecast: %w", errors.Join(domain.ErrPersistence, err))
	}

	c.setState(StateEvaluating)
	decision := c.evaluator.Evaluate(
		market.ID,
		forecast.CalibratedProbability,
		forecast.Confidence,
		market.Price,
		market.Liquidity,
		c.ledger.View(market.ID),
	)
	if !decision.Accepted {
		return nil
	}

	c.setState(StateSizing)
	order, ok := c.sizer.Size(decision, c.ledger.Balance())
	if !ok {
		return nil
	}

	c.setState(StateExecuting)
	trade, err := c.gateway.Execute(ctx, order, forecast.ID)
	if err != nil {
		return fmt.Errorf("loop.runCycle: execute: %w", err)
	}

	slog.Info("cycle traded",
		"market_id", market.ID,
		"side", trade.Side,
		"stake", trade.Stake,
		"status", trade.Status,
		"raw", forecast.RawProbability,
		"calibrated", forecast.CalibratedProbability,
	)
	return nil
}

// resolveOpenPositions consulta el venue por cada posición abierta y cierra
// las que ya tengan resultado. Tras cerrar alguna, reajusta la calibración:
// hay forecasts resueltos nuevos.
func (c *Controller) resolveOpenPositions(ctx context.Context) error {
	c.setState(StateResolving)
	defer c.setState(StateIdle)

	resolvedAny := false
	for _, marketID := range c.ledger.OpenMarketIDs() {
		market, err := c.markets.FetchMarket(ctx, marketID)
		if err != nil {
			slog.Warn("resolution check failed", "market_id", marketID, "err", err)
			continue
		}
		if market.Outcome != domain.OutcomeYes && market.Outcome != domain.OutcomeNo {
			continue
		}
		if _, err := c.ledger.Resolve(ctx, marketID, market.Outcome); err != nil {
			if errors.Is(err, domain.ErrPersistence) {
				return err
			}
			slog.Error("resolution failed", "market_id", marketID, "err", err)
			continue
		}
		resolvedAny = true
	}

	if resolvedAny {
		return c.refitCalibration(ctx)
	}
	return nil
}

// refitCalibration reconstruye el modelo desde el histórico resuelto.
func (c *Controller) refitCalibration(ctx context.Context) error {
	resolved, err := c.store.ResolvedForecasts(ctx)
	if err != nil {
		return fmt.Errorf("loop.refitCalibration: %w", errors.Join(domain.ErrPersistence, err))
	}
	c.engine.Fit(resolved)
	return nil
}

// recordFailure cuenta un fallo de ciclo y escala si se supera el límite.
func (c *Controller) recordFailure(cause error) error {
	c.failures++
	if c.failures >= c.cfg.MaxConsecutiveFailures {
		return fmt.Errorf("loop: %d consecutive failures (last: %v): %w",
			c.failures, cause, ErrTooManyFailures)
	}
	return nil
}

// setState registra la transición para observabilidad.
func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	slog.Debug("state transition", "from", c.state, "to", s)
	c.state = s
}

// failedOnly envuelve el último fallo de ciclo de una iteración para que
// RunOnce salga con error sin tumbar el loop continuo (Run ignora este tipo).
func failedOnly(err error) error {
	if err == nil {
		return nil
	}
	return &CycleError{cause: err}
}

// CycleError marca un fallo de ciclo recuperable (relevante solo en --once).
type CycleError struct{ cause error }

func (e *CycleError) Error() string { return fmt.Sprintf("cycle failed: %v", e.cause) }
func (e *CycleError) Unwrap() error { return e.cause }
