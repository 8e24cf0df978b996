package ledger

// ledger.go — registro autoritativo de bankroll, posiciones y trades.
//
// Disciplina single-writer: un mutex serializa toda mutación, así dos ciclos
// concurrentes no pueden pasar ambos el check de "sin posición abierta" y
// abrir las dos. El estado canónico vive en memoria y cada mutación se
// persiste antes de darse por buena; un fallo del store devuelve
// ErrPersistence y el loop debe parar. Con store nil el ledger opera solo en
// memoria — runs simulados independientes (backtests) en el mismo proceso.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
	"github.com/eeguskiza/Poly-Oracle/internal/ports"
	"github.com/eeguskiza/Poly-Oracle/internal/risk"
)

// Snapshot es la vista de solo lectura del ledger para informes.
type Snapshot struct {
	Bankroll      domain.BankrollState
	OpenPositions []domain.Position
	DailyPnL      decimal.Decimal
}

// Ledger es el único componente mutado por más de un llamador (gateway y
// resolución del loop). Todas sus operaciones son seguras para concurrencia.
type Ledger struct {
	mu        sync.Mutex
	store     ports.Store // nil → solo memoria
	balance   decimal.Decimal
	realized  decimal.Decimal
	positions map[string]domain.Position // marketID → posición OPEN
	dailyPnL  decimal.Decimal
	day       string // día UTC al que pertenece dailyPnL
}

// New crea un ledger en memoria con el bankroll inicial dado.
func New(initialBankroll float64) *Ledger {
	return &Ledger{
		balance:   decimal.NewFromFloat(initialBankroll),
		positions: make(map[string]domain.Position),
		day:       utcDay(time.Now()),
	}
}

// Load restaura el ledger desde el store: bankroll persistido (o siembra el
// inicial), posiciones abiertas y P&L realizado del día en curso.
func Load(ctx context.Context, store ports.Store, initialBankroll float64) (*Ledger, error) {
	l := New(initialBankroll)
	l.store = store

	state, err := store.Bankroll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger.Load: bankroll: %w", errors.Join(domain.ErrPersistence, err))
	}
	if state != nil {
		l.balance = state.Balance
		l.realized = state.RealizedPnL
	} else {
		if err := store.SaveBankroll(ctx, l.bankrollState()); err != nil {
			return nil, fmt.Errorf("ledger.Load: seed bankroll: %w", errors.Join(domain.ErrPersistence, err))
		}
	}

	open, err := store.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger.Load: open positions: %w", errors.Join(domain.ErrPersistence, err))
	}
	for _, p := range open {
		l.positions[p.MarketID] = p
	}

	daily, err := store.DailyRealizedPnL(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("ledger.Load: daily pnl: %w", errors.Join(domain.ErrPersistence, err))
	}
	l.dailyPnL = decimal.NewFromFloat(daily)

	slog.Info("ledger restored",
		"balance", l.balance.StringFixed(2),
		"open_positions", len(l.positions),
		"daily_pnl", l.dailyPnL.StringFixed(2),
	)
	return l, nil
}

// OpenPosition registra un trade FILLED como posición abierta y debita el
// stake. Falla con ErrDuplicatePosition si ya hay posición abierta para el
// mercado — última línea de defensa, no un aviso.
func (l *Ledger) OpenPosition(ctx context.Context, trade domain.Trade) (domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if trade.Status != domain.TradeFilled {
		return domain.Position{}, fmt.Errorf("ledger.OpenPosition: trade %s not filled (%s)", trade.ID, trade.Status)
	}
	if _, exists := l.positions[trade.MarketID]; exists {
		return domain.Position{}, fmt.Errorf("ledger.OpenPosition: %s: %w", trade.MarketID, domain.ErrDuplicatePosition)
	}

	pos := domain.Position{
		ID:         trade.PositionID,
		MarketID:   trade.MarketID,
		Side:       trade.Side,
		Stake:      trade.Stake,
		EntryPrice: trade.Price,
		OpenedAt:   trade.ExecutedAt,
		Status:     domain.PositionOpen,
	}

	stake := decimal.NewFromFloat(trade.Stake)
	newBalance := l.balance.Sub(stake)
	if newBalance.IsNegative() {
		return domain.Position{}, fmt.Errorf("ledger.OpenPosition: %s: stake %s exceeds balance %s",
			trade.MarketID, stake.StringFixed(2), l.balance.StringFixed(2))
	}

	if l.store != nil {
		state := domain.BankrollState{Balance: newBalance, RealizedPnL: l.realized}
		if err := l.store.OpenPosition(ctx, pos, trade, state); err != nil {
			return domain.Position{}, fmt.Errorf("ledger.OpenPosition: persist: %w", errors.Join(domain.ErrPersistence, err))
		}
	}

	// Commit en memoria solo tras persistir: o todo o nada.
	l.balance = newBalance
	l.positions[trade.MarketID] = pos

	slog.Info("position opened",
		"market_id", pos.MarketID, "side", pos.Side,
		"stake", pos.Stake, "entry_price", pos.EntryPrice,
		"balance", l.balance.StringFixed(2),
	)
	return pos, nil
}

// RecordTrade persiste un trade que no abre posición (rechazado por el
// venue). Los fallidos por timeout no se registran: su estado es desconocido.
func (l *Ledger) RecordTrade(ctx context.Context, trade domain.Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	if err := l.store.SaveTrade(ctx, trade); err != nil {
		return fmt.Errorf("ledger.RecordTrade: %w", errors.Join(domain.ErrPersistence, err))
	}
	return nil
}

// Resolve cierra la posición abierta del mercado con el resultado dado,
// acredita el payoff y actualiza el P&L realizado, todo bajo el mismo lock.
// El balance conserva la propiedad exacta: tras abrir y resolver,
// balance = antes + payoff − stake (victoria) o antes − stake (derrota).
func (l *Ledger) Resolve(ctx context.Context, marketID string, outcome domain.Outcome) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[marketID]
	if !ok {
		return decimal.Zero, fmt.Errorf("ledger.Resolve: no open position for %s", marketID)
	}
	if outcome != domain.OutcomeYes && outcome != domain.OutcomeNo {
		return decimal.Zero, fmt.Errorf("ledger.Resolve: %s: outcome %q not terminal", marketID, outcome)
	}

	stake := decimal.NewFromFloat(pos.Stake)
	payoff := decimal.Zero
	if pos.Won(outcome) {
		// Cada share paga 1: payoff = stake / precio de entrada.
		payoff = stake.Div(decimal.NewFromFloat(pos.EntryPrice))
	}
	pnl := payoff.Sub(stake)

	now := time.Now().UTC()
	newBalance := l.balance.Add(payoff)
	newRealized := l.realized.Add(pnl)
	if l.store != nil {
		pnlF, _ := pnl.Float64()
		state := domain.BankrollState{Balance: newBalance, RealizedPnL: newRealized}
		if err := l.store.ClosePosition(ctx, pos.ID, now, pnlF, state); err != nil {
			return decimal.Zero, fmt.Errorf("ledger.Resolve: close position: %w", errors.Join(domain.ErrPersistence, err))
		}
		if err := l.store.ResolveForecasts(ctx, marketID, outcome); err != nil {
			return decimal.Zero, fmt.Errorf("ledger.Resolve: resolve forecasts: %w", errors.Join(domain.ErrPersistence, err))
		}
	}

	l.balance = newBalance
	l.realized = newRealized
	l.rollDay(now)
	l.dailyPnL = l.dailyPnL.Add(pnl)
	delete(l.positions, marketID)

	slog.Info("position resolved",
		"market_id", marketID, "outcome", outcome,
		"pnl", pnl.StringFixed(2), "balance", l.balance.StringFixed(2),
	)
	return pnl, nil
}

// Snapshot devuelve una copia de solo lectura del estado.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollDay(time.Now().UTC())

	open := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		open = append(open, p)
	}
	return Snapshot{
		Bankroll:      l.bankrollState(),
		OpenPositions: open,
		DailyPnL:      l.dailyPnL,
	}
}

// View devuelve la vista que consume el evaluador de riesgo para un mercado.
func (l *Ledger) View(marketID string) risk.PortfolioView {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollDay(time.Now().UTC())

	_, has := l.positions[marketID]
	bal, _ := l.balance.Float64()
	daily, _ := l.dailyPnL.Float64()
	return risk.PortfolioView{
		Bankroll:         bal,
		OpenPositions:    len(l.positions),
		HasPosition:      has,
		DailyRealizedPnL: daily,
	}
}

// Balance devuelve el balance actual como float para el sizer.
func (l *Ledger) Balance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, _ := l.balance.Float64()
	return bal
}

// OpenMarketIDs devuelve los mercados con posición abierta.
func (l *Ledger) OpenMarketIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.positions))
	for id := range l.positions {
		ids = append(ids, id)
	}
	return ids
}

func (l *Ledger) bankrollState() domain.BankrollState {
	return domain.BankrollState{
		Balance:     l.balance,
		RealizedPnL: l.realized,
	}
}

// rollDay reinicia el acumulador diario al cambiar el día UTC.
func (l *Ledger) rollDay(now time.Time) {
	if d := utcDay(now); d != l.day {
		l.day = d
		l.dailyPnL = decimal.Zero
	}
}

func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
