package ports

import (
	"context"
	"time"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

// Store persiste el estado que debe sobrevivir a un reinicio: histórico de
// forecasts, posiciones/trades y bankroll. El Ledger es el único escritor de
// posiciones, trades y bankroll; el loop escribe forecasts y resoluciones.
type Store interface {
	// --- forecasts (append-only) ---
	SaveForecast(ctx context.Context, f domain.Forecast) error
	ResolveForecasts(ctx context.Context, marketID string, outcome domain.Outcome) error
	ResolvedForecasts(ctx context.Context) ([]domain.Forecast, error)
	ForecastCounts(ctx context.Context) (total, resolved int, err error)

	// --- posiciones ---
	// OpenPosition y ClosePosition son transaccionales: la posición, su trade
	// y el bankroll resultante se escriben juntos o no se escribe nada.
	OpenPosition(ctx context.Context, p domain.Position, t domain.Trade, b domain.BankrollState) error
	ClosePosition(ctx context.Context, positionID string, closedAt time.Time, pnl float64, b domain.BankrollState) error
	OpenPositions(ctx context.Context) ([]domain.Position, error)

	// --- trades (append-only) ---
	SaveTrade(ctx context.Context, t domain.Trade) error
	// TradeByDecision devuelve el trade comprometido (FILLED o REJECTED) de
	// una decisión, o nil si la decisión no llegó a comprometerse.
	TradeByDecision(ctx context.Context, decisionID string) (*domain.Trade, error)
	TradeHistory(ctx context.Context, limit int) ([]domain.Trade, error)

	// --- bankroll ---
	Bankroll(ctx context.Context) (*domain.BankrollState, error)
	SaveBankroll(ctx context.Context, b domain.BankrollState) error
	DailyRealizedPnL(ctx context.Context, day time.Time) (float64, error)

	Close() error
}
