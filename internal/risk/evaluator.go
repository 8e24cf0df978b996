package risk

import (
	"log/slog"
	"math"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

// Config son los umbrales duros del evaluador.
type Config struct {
	MinEdge          float64
	MinConfidence    float64
	MinLiquidity     float64
	MaxOpenPositions int
	MaxDailyLossPct  float64
}

// PortfolioView es el snapshot de solo lectura del Ledger que necesita el
// evaluador. El Ledger re-valida la unicidad de posición al abrir; este check
// es el primero, no el único.
type PortfolioView struct {
	Bankroll         float64
	OpenPositions    int
	HasPosition      bool    // ya hay posición abierta en este mercado
	DailyRealizedPnL float64 // P&L realizado del día UTC, negativo si pérdida
}

// Evaluator compara la creencia calibrada con el precio del mercado y
// rechaza operaciones que violen los límites de seguridad.
type Evaluator struct {
	cfg Config
}

// NewEvaluator crea un evaluador con los umbrales dados.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate deriva el edge y aplica los checks en orden. El edge es con
// signo: positivo favorece YES, negativo favorece NO (el lado NO usa
// 1−precio y 1−probabilidad simétricamente, así |edge| vale para ambos).
// Cada rechazo lleva código de motivo; aceptar es necesario pero no
// suficiente — el stake final lo acota el sizer.
func (e *Evaluator) Evaluate(marketID string, calibrated, confidence, price, liquidity float64, view PortfolioView) domain.RiskDecision {
	edge := calibrated - price
	side := domain.SideYes
	if edge < 0 {
		side = domain.SideNo
	}

	dec := domain.RiskDecision{
		MarketID:   marketID,
		Edge:       edge,
		Side:       side,
		Calibrated: calibrated,
		Price:      price,
	}

	switch {
	case math.Abs(edge) < e.cfg.MinEdge:
		dec.Reason = domain.ReasonLowEdge
	case confidence < e.cfg.MinConfidence:
		dec.Reason = domain.ReasonLowConfidence
	case liquidity < e.cfg.MinLiquidity:
		dec.Reason = domain.ReasonLowLiquidity
	case view.HasPosition:
		dec.Reason = domain.ReasonPositionExists
	case view.OpenPositions >= e.cfg.MaxOpenPositions:
		dec.Reason = domain.ReasonMaxPositions
	case e.dailyLossExceeded(view):
		dec.Reason = domain.ReasonDailyLoss
	default:
		dec.Accepted = true
	}

	if dec.Accepted {
		slog.Debug("risk accepted",
			"market_id", marketID, "edge", edge, "side", side, "confidence", confidence)
	} else {
		slog.Info("risk rejected",
			"market_id", marketID, "reason", dec.Reason, "edge", edge, "confidence", confidence)
	}
	return dec
}

// dailyLossExceeded comprueba si la pérdida realizada del día ya alcanza el
// límite como fracción del bankroll.
func (e *Evaluator) dailyLossExceeded(view PortfolioView) bool {
	if view.DailyRealizedPnL >= 0 || view.Bankroll <= 0 {
		return false
	}
	return -view.DailyRealizedPnL/view.Bankroll >= e.cfg.MaxDailyLossPct
}
