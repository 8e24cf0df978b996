package sizing

import (
	"log/slog"
	"math"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

// Config acota el tamaño de las apuestas.
type Config struct {
	KellyFraction  float64 // multiplicador sobre el Kelly completo (0.5 = half-Kelly)
	MinBet         float64
	MaxBet         float64
	MaxPositionPct float64 // fracción máxima del bankroll por posición
}

// Sizer convierte una decisión aceptada en un stake acotado por Kelly
// fraccional. Nunca infla un edge sub-umbral hasta convertirlo en trade:
// por debajo de MinBet declina en vez de redondear hacia arriba.
type Sizer struct {
	cfg Config
}

// NewSizer crea un sizer con los límites dados.
func NewSizer(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size calcula el stake para una decisión aceptada. Devuelve (orden, true)
// o (cero, false) si declina.
//
// Kelly para apuesta binaria a precio p con payoff 1/p − 1 por unidad:
// f* = edge / (1 − p). Para el lado NO se opera sobre el precio efectivo
// 1 − precio_YES con el edge invertido; el evaluador ya eligió el lado, así
// que el edge efectivo que llega aquí nunca es negativo.
func (s *Sizer) Size(dec domain.RiskDecision, bankroll float64) (domain.SizedOrder, bool) {
	effEdge := dec.Edge
	effPrice := dec.Price
	if dec.Side == domain.SideNo {
		effEdge = -dec.Edge
		effPrice = 1 - dec.Price
	}

	if effEdge <= 0 || effPrice <= 0 || effPrice >= 1 || bankroll <= 0 {
		return domain.SizedOrder{}, false
	}

	rawKelly := effEdge / (1 - effPrice)
	fraction := rawKelly * s.cfg.KellyFraction

	maxStake := math.Min(s.cfg.MaxBet, bankroll*s.cfg.MaxPositionPct)
	stake := math.Min(bankroll*fraction, maxStake)

	if stake < s.cfg.MinBet {
		slog.Info("stake below minimum, declining",
			"market_id", dec.MarketID, "stake", stake, "min_bet", s.cfg.MinBet)
		return domain.SizedOrder{}, false
	}

	slog.Debug("position sized",
		"market_id", dec.MarketID,
		"side", dec.Side,
		"raw_kelly", rawKelly,
		"fraction", fraction,
		"stake", stake,
		"cap", maxStake,
	)
	return domain.SizedOrder{
		MarketID:    dec.MarketID,
		Side:        dec.Side,
		Stake:       stake,
		MaxStakeCap: maxStake,
		Price:       effPrice,
	}, true
}
