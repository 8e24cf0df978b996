package debate

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

// maxStdDev es la desviación típica máxima alcanzable por 4 valores en [0,1]
// (dos en 0 y dos en 1) — normaliza la dispersión a [0,1].
const maxStdDev = 0.5

// ArbiterPolicy decide la probabilidad raw a partir de la opinión del árbitro
// y las del resto de roles de la ronda final. Política enchufable: la
// ponderación interna del árbitro no es una fórmula fija del agregador.
type ArbiterPolicy func(arbiter domain.Opinion, others []domain.Opinion) float64

// ArbiterAuthoritative es la política por defecto: la probabilidad declarada
// por el árbitro es autoritativa; se asume que ya ponderó al resto.
func ArbiterAuthoritative(arbiter domain.Opinion, _ []domain.Opinion) float64 {
	return arbiter.Probability
}

// Aggregator combina las opiniones de un debate en un único Forecast.
// No re-promedia probabilidades: valida completitud estructural, aplica la
// política del árbitro y calcula la confianza por dispersión.
type Aggregator struct {
	policy ArbiterPolicy
}

// NewAggregator crea un agregador. policy nil → ArbiterAuthoritative.
func NewAggregator(policy ArbiterPolicy) *Aggregator {
	if policy == nil {
		policy = ArbiterAuthoritative
	}
	return &Aggregator{policy: policy}
}

// Aggregate produce el Forecast de un mercado a partir de todas las opiniones
// del debate. Solo la última ronda determina el resultado; las rondas
// anteriores se conservan para auditoría. Exige exactamente una opinión por
// rol en la ronda final; si falta alguno, devuelve ErrIncompleteDebate.
func (a *Aggregator) Aggregate(marketID string, marketPrice float64, opinions []domain.Opinion) (domain.Forecast, error) {
	if len(opinions) == 0 {
		return domain.Forecast{}, fmt.Errorf("debate.Aggregate: %s: no opinions: %w",
			marketID, domain.ErrIncompleteDebate)
	}

	final := 0
	for _, op := range opinions {
		if op.Round > final {
			final = op.Round
		}
	}

	byRole := make(map[domain.Role]domain.Opinion, len(domain.DebateRoles))
	for _, op := range opinions {
		if op.Round != final {
			continue
		}
		if _, dup := byRole[op.Role]; dup {
			return domain.Forecast{}, fmt.Errorf("debate.Aggregate: %s: duplicate %s opinion in round %d: %w",
				marketID, op.Role, final, domain.ErrIncompleteDebate)
		}
		byRole[op.Role] = op
	}

	var others []domain.Opinion
	for _, role := range domain.DebateRoles {
		op, ok := byRole[role]
		if !ok {
			return domain.Forecast{}, fmt.Errorf("debate.Aggregate: %s: round %d missing %s: %w",
				marketID, final, role, domain.ErrIncompleteDebate)
		}
		if role != domain.RoleArbiter {
			others = append(others, op)
		}
	}

	raw := clamp01(a.policy(byRole[domain.RoleArbiter], others))

	probs := make([]float64, 0, len(domain.DebateRoles))
	for _, role := range domain.DebateRoles {
		probs = append(probs, byRole[role].Probability)
	}
	confidence := clamp01(1 - stdDev(probs)/maxStdDev)

	return domain.Forecast{
		ID:             uuid.NewString(),
		MarketID:       marketID,
		RawProbability: raw,
		Confidence:     confidence,
		Opinions:       opinions,
		MarketPrice:    marketPrice,
		CreatedAt:      time.Now().UTC(),
		Outcome:        domain.OutcomeUnresolved,
	}, nil
}

func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
