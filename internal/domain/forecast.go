package domain

import "time"

// Outcome es la resolución de un mercado binario.
type Outcome string

const (
	OutcomeYes        Outcome = "YES"
	OutcomeNo         Outcome = "NO"
	OutcomeUnresolved Outcome = "UNRESOLVED"
)

// Forecast es el resultado de un debate completo sobre un mercado.
// Histórico append-only: nunca se borra. La probabilidad raw no se toca
// después de crearse; la calibración solo rellena CalibratedProbability,
// y la resolución solo rellena Outcome.
type Forecast struct {
	ID                    string
	MarketID              string
	RawProbability        float64
	CalibratedProbability float64
	Calibrated            bool // false → identidad (datos insuficientes)
	Confidence            float64
	Opinions              []Opinion // todas las rondas, en orden
	MarketPrice           float64   // precio YES en el momento del forecast
	CreatedAt             time.Time
	Outcome               Outcome
}

// FinalRound devuelve el índice de ronda más alto presente en las opiniones.
func (f Forecast) FinalRound() int {
	last := 0
	for _, op := range f.Opinions {
		if op.Round > last {
			last = op.Round
		}
	}
	return last
}

// Resolved indica si el mercado ya tiene resultado conocido.
func (f Forecast) Resolved() bool {
	return f.Outcome == OutcomeYes || f.Outcome == OutcomeNo
}

// OutcomeValue devuelve el resultado como 0/1 para métricas de calibración.
// Solo válido si Resolved().
func (f Forecast) OutcomeValue() float64 {
	if f.Outcome == OutcomeYes {
		return 1
	}
	return 0
}
