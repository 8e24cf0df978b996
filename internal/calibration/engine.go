package calibration

import (
	"log/slog"
	"sync/atomic"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

// DefaultMinSamples es el mínimo de forecasts resueltos para ajustar curva.
// Por debajo, Calibrate devuelve la probabilidad raw sin tocar (identidad)
// y marca el forecast como no calibrado — modo degradado, no un error.
const DefaultMinSamples = 50

// Engine mantiene el modelo de calibración vigente. El reemplazo en Fit es
// atómico: los lectores ven el modelo viejo o el nuevo, nunca uno a medias.
type Engine struct {
	minSamples int
	model      atomic.Pointer[Model]
	version    atomic.Int64
}

// NewEngine crea un engine. minSamples ≤ 0 → DefaultMinSamples.
func NewEngine(minSamples int) *Engine {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Engine{minSamples: minSamples}
}

// Fit reconstruye el modelo desde los forecasts con resultado conocido.
// Idempotente para el mismo conjunto resuelto; nunca toca probabilidades raw
// ya registradas. Con menos muestras que el mínimo, retira el modelo y el
// engine queda en calibración identidad.
func (e *Engine) Fit(resolved []domain.Forecast) {
	pairs := make([]sample, 0, len(resolved))
	for _, f := range resolved {
		if !f.Resolved() {
			continue
		}
		pairs = append(pairs, sample{x: f.RawProbability, y: f.OutcomeValue()})
	}

	if len(pairs) < e.minSamples {
		if e.model.Swap(nil) != nil {
			slog.Info("calibration model retired", "resolved", len(pairs), "min_samples", e.minSamples)
		}
		return
	}

	version := int(e.version.Add(1))
	model := fitIsotonic(pairs, version)
	e.model.Store(model)
	slog.Info("calibration model fitted", "version", version, "samples", len(pairs))
}

// Calibrate aplica el modelo vigente a una probabilidad raw.
// Devuelve (calibrada, true) con modelo ajustado, o (raw, false) en modo
// identidad. Tras la curva aplica el encogimiento de extremos: predicciones
// >0.9 o <0.1 se acercan a 0.5 en proporción a la falta de confianza.
func (e *Engine) Calibrate(raw, confidence float64) (float64, bool) {
	m := e.model.Load()
	if m == nil {
		return raw, false
	}
	return shrinkExtremes(m.Predict(raw), confidence), true
}

// Ready indica si hay modelo ajustado.
func (e *Engine) Ready() bool {
	return e.model.Load() != nil
}

// ModelVersion devuelve la versión del modelo vigente, 0 si identidad.
func (e *Engine) ModelVersion() int {
	if m := e.model.Load(); m != nil {
		return m.Version
	}
	return 0
}

// shrinkExtremes acerca predicciones extremas a 0.5 según la confianza.
func shrinkExtremes(p, confidence float64) float64 {
	factor := 0.1 * (1 - confidence)
	switch {
	case p > 0.9:
		return p - (p-0.5)*factor
	case p < 0.1:
		return p + (0.5-p)*factor
	default:
		return p
	}
}
