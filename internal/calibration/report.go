package calibration

import "github.com/eeguskiza/Poly-Oracle/internal/domain"

// reliabilityBuckets divide [0,1] en tramos para la curva de fiabilidad.
const reliabilityBuckets = 10

// Bucket es un tramo de la curva de fiabilidad: predicción media vs
// frecuencia empírica de YES dentro del tramo.
type Bucket struct {
	Low       float64
	High      float64
	Count     int
	AvgPred   float64
	Empirical float64
}

// Report compara la calidad de las probabilidades raw y calibradas sobre el
// conjunto resuelto. Brier más bajo es mejor.
type Report struct {
	TotalForecasts    int
	ResolvedForecasts int
	BrierRaw          float64
	BrierCalibrated   float64
	Improvement       float64 // raw − calibrada; positivo = la calibración ayuda
	ModelVersion      int
	Curve             []Bucket
}

// BrierScore es el error cuadrático medio entre predicciones y resultados
// binarios. Devuelve 0 con entrada vacía.
func BrierScore(preds, outcomes []float64) float64 {
	if len(preds) == 0 || len(preds) != len(outcomes) {
		return 0
	}
	var sum float64
	for i := range preds {
		d := preds[i] - outcomes[i]
		sum += d * d
	}
	return sum / float64(len(preds))
}

// Score genera el informe de calibración sobre los forecasts resueltos.
// Forecasts sin calibrar puntúan con su probabilidad raw en ambos lados,
// así el Brier es invariante bajo calibración identidad.
func (e *Engine) Score(total int, resolved []domain.Forecast) Report {
	var rawPreds, calPreds, outcomes []float64
	for _, f := range resolved {
		if !f.Resolved() {
			continue
		}
		rawPreds = append(rawPreds, f.RawProbability)
		cal := f.RawProbability
		if f.Calibrated {
			cal = f.CalibratedProbability
		}
		calPreds = append(calPreds, cal)
		outcomes = append(outcomes, f.OutcomeValue())
	}

	rep := Report{
		TotalForecasts:    total,
		ResolvedForecasts: len(outcomes),
		BrierRaw:          BrierScore(rawPreds, outcomes),
		BrierCalibrated:   BrierScore(calPreds, outcomes),
		ModelVersion:      e.ModelVersion(),
		Curve:             reliabilityCurve(calPreds, outcomes),
	}
	rep.Improvement = rep.BrierRaw - rep.BrierCalibrated
	return rep
}

// reliabilityCurve agrupa las predicciones en tramos y calcula la frecuencia
// empírica por tramo.
func reliabilityCurve(preds, outcomes []float64) []Bucket {
	buckets := make([]Bucket, reliabilityBuckets)
	width := 1.0 / reliabilityBuckets
	for i := range buckets {
		buckets[i].Low = float64(i) * width
		buckets[i].High = buckets[i].Low + width
	}

	for i, p := range preds {
		idx := int(p / width)
		if idx >= reliabilityBuckets {
			idx = reliabilityBuckets - 1
		}
		buckets[idx].Count++
		buckets[idx].AvgPred += p
		buckets[idx].Empirical += outcomes[i]
	}

	out := buckets[:0]
	for _, b := range buckets {
		if b.Count == 0 {
			continue
		}
		b.AvgPred /= float64(b.Count)
		b.Empirical /= float64(b.Count)
		out = append(out, b)
	}
	return out
}
