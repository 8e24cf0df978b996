package calibration

// isotonic.go — regresión isotónica por pool-adjacent-violators (PAV).
//
// Ajusta un mapeo monótono no-decreciente de probabilidad raw a frecuencia
// empírica sobre pares (predicción, resultado 0/1). La salida se recorta a
// [0.01, 0.99] para evitar calibraciones extremas con muestras pequeñas.

import "sort"

const (
	outputFloor = 0.01
	outputCeil  = 0.99
)

// Model es una curva de calibración ajustada. Inmutable tras Fit; los
// lectores la reemplazan de forma atómica vía Engine.
type Model struct {
	Version int
	Samples int
	xs      []float64 // predicciones ordenadas
	ys      []float64 // valores ajustados, no-decrecientes
}

// sample es un par (predicción, resultado binario).
type sample struct {
	x float64
	y float64
}

// fitIsotonic ajusta PAV sobre los pares dados. Requiere len(pairs) > 0.
func fitIsotonic(pairs []sample, version int) *Model {
	sorted := make([]sample, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].x < sorted[j].x })

	// Bloques PAV: cada bloque lleva la media de sus y y su peso.
	type block struct {
		mean   float64
		weight float64
		lastX  float64
	}
	blocks := make([]block, 0, len(sorted))
	for _, p := range sorted {
		blocks = append(blocks, block{mean: p.y, weight: 1, lastX: p.x})
		// Fusionar mientras el bloque nuevo viole la monotonía.
		for len(blocks) > 1 {
			n := len(blocks)
			if blocks[n-2].mean <= blocks[n-1].mean {
				break
			}
			w := blocks[n-2].weight + blocks[n-1].weight
			m := (blocks[n-2].mean*blocks[n-2].weight + blocks[n-1].mean*blocks[n-1].weight) / w
			blocks = blocks[:n-1]
			blocks[n-2] = block{mean: m, weight: w, lastX: p.x}
		}
	}

	xs := make([]float64, len(blocks))
	ys := make([]float64, len(blocks))
	for i, b := range blocks {
		xs[i] = b.lastX
		ys[i] = clampOutput(b.mean)
	}
	return &Model{Version: version, Samples: len(pairs), xs: xs, ys: ys}
}

// Predict aplica la curva: función escalonada no-decreciente, recortada a
// [0.01, 0.99]. Entradas por debajo del primer punto devuelven su valor.
func (m *Model) Predict(raw float64) float64 {
	if len(m.xs) == 0 {
		return raw
	}
	// Mayor xs[i] ≤ raw; si raw queda por debajo de todos, primer valor.
	i := sort.SearchFloat64s(m.xs, raw)
	if i < len(m.xs) && m.xs[i] == raw {
		return m.ys[i]
	}
	if i == 0 {
		return m.ys[0]
	}
	return m.ys[i-1]
}

func clampOutput(v float64) float64 {
	if v < outputFloor {
		return outputFloor
	}
	if v > outputCeil {
		return outputCeil
	}
	return v
}
