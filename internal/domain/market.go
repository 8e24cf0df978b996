package domain

import "time"

// Market es la vista del core de un mercado binario de predicción.
type Market struct {
	ID        string
	Question  string
	Slug      string
	Price     float64 // probabilidad implícita de YES según el book
	Liquidity float64
	Volume    float64
	EndDate   time.Time
	Active    bool
	Closed    bool
	Outcome   Outcome // UNRESOLVED hasta que el venue publique resultado
}

// HoursToResolution devuelve las horas hasta el cierre del mercado.
func (m Market) HoursToResolution(now time.Time) float64 {
	if m.EndDate.IsZero() {
		return 0
	}
	return m.EndDate.Sub(now).Hours()
}
