package ports

import (
	"context"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

// MarketProvider expone los datos de mercado del venue.
type MarketProvider interface {
	// FetchActiveMarkets devuelve los mercados binarios activos candidatos.
	FetchActiveMarkets(ctx context.Context) ([]domain.Market, error)

	// FetchMarket devuelve el estado actual de un mercado concreto,
	// incluido su resultado si ya resolvió.
	FetchMarket(ctx context.Context, marketID string) (domain.Market, error)
}

// VenueReceipt es la confirmación (o rechazo) de una orden enviada.
type VenueReceipt struct {
	Accepted     bool
	VenueOrderID string
}

// Venue envía órdenes reales. Solo se usa en modo live; el modo paper
// sintetiza fills sin llamada externa.
type Venue interface {
	SubmitOrder(ctx context.Context, order domain.SizedOrder) (VenueReceipt, error)
}
