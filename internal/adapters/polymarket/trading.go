package polymarket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
	"github.com/eeguskiza/Poly-Oracle/internal/ports"
)

const orderPath = "/order"

// SubmitOrder envía una orden al CLOB. Implementa ports.Venue.
// Sin retries: un timeout deja la orden en estado desconocido y sube como
// ErrVenueTimeout para que el gateway reconcilie por idempotencia.
func (c *Client) SubmitOrder(ctx context.Context, order domain.SizedOrder) (ports.VenueReceipt, error) {
	// Ambos lados se compran: YES o NO son tokens distintos del mismo mercado.
	req := orderRequest{
		MarketID: order.MarketID,
		Outcome:  string(order.Side),
		Side:     "BUY",
		Size:     order.Stake / order.Price, // shares del lado elegido
		Price:    order.Price,
	}

	var resp orderResponse
	if err := c.post(ctx, c.clobLimiter, c.clobBase+orderPath, req, &resp); err != nil {
		if errors.Is(err, domain.ErrVenueTimeout) {
			return ports.VenueReceipt{}, err
		}
		return ports.VenueReceipt{}, fmt.Errorf("polymarket.SubmitOrder: %s: %w", order.MarketID, err)
	}

	if !resp.Success {
		slog.Warn("order rejected by venue", "market_id", order.MarketID, "reason", resp.Error)
		return ports.VenueReceipt{Accepted: false, VenueOrderID: resp.OrderID}, nil
	}
	return ports.VenueReceipt{Accepted: true, VenueOrderID: resp.OrderID}, nil
}
