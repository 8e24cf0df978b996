package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
	"github.com/eeguskiza/Poly-Oracle/internal/ledger"
	"github.com/eeguskiza/Poly-Oracle/internal/ports"
)

// Gateway compromete órdenes dimensionadas como trades, en modo paper
// (fill sintético, sin llamada externa) o live (orden real al venue).
//
// Idempotente por identidad de decisión: antes de enviar nada consulta si ya
// existe un trade comprometido para el mismo decision_id — un retry tras
// timeout nunca puede duplicar el compromiso. Una ejecución fallida jamás
// toca el bankroll.
type Gateway struct {
	ledger *ledger.Ledger
	store  ports.Store // nil en backtests en memoria
	venue  ports.Venue // solo se usa en modo live
	mode   domain.Mode
}

// NewGateway crea un gateway en el modo dado.
func NewGateway(l *ledger.Ledger, store ports.Store, venue ports.Venue, mode domain.Mode) *Gateway {
	return &Gateway{ledger: l, store: store, venue: venue, mode: mode}
}

// Mode devuelve el modo de ejecución del gateway.
func (g *Gateway) Mode() domain.Mode { return g.mode }

// Execute compromete la orden. decisionID es la identidad de la decisión
// (el ID del forecast que la originó).
func (g *Gateway) Execute(ctx context.Context, order domain.SizedOrder, decisionID string) (domain.Trade, error) {
	// Check de idempotencia: ¿ya hay trade para esta decisión?
	if g.store != nil {
		existing, err := g.store.TradeByDecision(ctx, decisionID)
		if err != nil {
			return domain.Trade{}, fmt.Errorf("execution.Execute: idempotency check: %w",
				errors.Join(domain.ErrPersistence, err))
		}
		if existing != nil {
			slog.Info("trade already committed for decision, skipping",
				"decision_id", decisionID, "trade_id", existing.ID, "status", existing.Status)
			return *existing, nil
		}
	}

	switch g.mode {
	case domain.ModeLive:
		return g.executeLive(ctx, order, decisionID)
	default:
		return g.executePaper(ctx, order, decisionID)
	}
}

// executePaper sintetiza un fill al último precio conocido, sin latencia
// ni llamada externa. En paper los errores de venue no existen.
func (g *Gateway) executePaper(ctx context.Context, order domain.SizedOrder, decisionID string) (domain.Trade, error) {
	trade := newTrade(order, decisionID, domain.ModePaper)
	trade.Status = domain.TradeFilled

	if _, err := g.ledger.OpenPosition(ctx, trade); err != nil {
		return domain.Trade{}, fmt.Errorf("execution.Execute: paper fill: %w", err)
	}
	slog.Info("paper fill",
		"market_id", order.MarketID, "side", order.Side,
		"stake", order.Stake, "price", order.Price,
	)
	return trade, nil
}

// executeLive envía la orden al venue y mapea la confirmación.
// Timeout → el estado de la orden es desconocido: no se registra nada y el
// error obliga a pasar por el check de idempotencia antes de reintentar.
func (g *Gateway) executeLive(ctx context.Context, order domain.SizedOrder, decisionID string) (domain.Trade, error) {
	receipt, err := g.venue.SubmitOrder(ctx, order)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrVenueTimeout) {
			return domain.Trade{}, fmt.Errorf("execution.Execute: %s: %w", order.MarketID, domain.ErrVenueTimeout)
		}
		// Fallo de transporte: la orden nunca llegó al venue. Queda en el
		// histórico como FAILED pero no bloquea un reintento de la decisión.
		trade := newTrade(order, decisionID, domain.ModeLive)
		trade.Status = domain.TradeFailed
		trade.PositionID = ""
		if recErr := g.ledger.RecordTrade(ctx, trade); recErr != nil {
			return trade, recErr
		}
		return trade, fmt.Errorf("execution.Execute: submit %s: %w", order.MarketID, err)
	}

	trade := newTrade(order, decisionID, domain.ModeLive)
	trade.VenueOrderID = receipt.VenueOrderID

	if !receipt.Accepted {
		trade.Status = domain.TradeRejected
		trade.PositionID = "" // sin posición: el rechazo no muta el bankroll
		if err := g.ledger.RecordTrade(ctx, trade); err != nil {
			return trade, err
		}
		return trade, fmt.Errorf("execution.Execute: %s: %w", order.MarketID, domain.ErrVenueRejected)
	}

	trade.Status = domain.TradeFilled
	if _, err := g.ledger.OpenPosition(ctx, trade); err != nil {
		return domain.Trade{}, fmt.Errorf("execution.Execute: live fill: %w", err)
	}
	slog.Info("live fill",
		"market_id", order.MarketID, "side", order.Side,
		"stake", order.Stake, "venue_order_id", receipt.VenueOrderID,
	)
	return trade, nil
}

func newTrade(order domain.SizedOrder, decisionID string, mode domain.Mode) domain.Trade {
	return domain.Trade{
		ID:         uuid.NewString(),
		PositionID: uuid.NewString(),
		MarketID:   order.MarketID,
		DecisionID: decisionID,
		Side:       order.Side,
		Stake:      order.Stake,
		Price:      order.Price,
		Mode:       mode,
		ExecutedAt: time.Now().UTC(),
	}
}
