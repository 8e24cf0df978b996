package loop

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

// SelectionConfig define el contrato de selección de mercados: qué mercados
// son viables para pasar por el pipeline.
type SelectionConfig struct {
	MinLiquidity         float64
	MinVolume            float64
	MinHoursToResolution float64
	MaxHoursToResolution float64 // 0 → sin tope
	MinPrice             float64 // descartar mercados ya casi decididos
	MaxPrice             float64
}

// selectMarkets filtra los mercados activos por viabilidad y devuelve los
// mejores por liquidez, hasta MaxMarketsPerCycle. Mercados con posición
// abierta se saltan aquí: el evaluador los rechazaría igualmente, pero no
// merece la pena gastarles un debate.
func (c *Controller) selectMarkets(ctx context.Context) ([]domain.Market, error) {
	all, err := c.markets.FetchActiveMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("loop.selectMarkets: %w", err)
	}

	now := time.Now().UTC()
	viable := make([]domain.Market, 0, len(all))
	for _, m := range all {
		if !c.viable(m, now) {
			continue
		}
		if c.ledger.View(m.ID).HasPosition {
			continue
		}
		viable = append(viable, m)
	}

	sort.Slice(viable, func(i, j int) bool {
		return viable[i].Liquidity > viable[j].Liquidity
	})
	if len(viable) > c.cfg.MaxMarketsPerCycle {
		viable = viable[:c.cfg.MaxMarketsPerCycle]
	}
	return viable, nil
}

func (c *Controller) viable(m domain.Market, now time.Time) bool {
	sel := c.cfg.Selection
	if !m.Active || m.Closed {
		return false
	}
	if m.Liquidity < sel.MinLiquidity || m.Volume < sel.MinVolume {
		return false
	}
	if m.Price < sel.MinPrice || m.Price > sel.MaxPrice {
		return false
	}
	hours := m.HoursToResolution(now)
	if hours < sel.MinHoursToResolution {
		return false
	}
	if sel.MaxHoursToResolution > 0 && hours > sel.MaxHoursToResolution {
		return false
	}
	return true
}
