package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

const (
	gammaMarketsPath = "/markets"
	gammaPageSize    = 100
)

// FetchActiveMarkets devuelve los mercados binarios activos de Gamma.
// Implementa ports.MarketProvider.
func (c *Client) FetchActiveMarkets(ctx context.Context) ([]domain.Market, error) {
	url := fmt.Sprintf("%s%s?active=true&closed=false&limit=%d&order=liquidity&ascending=false",
		c.gammaBase, gammaMarketsPath, gammaPageSize)

	var resp gammaMarketsResponse
	if err := c.get(ctx, c.gammaLimiter, url, &resp); err != nil {
		return nil, fmt.Errorf("polymarket.FetchActiveMarkets: %w", err)
	}

	markets := make([]domain.Market, 0, len(resp))
	for _, gm := range resp {
		m, ok := toDomainMarket(gm)
		if !ok {
			continue
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// FetchMarket devuelve el estado actual de un mercado, incluido su resultado
// si ya resolvió.
func (c *Client) FetchMarket(ctx context.Context, marketID string) (domain.Market, error) {
	url := fmt.Sprintf("%s%s?condition_ids=%s", c.gammaBase, gammaMarketsPath, marketID)

	var resp gammaMarketsResponse
	if err := c.get(ctx, c.gammaLimiter, url, &resp); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket.FetchMarket: %s: %w", marketID, err)
	}
	if len(resp) == 0 {
		return domain.Market{}, fmt.Errorf("polymarket.FetchMarket: %s: not found", marketID)
	}

	m, ok := toDomainMarket(resp[0])
	if !ok {
		return domain.Market{}, fmt.Errorf("polymarket.FetchMarket: %s: not a binary market", marketID)
	}
	return m, nil
}

// toDomainMarket mapea un gammaMarket a domain.Market. Descarta mercados que
// no sean binarios Yes/No.
func toDomainMarket(gm gammaMarket) (domain.Market, bool) {
	outcomes, err := decodeStringArray(gm.Outcomes)
	if err != nil || len(outcomes) != 2 || outcomes[0] != "Yes" || outcomes[1] != "No" {
		return domain.Market{}, false
	}
	prices, err := decodeFloatArray(gm.OutcomePrices)
	if err != nil || len(prices) != 2 {
		return domain.Market{}, false
	}

	m := domain.Market{
		ID:       gm.ConditionID,
		Question: gm.Question,
		Slug:     gm.Slug,
		Price:    prices[0],
		Active:   gm.Active,
		Closed:   gm.Closed,
		Outcome:  domain.OutcomeUnresolved,
	}
	m.Liquidity, _ = gm.Liquidity.Float64()
	m.Volume, _ = gm.Volume.Float64()
	if gm.EndDateISO != "" {
		if t, err := time.Parse(time.RFC3339, gm.EndDateISO); err == nil {
			m.EndDate = t
		} else if t, err := time.Parse("2006-01-02", gm.EndDateISO); err == nil {
			m.EndDate = t
		}
	}

	// Un mercado cerrado con resolución publicada fija el outcome por el
	// precio terminal del lado YES.
	if gm.Closed && gm.UmaResolution == "resolved" {
		if prices[0] >= 0.5 {
			m.Outcome = domain.OutcomeYes
		} else {
			m.Outcome = domain.OutcomeNo
		}
	}
	return m, true
}

func decodeStringArray(raw string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeFloatArray(raw string) ([]float64, error) {
	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		return nil, err
	}
	out := make([]float64, len(strs))
	for i, s := range strs {
		var f float64
		if err := json.Unmarshal([]byte(s), &f); err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
