package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

func halfKelly() Config {
	return Config{KellyFraction: 0.5, MinBet: 1.0, MaxBet: 10.0, MaxPositionPct: 0.10}
}

func yesDecision(edge, price float64) domain.RiskDecision {
	return domain.RiskDecision{
		MarketID: "0xmkt",
		Edge:     edge,
		Side:     domain.SideYes,
		Price:    price,
		Accepted: true,
	}
}

func TestSize_HalfKellyYes(t *testing.T) {
	s := NewSizer(halfKelly())

	// edge 0.12 a precio 0.50: Kelly completo 0.24, half-Kelly 0.12 del
	// bankroll → 12, recortado al 10% del bankroll (10) y a MaxBet (10)
	order, ok := s.Size(yesDecision(0.12, 0.50), 100)

	require.True(t, ok)
	assert.Equal(t, 10.0, order.Stake)
	assert.Equal(t, 10.0, order.MaxStakeCap)
	assert.Equal(t, domain.SideYes, order.Side)
	assert.Equal(t, 0.50, order.Price)
}

func TestSize_UncappedFraction(t *testing.T) {
	cfg := halfKelly()
	cfg.MaxBet = 100
	cfg.MaxPositionPct = 0.50
	s := NewSizer(cfg)

	order, ok := s.Size(yesDecision(0.12, 0.50), 100)

	require.True(t, ok)
	// half-Kelly sin recortes: 0.12 × 100
	assert.InDelta(t, 12.0, order.Stake, 1e-9)
}

func TestSize_NoSideUsesEffectivePrice(t *testing.T) {
	s := NewSizer(halfKelly())

	dec := domain.RiskDecision{
		MarketID: "0xmkt",
		Edge:     -0.15, // creencia 0.30 vs precio 0.45
		Side:     domain.SideNo,
		Price:    0.45,
		Accepted: true,
	}
	order, ok := s.Size(dec, 100)

	require.True(t, ok)
	assert.Equal(t, domain.SideNo, order.Side)
	// precio efectivo del lado NO: 1 − 0.45
	assert.InDelta(t, 0.55, order.Price, 1e-9)
	// Kelly: 0.15/0.45 = 0.333…, half = 0.1667 → recortado a 10
	assert.Equal(t, 10.0, order.Stake)
}

func TestSize_DeclinesBelowMinBet(t *testing.T) {
	s := NewSizer(halfKelly())

	// bankroll diminuto: half-Kelly 0.12 × 5 = 0.6 < MinBet
	_, ok := s.Size(yesDecision(0.12, 0.50), 5)

	assert.False(t, ok)
}

func TestSize_NeverExceedsPositionCap(t *testing.T) {
	s := NewSizer(halfKelly())

	for _, bankroll := range []float64{20, 50, 100, 1000} {
		order, ok := s.Size(yesDecision(0.30, 0.50), bankroll)
		if !ok {
			continue
		}
		assert.LessOrEqual(t, order.Stake, bankroll*0.10)
		assert.LessOrEqual(t, order.Stake, 10.0)
	}
}

func TestSize_ZeroBankrollDeclines(t *testing.T) {
	s := NewSizer(halfKelly())

	_, ok := s.Size(yesDecision(0.12, 0.50), 0)

	assert.False(t, ok)
}

func TestSize_DegeneratePriceDeclines(t *testing.T) {
	s := NewSizer(halfKelly())

	_, ok := s.Size(yesDecision(0.12, 1.0), 100)
	assert.False(t, ok)

	dec := yesDecision(0.12, 0.0)
	dec.Side = domain.SideNo
	dec.Edge = -0.12
	_, ok = s.Size(dec, 100)
	assert.False(t, ok)
}
