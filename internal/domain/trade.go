package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side es el lado de una apuesta binaria.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// RejectReason es el código de rechazo de una decisión de riesgo.
// Nunca un booleano pelado: cada rechazo lleva su motivo para observabilidad.
type RejectReason string

const (
	ReasonNone           RejectReason = ""
	ReasonLowEdge        RejectReason = "low_edge"
	ReasonLowConfidence  RejectReason = "low_confidence"
	ReasonLowLiquidity   RejectReason = "low_liquidity"
	ReasonPositionExists RejectReason = "position_exists"
	ReasonMaxPositions   RejectReason = "max_positions"
	ReasonDailyLoss      RejectReason = "daily_loss_limit"
)

// RiskDecision es el veredicto del evaluador para un mercado en un ciclo.
// Derivada, no persistida: solo vive lo que dura el ciclo (y el log de auditoría).
type RiskDecision struct {
	MarketID   string
	Edge       float64 // con signo: calibrada − precio; negativo favorece NO
	Side       Side
	Calibrated float64 // probabilidad calibrada que originó la decisión
	Price      float64 // precio YES del mercado al evaluar
	Accepted   bool
	Reason     RejectReason
}

// SizedOrder es una decisión aceptada convertida en tamaño de apuesta.
// Invariante: 0 ≤ Stake ≤ MaxStakeCap ≤ bankroll × max_position_pct.
type SizedOrder struct {
	MarketID    string
	Side        Side
	Stake       float64 // USDC
	MaxStakeCap float64
	Price       float64 // precio efectivo del lado elegido
}

// PositionStatus es el estado de una posición.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position es una apuesta abierta o cerrada en un mercado.
// Como máximo una posición OPEN por market_id; lo garantiza el Ledger.
type Position struct {
	ID         string
	MarketID   string
	Side       Side
	Stake      float64
	EntryPrice float64 // precio pagado por share del lado elegido
	OpenedAt   time.Time
	Status     PositionStatus
	ClosedAt   time.Time
}

// Shares devuelve las participaciones compradas: stake / precio de entrada.
func (p Position) Shares() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return p.Stake / p.EntryPrice
}

// Won indica si la posición gana dado un resultado.
func (p Position) Won(outcome Outcome) bool {
	return (p.Side == SideYes && outcome == OutcomeYes) ||
		(p.Side == SideNo && outcome == OutcomeNo)
}

// Mode es el modo de ejecución.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// TradeStatus es el resultado de una ejecución.
type TradeStatus string

const (
	TradeFilled   TradeStatus = "FILLED"
	TradeRejected TradeStatus = "REJECTED"
	TradeFailed   TradeStatus = "FAILED"
)

// Trade es el registro append-only de una ejecución.
// DecisionID liga el trade a la decisión que lo originó; es la clave
// de idempotencia del gateway.
type Trade struct {
	ID           string
	PositionID   string
	MarketID     string
	DecisionID   string
	Side         Side
	Stake        float64
	Price        float64
	Mode         Mode
	VenueOrderID string
	Status       TradeStatus
	ExecutedAt   time.Time
}

// BankrollState es el único registro mutable del sistema.
// Toda mutación es un débito/crédito atómico ligado a un Trade o a una
// resolución; aritmética en decimal para que los balances cuadren exactos.
type BankrollState struct {
	Balance       decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
}
