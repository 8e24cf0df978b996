package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete;
// la conversión a domain entities está en markets.go.

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket es la metadata de un mercado. Gamma devuelve varios campos
// numéricos como strings JSON, de ahí json.Number.
type gammaMarket struct {
	ConditionID   string      `json:"conditionId"`
	Question      string      `json:"question"`
	Slug          string      `json:"slug"`
	EndDateISO    string      `json:"endDateIso"`
	Volume        json.Number `json:"volume"`
	Liquidity     json.Number `json:"liquidity"`
	Active        bool        `json:"active"`
	Closed        bool        `json:"closed"`
	OutcomePrices string      `json:"outcomePrices"` // JSON array codificado: ["0.62","0.38"]
	Outcomes      string      `json:"outcomes"`      // JSON array codificado: ["Yes","No"]
	UmaResolution string      `json:"umaResolutionStatus"`
}

// --- CLOB API ---

// orderRequest es el body del POST /order.
type orderRequest struct {
	MarketID string  `json:"market"`
	Outcome  string  `json:"outcome"`
	Side     string  `json:"side"`
	Size     float64 `json:"size"`
	Price    float64 `json:"price"`
}

// orderResponse es la confirmación (o rechazo) del CLOB.
type orderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderID"`
	Error   string `json:"errorMsg"`
}
