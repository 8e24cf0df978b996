package ports

import (
	"context"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

// OpinionRequest es la petición de una opinión a un agente.
type OpinionRequest struct {
	Role       domain.Role
	Context    string // bundle opaco del assembler, se pasa tal cual
	Round      int
	Transcript []domain.Opinion // opiniones previas del debate, en orden
}

// DebateBackend produce la opinión de un agente vía el modelo de lenguaje.
// Timeout o respuesta malformada son fallos recuperables por ronda.
type DebateBackend interface {
	Opine(ctx context.Context, req OpinionRequest) (domain.Opinion, error)
}

// ContextAssembler construye el contexto de debate para un mercado.
// El core no inspecciona su estructura interna.
type ContextAssembler interface {
	Assemble(ctx context.Context, market domain.Market) (string, error)
}
