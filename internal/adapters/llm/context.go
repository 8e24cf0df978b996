package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

// Assembler construye el bundle de contexto que consumen los agentes.
// Implementa ports.ContextAssembler. El core lo trata como opaco.
type Assembler struct{}

// NewAssembler crea el assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble resume el estado del mercado en texto para el debate.
func (a *Assembler) Assemble(_ context.Context, m domain.Market) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Market question: %s\n", m.Question)
	fmt.Fprintf(&sb, "Current YES price (implied probability): %.2f\n", m.Price)
	fmt.Fprintf(&sb, "Liquidity: %.0f USDC\n", m.Liquidity)
	fmt.Fprintf(&sb, "Volume: %.0f USDC\n", m.Volume)
	if !m.EndDate.IsZero() {
		fmt.Fprintf(&sb, "Resolution date: %s (%.0f hours away)\n",
			m.EndDate.UTC().Format("2006-01-02"),
			m.HoursToResolution(time.Now().UTC()))
	}
	return sb.String(), nil
}
