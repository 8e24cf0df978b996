package debate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
	"github.com/eeguskiza/Poly-Oracle/internal/ports"
)

// Runner ejecuta un debate multi-ronda contra el backend de lenguaje.
// Secuencia finita de pasos síncronos con timeout acotado por paso — nada de
// cadenas abiertas de callbacks: cancelar o reintentar es razonar sobre un
// paso concreto.
type Runner struct {
	backend ports.DebateBackend
	rounds  int
	timeout time.Duration
}

// NewRunner crea un runner de debate. rounds < 1 se normaliza a 1.
func NewRunner(backend ports.DebateBackend, rounds int, timeout time.Duration) *Runner {
	if rounds < 1 {
		rounds = 1
	}
	return &Runner{backend: backend, rounds: rounds, timeout: timeout}
}

// Run conduce el debate completo y devuelve todas las opiniones en orden.
// Las rondas 1..N reúnen Proponent/Opponent/Challenger (la primera como
// argumento inicial, las siguientes como réplica); el Arbiter interviene una
// sola vez, al final, con el transcript completo delante.
func (r *Runner) Run(ctx context.Context, marketID, debateCtx string) ([]domain.Opinion, error) {
	var transcript []domain.Opinion

	for round := 1; round <= r.rounds; round++ {
		for _, role := range []domain.Role{domain.RoleProponent, domain.RoleOpponent, domain.RoleChallenger} {
			op, err := r.opine(ctx, role, debateCtx, round, transcript)
			if err != nil {
				return nil, fmt.Errorf("debate.Run: %s: round %d %s: %w", marketID, round, role, err)
			}
			transcript = append(transcript, op)
		}
	}

	arbiter, err := r.opine(ctx, domain.RoleArbiter, debateCtx, r.rounds, transcript)
	if err != nil {
		return nil, fmt.Errorf("debate.Run: %s: arbiter: %w", marketID, err)
	}
	transcript = append(transcript, arbiter)

	slog.Debug("debate complete",
		"market_id", marketID,
		"rounds", r.rounds,
		"opinions", len(transcript),
		"arbiter_prob", arbiter.Probability,
	)
	return transcript, nil
}

// opine pide una opinión con el timeout por paso aplicado.
func (r *Runner) opine(ctx context.Context, role domain.Role, debateCtx string, round int, transcript []domain.Opinion) (domain.Opinion, error) {
	stepCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	op, err := r.backend.Opine(stepCtx, ports.OpinionRequest{
		Role:       role,
		Context:    debateCtx,
		Round:      round,
		Transcript: transcript,
	})
	if err != nil {
		return domain.Opinion{}, err
	}
	if op.Probability < 0 || op.Probability > 1 {
		return domain.Opinion{}, fmt.Errorf("probability %v out of [0,1]", op.Probability)
	}
	op.Role = role
	op.Round = round
	return op, nil
}
