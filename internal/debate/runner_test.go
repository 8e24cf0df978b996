package debate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
	"github.com/eeguskiza/Poly-Oracle/internal/ports"
)

// mockBackend devuelve probabilidades fijas por rol y registra las requests.
type mockBackend struct {
	probs    map[domain.Role]float64
	failRole domain.Role
	requests []ports.OpinionRequest
}

func (m *mockBackend) Opine(_ context.Context, req ports.OpinionRequest) (domain.Opinion, error) {
	m.requests = append(m.requests, req)
	if m.failRole != "" && req.Role == m.failRole {
		return domain.Opinion{}, errors.New("backend unavailable")
	}
	return domain.Opinion{Probability: m.probs[req.Role], Rationale: "because"}, nil
}

func TestRunner_SingleRound(t *testing.T) {
	backend := &mockBackend{probs: map[domain.Role]float64{
		domain.RoleProponent:  0.70,
		domain.RoleOpponent:   0.30,
		domain.RoleChallenger: 0.50,
		domain.RoleArbiter:    0.62,
	}}
	r := NewRunner(backend, 1, 0)

	ops, err := r.Run(context.Background(), "0xmkt", "question context")

	require.NoError(t, err)
	require.Len(t, ops, 4)
	assert.Equal(t, domain.RoleProponent, ops[0].Role)
	assert.Equal(t, domain.RoleOpponent, ops[1].Role)
	assert.Equal(t, domain.RoleChallenger, ops[2].Role)
	assert.Equal(t, domain.RoleArbiter, ops[3].Role)
	assert.Equal(t, 0.62, ops[3].Probability)
}

func TestRunner_MultiRoundTranscript(t *testing.T) {
	backend := &mockBackend{probs: map[domain.Role]float64{
		domain.RoleProponent:  0.7,
		domain.RoleOpponent:   0.3,
		domain.RoleChallenger: 0.5,
		domain.RoleArbiter:    0.6,
	}}
	r := NewRunner(backend, 2, 0)

	ops, err := r.Run(context.Background(), "0xmkt", "ctx")

	require.NoError(t, err)
	// 3 roles x 2 rondas + árbitro
	require.Len(t, ops, 7)
	assert.Equal(t, 2, ops[6].Round)
	assert.Equal(t, domain.RoleArbiter, ops[6].Role)

	// el árbitro ve el transcript completo
	last := backend.requests[len(backend.requests)-1]
	assert.Equal(t, domain.RoleArbiter, last.Role)
	assert.Len(t, last.Transcript, 6)

	// la réplica de la ronda 2 ve las opiniones de la ronda 1
	fourth := backend.requests[3]
	assert.Equal(t, 2, fourth.Round)
	assert.Len(t, fourth.Transcript, 3)
}

func TestRunner_BackendFailureAborts(t *testing.T) {
	backend := &mockBackend{
		probs:    map[domain.Role]float64{domain.RoleProponent: 0.7},
		failRole: domain.RoleOpponent,
	}
	r := NewRunner(backend, 2, 0)

	_, err := r.Run(context.Background(), "0xmkt", "ctx")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPPONENT")
	// falló en la primera réplica: una request por proponente y otra fallida
	assert.Len(t, backend.requests, 2)
}

type badProbBackend struct{}

func (badProbBackend) Opine(context.Context, ports.OpinionRequest) (domain.Opinion, error) {
	return domain.Opinion{Probability: 1.7}, nil
}

func TestRunner_RejectsOutOfRangeProbability(t *testing.T) {
	r := NewRunner(badProbBackend{}, 1, 0)

	_, err := r.Run(context.Background(), "0xmkt", "ctx")

	assert.ErrorContains(t, err, "out of [0,1]")
}
