package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
	"github.com/eeguskiza/Poly-Oracle/internal/ports"
)

// Config configura el backend de debate.
type Config struct {
	APIKey      string
	BaseURL     string // vacío → API de OpenAI; sirve para endpoints compatibles
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Backend implementa ports.DebateBackend sobre chat completions.
// Timeout o respuesta sin probabilidad parseable son fallos recuperables
// por ronda: el ciclo del mercado se salta, el loop sigue.
type Backend struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

// NewBackend crea el backend con la configuración dada.
func NewBackend(cfg Config) *Backend {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Backend{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     timeout,
	}
}

// Opine pide al modelo la opinión del rol dado.
func (b *Backend) Opine(ctx context.Context, req ports.OpinionRequest) (domain.Opinion, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(req.Role)),
			openai.UserMessage(userPrompt(req)),
		},
		Temperature: openai.Float(b.temperature),
	})
	if err != nil {
		return domain.Opinion{}, fmt.Errorf("llm.Opine: %s round %d: %w", req.Role, req.Round, err)
	}
	if len(resp.Choices) == 0 {
		return domain.Opinion{}, fmt.Errorf("llm.Opine: %s round %d: empty response", req.Role, req.Round)
	}

	text := resp.Choices[0].Message.Content
	prob, ok := ExtractProbability(text)
	if !ok {
		return domain.Opinion{}, fmt.Errorf("llm.Opine: %s round %d: no probability in response", req.Role, req.Round)
	}

	slog.Debug("opinion received", "role", req.Role, "round", req.Round, "probability", prob)
	return domain.Opinion{
		Role:        req.Role,
		Probability: prob,
		Rationale:   strings.TrimSpace(text),
		Round:       req.Round,
	}, nil
}
