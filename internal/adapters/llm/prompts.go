package llm

import (
	"fmt"
	"strings"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
	"github.com/eeguskiza/Poly-Oracle/internal/ports"
)

// Prompts por rol. Todos exigen cerrar con una línea "PROBABILITY: NN%"
// para que la extracción sea determinista.

const probabilityInstruction = "End your answer with a single line in the exact format:\nPROBABILITY: NN%"

func systemPrompt(role domain.Role) string {
	switch role {
	case domain.RoleProponent:
		return "You are an analyst arguing that this prediction market will resolve YES. " +
			"Build the strongest evidence-based case for YES. " + probabilityInstruction
	case domain.RoleOpponent:
		return "You are an analyst arguing that this prediction market will resolve NO. " +
			"Build the strongest evidence-based case for NO. " + probabilityInstruction
	case domain.RoleChallenger:
		return "You are a devil's advocate. Attack the weakest assumptions on both sides " +
			"of the debate and surface what everyone is missing. " + probabilityInstruction
	case domain.RoleArbiter:
		return "You are a superforecaster judging a debate. Weigh the evidence quality, " +
			"anchor on base rates, adjust for specifics, and produce a final calibrated " +
			"probability. " + probabilityInstruction
	default:
		return probabilityInstruction
	}
}

func userPrompt(req ports.OpinionRequest) string {
	var sb strings.Builder
	sb.WriteString("# Context\n")
	sb.WriteString(req.Context)
	sb.WriteString("\n")

	if len(req.Transcript) > 0 {
		sb.WriteString("\n# Debate so far\n")
		for _, op := range req.Transcript {
			fmt.Fprintf(&sb, "\n## %s (round %d, %.0f%%)\n%s\n",
				op.Role, op.Round, op.Probability*100, op.Rationale)
		}
	}

	sb.WriteString("\n# Your task\n")
	switch {
	case req.Role == domain.RoleArbiter:
		sb.WriteString("Synthesize the entire debate into your final forecast.")
	case req.Round == 1:
		sb.WriteString("Present your opening argument from first principles.")
	default:
		sb.WriteString("Respond to the previous arguments and update your probability if needed.")
	}
	return sb.String()
}
