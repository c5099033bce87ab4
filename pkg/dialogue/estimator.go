package dialogue

import (
	"context"
	"log/slog"
	"strings"

	"github.com/harunnryd/lily/pkg/logging"
)

// TokenStreamer is the narrow contract over the dialogue model: stream the
// completion tokens for a prompt against the conversation so far.
type TokenStreamer interface {
	Stream(ctx context.Context, prompt string) (<-chan string, error)
}

// DebtEstimator re-queries the conversation history for the customer's
// unsecured debt amount after the call has ended. Best effort by nature:
// the raw model output is returned unparsed.
type DebtEstimator struct {
	llm    TokenStreamer
	logger *slog.Logger
}

func NewDebtEstimator(llm TokenStreamer) *DebtEstimator {
	return &DebtEstimator{
		llm:    llm,
		logger: logging.NewComponentLogger(slog.Default(), "debt_estimator"),
	}
}

func (e *DebtEstimator) EstimateDebt(ctx context.Context) (string, error) {
	tokens, err := e.llm.Stream(ctx, AmountPrompt)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for tok := range tokens {
		sb.WriteString(tok)
	}
	raw := strings.TrimSpace(sb.String())
	e.logger.Debug("debt amount extracted", slog.String("raw", raw))
	return raw, nil
}
