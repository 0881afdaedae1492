// Package oracle is the text-completion capability behind planning and
// question answering: a langchaingo-backed model when one is configured and
// reachable, otherwise a deterministic local substitute.
package oracle

import (
	"context"

	"go.uber.org/zap"
)

// Oracle turns a prompt, with an optional system instruction, into free text.
type Oracle interface {
	Prompt(ctx context.Context, system, prompt string) (string, error)
	// Available reports whether the oracle can serve prompts. Implementations
	// may use the first call to warm up or download a model.
	Available(ctx context.Context) bool
	Name() string
}

// Prompt markers shared with the prompt templates. The local oracle uses them
// to recognise what it is being asked.
const (
	MarkerRequest      = "USER REQUEST:"
	MarkerContinuation = "CONTINUE FROM WHERE WE LEFT OFF"
	MarkerErrorFix     = "AWS Console Error Detected:"
	MarkerNextTasks    = "Return ONLY a JSON array of strings"
	MarkerQuestion     = "Question:"
)

// Select returns the first available candidate. When none is, the local
// oracle is returned and mock is true.
func Select(ctx context.Context, logger *zap.Logger, candidates ...Oracle) (o Oracle, mock bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if c.Available(ctx) {
			logger.Info("oracle ready", zap.String("oracle", c.Name()))
			return c, false
		}
		logger.Warn("oracle unavailable, trying next", zap.String("oracle", c.Name()))
	}
	logger.Warn("no model available, using local oracle")
	return NewLocal(), true
}
