package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/rahul/consolenano/internal/observability"
	"github.com/rahul/consolenano/internal/tools"
)

const researchPrompt = `You collect facts for answering a question about AWS.
Call the tools when the question needs current documentation, limits or pricing, or the text of the page the user is on.
When you have enough, reply with short plain-text notes (no more than ten lines) and no tool call.`

var errNoNotes = errors.New("research produced no notes")

// Researcher runs a small tool-calling loop over a chat model and returns
// notes that are folded into the question prompt.
type Researcher struct {
	Model    llms.Model
	Registry *tools.Registry
	MaxSteps int
	Logger   *observability.Logger
}

func NewResearcher(model llms.Model, registry *tools.Registry, logger *observability.Logger) *Researcher {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Researcher{Model: model, Registry: registry, MaxSteps: 4, Logger: logger}
}

func (r *Researcher) Research(ctx context.Context, question string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, researchPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, question),
	}
	defs := r.Registry.Definitions()

	for i := 0; i < r.MaxSteps; i++ {
		resp, err := r.Model.GenerateContent(ctx, messages, llms.WithTools(defs))
		if err != nil {
			return "", fmt.Errorf("research step %d: %w", i+1, err)
		}
		if len(resp.Choices) == 0 {
			return "", errNoNotes
		}
		choice := resp.Choices[0]

		var parts []llms.ContentPart
		if choice.Content != "" {
			parts = append(parts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			parts = append(parts, tc)
		}
		messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts})

		if len(choice.ToolCalls) == 0 {
			if choice.Content == "" {
				return "", errNoNotes
			}
			return choice.Content, nil
		}

		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			result := r.call(ctx, i+1, tc.FunctionCall.Name, tc.FunctionCall.Arguments)
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       tc.FunctionCall.Name,
						Content:    result,
					},
				},
			})
		}
	}
	return "", fmt.Errorf("%w after %d steps", errNoNotes, r.MaxSteps)
}

func (r *Researcher) call(ctx context.Context, step int, name, args string) string {
	tool := r.Registry.Get(name)
	if tool == nil {
		return fmt.Sprintf("Error: Tool %s not found", name)
	}
	r.Logger.Debug("research tool call", zap.Int("step", step), zap.String("tool", name), zap.String("args", args))
	res, err := tool.Execute(ctx, args)
	if err != nil {
		r.Logger.Warn("research tool failed", zap.String("tool", name), zap.Error(err))
		return fmt.Sprintf("Error: %v", err)
	}
	return res
}
