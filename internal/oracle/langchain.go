package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/rahul/consolenano/pkg/config"
)

var errEmptyResponse = errors.New("empty response from model")

// LangChain adapts a langchaingo model.
type LangChain struct {
	Model  llms.Model
	name   string
	logger *zap.Logger

	mu    sync.Mutex
	ready bool
}

func NewLangChain(model llms.Model, name string, logger *zap.Logger) *LangChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LangChain{Model: model, name: name, logger: logger}
}

// NewModel builds the langchaingo model for a configured provider.
func NewModel(provider string, cfg config.ProviderConfig) (llms.Model, error) {
	switch provider {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	}
	return nil, fmt.Errorf("provider %s not supported", provider)
}

func (o *LangChain) Name() string { return o.name }

func (o *LangChain) Prompt(ctx context.Context, system, prompt string) (string, error) {
	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := o.Model.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%s: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", o.name, errEmptyResponse)
	}
	return resp.Choices[0].Content, nil
}

// Available sends a one-line warm-up prompt. The first successful probe is
// remembered; a local model that still has to load or download its weights
// answers once it is ready.
func (o *LangChain) Available(ctx context.Context) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ready {
		return true
	}

	o.logger.Info("warming up model", zap.String("oracle", o.name))
	out, err := llms.GenerateFromSinglePrompt(ctx, o.Model, "Reply with the single word OK.", llms.WithMaxTokens(5))
	if err != nil {
		o.logger.Warn("model warm-up failed", zap.String("oracle", o.name), zap.Error(err))
		return false
	}
	if strings.TrimSpace(out) == "" {
		o.logger.Warn("model warm-up returned nothing", zap.String("oracle", o.name))
		return false
	}
	o.ready = true
	return true
}
