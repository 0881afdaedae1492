package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/rahul/consolenano/internal/agent"
	"github.com/rahul/consolenano/internal/observability"
	"github.com/rahul/consolenano/internal/oracle"
	"github.com/rahul/consolenano/internal/tools"
	"github.com/rahul/consolenano/pkg/config"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "consolenano",
		Short:         "Step-by-step guidance for the AWS console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "config file")

	cmd.AddCommand(newRunCmd(opts), newSnapshotCmd(), newPlanCmd(opts))
	return cmd
}

// newEngine picks the configured model, falling back to the local oracle, and
// builds the engine around it. mock reports the fallback. The researcher is
// only attached when a real model answers.
func newEngine(ctx context.Context, cfg config.Config, logger *observability.Logger, offline bool, extra ...tools.Tool) (eng *agent.Engine, mock bool, err error) {
	prompts, err := agent.NewPromptManager(cfg.Prompts.Dir)
	if err != nil {
		return nil, false, fmt.Errorf("load prompts: %w", err)
	}

	var model llms.Model
	var candidates []oracle.Oracle
	if name, pc := cfg.GetDefaultProvider(); name != "" && !offline {
		model, err = oracle.NewModel(name, pc)
		if err != nil {
			logger.Warn("model unavailable", zap.String("provider", name), zap.Error(err))
		} else {
			candidates = append(candidates, oracle.NewLangChain(model, name, logger.Logger))
		}
	}
	o, mock := oracle.Select(ctx, logger.Logger, candidates...)

	eng = agent.NewEngine(o, prompts, nil, logger)
	if cfg.Research.Enabled && !mock && model != nil {
		registry := tools.NewRegistry(append(extra, tools.NewDocsTool())...)
		if search, err := tools.NewSearchTool(cfg.Research.MaxResults); err != nil {
			logger.Warn("search disabled", zap.Error(err))
		} else {
			registry.Register(search)
		}
		eng.Researcher = agent.NewResearcher(model, registry, logger)
	}
	return eng, mock, nil
}
