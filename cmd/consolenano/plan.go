package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rahul/consolenano/internal/observability"
	"github.com/rahul/consolenano/internal/page"
	"github.com/rahul/consolenano/pkg/config"
)

func newPlanCmd(root *rootOptions) *cobra.Command {
	var pagePath, pageURL string
	var offline bool
	cmd := &cobra.Command{
		Use:   "plan <prompt>",
		Short: "Plan a console task without a browser",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg.Logging, cmd.ErrOrStderr())
			defer logger.Sync()

			var snap *page.Snapshot
			if pagePath != "" {
				s, err := snapshotFile(pagePath, pageURL)
				if err != nil {
					return err
				}
				snap = &s
			}

			eng, _, err := newEngine(cmd.Context(), cfg, logger, offline)
			if err != nil {
				return err
			}
			p, err := eng.GeneratePlan(cmd.Context(), strings.Join(args, " "), snap)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
	cmd.Flags().StringVar(&pagePath, "page", "", "saved console page to plan against")
	cmd.Flags().StringVar(&pageURL, "url", defaultPageURL, "URL the page was saved from")
	cmd.Flags().BoolVar(&offline, "offline", false, "use the local oracle only")
	return cmd
}
