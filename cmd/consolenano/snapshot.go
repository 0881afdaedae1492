package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rahul/consolenano/internal/page"
)

const defaultPageURL = "https://console.aws.amazon.com/"

func newSnapshotCmd() *cobra.Command {
	var pageURL string
	cmd := &cobra.Command{
		Use:   "snapshot <file.html>",
		Short: "Print what the detector sees on a saved console page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshotFile(args[0], pageURL)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
	cmd.Flags().StringVar(&pageURL, "url", defaultPageURL, "URL the page was saved from")
	return cmd
}

func snapshotFile(path, pageURL string) (page.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return page.Snapshot{}, err
	}
	doc, err := page.Document{URL: pageURL, HTML: string(raw)}.Parse()
	if err != nil {
		return page.Snapshot{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return page.NewDetector(nil).Detect(doc, pageURL), nil
}
