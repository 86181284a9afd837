package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for clickcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clickcrawl",
		Short: "Crawler for JavaScript single-page applications",
		Long: `clickcrawl discovers the URLs of a single-page application.

It loads every page in a real browser, collects same-origin links, and clicks
each element with a click handler (ng-click, onclick, @click, ...) to find
views that are only reachable through JavaScript. Every discovered URL is
recorded together with the page that led to it.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
