package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/nao1215/clickcrawl/internal/config"
	"github.com/nao1215/clickcrawl/internal/database"
	"github.com/nao1215/clickcrawl/internal/model"
)

const historyTimeFormat = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
// It reads the runs recorded by 'clickcrawl crawl' in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [origin]",
		Short: "Show recorded crawl runs and how their URL graphs changed",
		Long: `History reads the crawl runs stored in the history database.

Without arguments it lists every crawled origin. With an origin (host or
host:port) it lists the runs of that origin, newest first. With --diff it
compares two runs of the origin and shows which URLs appeared, disappeared
or were reached through a different parent.

Examples:
  # List crawled origins
  clickcrawl history

  # List runs for an origin
  clickcrawl history localhost:8080

  # Compare the latest two runs
  clickcrawl history --diff localhost:8080

  # Compare two specific runs
  clickcrawl history --diff --base <run-id> --target <run-id> localhost:8080

  # Show which runs visited a URL and from where
  clickcrawl history --url http://localhost:8080/#/settings`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("db-dir", "", "History database directory (default: XDG data directory)")
	cmd.Flags().BoolP("diff", "d", false, "Compare two runs of the origin")
	cmd.Flags().String("base", "", "Run ID to compare from (default: the second newest run)")
	cmd.Flags().String("target", "", "Run ID to compare to (default: the newest run)")
	cmd.Flags().StringP("url", "u", "", "List the runs that visited this URL")
	cmd.Flags().BoolP("json", "j", false, "Output the comparison as JSON")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	dbDir  string
	diff   bool
	base   string
	target string
	url    string
	json   bool
}

func parseHistoryOptions(cmd *cobra.Command) (historyOptions, error) {
	var opts historyOptions
	var err error
	flags := cmd.Flags()

	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}
	if opts.diff, err = flags.GetBool("diff"); err != nil {
		return opts, err
	}
	if opts.base, err = flags.GetString("base"); err != nil {
		return opts, err
	}
	if opts.target, err = flags.GetString("target"); err != nil {
		return opts, err
	}
	if opts.url, err = flags.GetString("url"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}
	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd)
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var origin string
	if len(args) > 0 {
		origin = strings.ToLower(args[0])
	}
	if opts.diff && origin == "" {
		return errors.New("an origin is required with --diff (run 'clickcrawl history' to list origins)")
	}
	if !opts.diff && (opts.base != "" || opts.target != "") {
		return errors.New("--base and --target require --diff")
	}

	db, err := database.Open(opts.dbDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return fmt.Errorf("no crawl history yet (run 'clickcrawl crawl <url>' first): %w", err)
		}
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case opts.url != "":
		return showURLHistory(ctx, out, db, opts.url)
	case opts.diff:
		return showRunDiff(ctx, out, db, origin, opts)
	case origin != "":
		return listRuns(ctx, out, db, origin)
	default:
		return listOrigins(ctx, out, db)
	}
}

// listOrigins prints every origin with stored runs.
func listOrigins(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	origins, err := db.ListOrigins(ctx)
	if err != nil {
		return fmt.Errorf("failed to list origins: %w", err)
	}

	if len(origins) == 0 {
		fmt.Fprintln(out, "No crawled origins found in the database.")
		fmt.Fprintln(out, "\nUse 'clickcrawl crawl <url>' to crawl an application.")
		return nil
	}

	fmt.Fprintf(out, "Crawled origins (%d):\n\n", len(origins))
	for _, origin := range origins {
		fmt.Fprintf(out, "  %s\n", origin)
	}
	fmt.Fprintln(out, "\nUse 'clickcrawl history <origin>' to see the runs of an origin.")
	return nil
}

// listRuns prints the runs of one origin, newest first.
func listRuns(ctx context.Context, out io.Writer, db *database.CrawlDB, origin string) error {
	runs, err := db.ListRuns(ctx, origin)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs found for %s\n", origin)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.SetTitle(fmt.Sprintf("%s (%d runs)", origin, len(runs)))
	t.AppendHeader(table.Row{"Run ID", "Started", "Duration", "Status", "URLs", "Actions", "Failures"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.RunID,
			run.StartedAt.Local().Format(historyTimeFormat),
			run.Duration().Round(time.Millisecond),
			run.Status,
			run.VisitedCount,
			run.ActionCount,
			run.FailureCount,
		})
	}
	t.Render()

	if len(runs) > 1 {
		fmt.Fprintf(out, "\nUse 'clickcrawl history --diff %s' to compare the latest two runs.\n", origin)
	}
	return nil
}

// showURLHistory prints the runs that visited url and the parent in each.
func showURLHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, url string) error {
	sightings, err := db.URLHistory(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to get URL history: %w", err)
	}

	if len(sightings) == 0 {
		fmt.Fprintf(out, "No run visited %s\n", url)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.SetTitle(url)
	t.AppendHeader(table.Row{"Run ID", "Started", "#", "Parent URL"})
	for _, s := range sightings {
		parent := s.Parent
		if parent == "" {
			parent = "-"
		}
		t.AppendRow(table.Row{
			s.RunID,
			s.StartedAt.Local().Format(historyTimeFormat),
			s.Position + 1,
			parent,
		})
	}
	t.Render()
	return nil
}

// showRunDiff compares two runs of origin and prints the difference.
func showRunDiff(ctx context.Context, out io.Writer, db *database.CrawlDB, origin string, opts historyOptions) error {
	base, target, err := selectRuns(ctx, db, origin, opts.base, opts.target)
	if err != nil {
		return err
	}

	diff := model.CompareRuns(base, target)
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(diff)
	}
	printDiff(out, origin, base, target, diff)
	return nil
}

// selectRuns loads the two runs to compare. Missing IDs default to the
// second newest (base) and newest (target) runs of origin.
func selectRuns(ctx context.Context, db *database.CrawlDB, origin, baseID, targetID string) (*model.CrawlResult, *model.CrawlResult, error) {
	if baseID == "" || targetID == "" {
		runs, err := db.ListRuns(ctx, origin)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list runs: %w", err)
		}
		if targetID == "" {
			if len(runs) == 0 {
				return nil, nil, fmt.Errorf("no runs found for %s", origin)
			}
			targetID = runs[0].RunID
		}
		if baseID == "" {
			for _, run := range runs {
				if run.RunID != targetID {
					baseID = run.RunID
					break
				}
			}
			if baseID == "" {
				return nil, nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
			}
		}
	}

	base, err := loadRun(ctx, db, origin, baseID)
	if err != nil {
		return nil, nil, err
	}
	target, err := loadRun(ctx, db, origin, targetID)
	if err != nil {
		return nil, nil, err
	}
	return base, target, nil
}

func loadRun(ctx context.Context, db *database.CrawlDB, origin, runID string) (*model.CrawlResult, error) {
	run, err := db.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	if run.Origin != origin {
		return nil, fmt.Errorf("run %s belongs to %s, not %s", runID, run.Origin, origin)
	}
	return run, nil
}

// printDiff writes a human-readable comparison.
func printDiff(out io.Writer, origin string, base, target *model.CrawlResult, diff *model.RunDiff) {
	fmt.Fprintf(out, "Comparison for %s\n", origin)
	fmt.Fprintf(out, "  base:   %s (%s, %d URLs)\n",
		base.RunID, base.StartedAt.Local().Format(historyTimeFormat), len(base.Visited))
	fmt.Fprintf(out, "  target: %s (%s, %d URLs)\n\n",
		target.RunID, target.StartedAt.Local().Format(historyTimeFormat), len(target.Visited))

	if !diff.HasChanges() {
		fmt.Fprintf(out, "No changes (%d URLs unchanged).\n", diff.Unchanged)
		return
	}

	if len(diff.Added) > 0 {
		fmt.Fprintf(out, "New URLs (%d):\n", len(diff.Added))
		for _, u := range diff.Added {
			fmt.Fprintf(out, "  + %s (from %s)\n", u, parentOrRoot(target.ParentOf(u)))
		}
		fmt.Fprintln(out)
	}
	if len(diff.Removed) > 0 {
		fmt.Fprintf(out, "Missing URLs (%d):\n", len(diff.Removed))
		for _, u := range diff.Removed {
			fmt.Fprintf(out, "  - %s\n", u)
		}
		fmt.Fprintln(out)
	}
	if len(diff.Reparented) > 0 {
		fmt.Fprintf(out, "Reached from a different page (%d):\n", len(diff.Reparented))
		for _, r := range diff.Reparented {
			fmt.Fprintf(out, "  ~ %s: %s -> %s\n", r.URL, parentOrRoot(r.OldParent), parentOrRoot(r.NewParent))
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Unchanged: %d\n", diff.Unchanged)
}

func parentOrRoot(parent string) string {
	if parent == "" {
		return "start"
	}
	return parent
}
