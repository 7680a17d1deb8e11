package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/onepage/internal/config"
	"github.com/nao1215/onepage/internal/database"
	"github.com/nao1215/onepage/internal/model"
	"github.com/nao1215/onepage/internal/report"
	"github.com/spf13/cobra"
)

const historyDateLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
// It reads the runs recorded by the mirror command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show and compare recorded mirror runs",
		Long: `History shows the mirror runs recorded in the local database and
compares them file by file.

Without other flags, the latest two runs of the URL are compared and the
added, removed and changed files are listed. A file counts as changed when
its SHA-256 differs between the runs.

Examples:
  # Compare the latest two mirrors of a page
  onepage history https://example.com/

  # Compare the latest mirror with a specific run
  onepage history --with 3f1c... https://example.com/

  # List all runs of a page
  onepage history --list https://example.com/

  # List all mirrored pages
  onepage history --list-sites

  # Show the full report of a run
  onepage history --show 3f1c...

  # Keep only the newest 5 runs of a page
  onepage history --prune 5 https://example.com/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List the runs of the specified URL")
	cmd.Flags().BoolP("list-sites", "L", false,
		"List all mirrored URLs in the database")
	cmd.Flags().String("with", "",
		"Compare the latest run with the run of this ID (use --list to see IDs)")
	cmd.Flags().String("show", "",
		"Show the full report of the run with this ID")
	cmd.Flags().Int("prune", -1,
		"Delete all but the newest N runs of the specified URL")

	cmd.Flags().Bool("json", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output reports and comparisons in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	rootURL   string
	list      bool
	listSites bool
	with      string
	show      string
	prune     int
	json      bool
	markdown  bool
	dbDir     string
}

func parseHistoryOptions(cmd *cobra.Command, args []string) (*historyOptions, error) {
	opts := &historyOptions{}
	flags := cmd.Flags()

	var err error
	if opts.list, err = flags.GetBool("list"); err != nil {
		return nil, err
	}
	if opts.listSites, err = flags.GetBool("list-sites"); err != nil {
		return nil, err
	}
	if opts.with, err = flags.GetString("with"); err != nil {
		return nil, err
	}
	if opts.show, err = flags.GetString("show"); err != nil {
		return nil, err
	}
	if opts.prune, err = flags.GetInt("prune"); err != nil {
		return nil, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if len(args) > 0 {
		opts.rootURL = args[0]
	}

	if opts.json && opts.markdown {
		return nil, config.ErrConflictingReportFormats
	}
	if opts.rootURL == "" && !opts.listSites && opts.show == "" {
		return nil, errors.New("URL is required (use --list-sites to see mirrored URLs)")
	}
	if opts.prune == 0 || opts.prune < -1 {
		return nil, errors.New("invalid --prune value: must keep at least 1 run")
	}
	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	// Validate before opening the database.
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	db, err := database.Open(opts.dbDir, database.Options{})
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(out, "No mirror history found.")
		fmt.Fprintln(out, "\nUse 'onepage mirror <url>' to mirror a page.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	switch {
	case opts.listSites:
		return listSites(ctx, db, out, opts.json)
	case opts.show != "":
		return showRun(ctx, db, out, opts)
	case opts.prune > 0:
		return pruneRuns(ctx, db, out, opts.rootURL, opts.prune)
	case opts.list:
		return listRuns(ctx, db, out, opts.rootURL, opts.json)
	default:
		return compareRuns(ctx, db, out, opts)
	}
}

// listSites lists every mirrored URL.
func listSites(ctx context.Context, db *database.MirrorDB, out io.Writer, jsonOutput bool) error {
	sites, err := db.ListSites(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(out, sites)
	}

	if len(sites) == 0 {
		fmt.Fprintln(out, "No mirrored pages found in the database.")
		fmt.Fprintln(out, "\nUse 'onepage mirror <url>' to mirror a page.")
		return nil
	}

	fmt.Fprintf(out, "Mirrored pages (%d):\n\n", len(sites))
	fmt.Fprintf(out, "  %-5s  %-20s  %s\n", "Runs", "Last run", "URL")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, site := range sites {
		fmt.Fprintf(out, "  %-5d  %-20s  %s\n",
			site.Runs,
			site.LastRun.Local().Format(historyDateLayout),
			site.RootURL,
		)
	}
	fmt.Fprintln(out, "\nUse 'onepage history --list <url>' to see the runs of a page.")
	return nil
}

// listRuns lists the runs of rootURL, newest first.
func listRuns(ctx context.Context, db *database.MirrorDB, out io.Writer, rootURL string, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, rootURL)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs found for %s\n", rootURL)
		fmt.Fprintln(out, "\nUse 'onepage mirror' to mirror this page.")
		return nil
	}

	fmt.Fprintf(out, "Runs of %s (%d):\n\n", rootURL, len(runs))
	fmt.Fprintf(out, "  %-36s  %-20s  %6s  %6s  %s\n", "ID", "Date", "Files", "Failed", "Size")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 86))
	for _, run := range runs {
		fmt.Fprintf(out, "  %-36s  %-20s  %6d  %6d  %s\n",
			run.ID,
			run.StartedAt.Local().Format(historyDateLayout),
			run.ResourceCount,
			run.FailureCount,
			humanize.Bytes(uint64(max(run.TotalBytes, 0))),
		)
	}
	fmt.Fprintln(out, "\nUse 'onepage history <url>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'onepage history --with <id> <url>' to compare with a specific run.")
	return nil
}

// showRun prints the stored report of one run.
func showRun(ctx context.Context, db *database.MirrorDB, out io.Writer, opts *historyOptions) error {
	r, err := db.GetRun(ctx, opts.show)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("run not found: %s", opts.show)
	}
	_, err = historyWriter(out, opts).Write(r)
	return err
}

// pruneRuns deletes old runs of rootURL.
func pruneRuns(ctx context.Context, db *database.MirrorDB, out io.Writer, rootURL string, keep int) error {
	n, err := db.PruneRuns(ctx, rootURL, keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %d run(s) of %s\n", n, rootURL)
	return nil
}

// compareRuns diffs the latest run of the URL against the previous run,
// or against the run given with --with.
func compareRuns(ctx context.Context, db *database.MirrorDB, out io.Writer, opts *historyOptions) error {
	var previous, current model.RunSummary

	if opts.with == "" {
		var err error
		previous, current, err = db.LatestTwo(ctx, opts.rootURL)
		if errors.Is(err, database.ErrNotEnoughRuns) {
			return fmt.Errorf("cannot compare %s: %w (mirror the page again to record another run)", opts.rootURL, err)
		}
		if err != nil {
			return err
		}
	} else {
		runs, err := db.ListRuns(ctx, opts.rootURL)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("no runs found for %s", opts.rootURL)
		}
		other, err := db.GetRunSummary(ctx, opts.with)
		if err != nil {
			return err
		}
		if other == nil || other.RootURL != opts.rootURL {
			return fmt.Errorf("run not found for %s: %s", opts.rootURL, opts.with)
		}
		previous, current = *other, runs[0]
	}

	diff, err := db.Diff(ctx, previous, current)
	if err != nil {
		return err
	}
	_, err = historyWriter(out, opts).WriteDiff(diff)
	return err
}

// historyWriter returns the report writer for the requested format.
func historyWriter(out io.Writer, opts *historyOptions) report.Writer {
	switch {
	case opts.json:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(true))
	}
}

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
