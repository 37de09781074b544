package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/config"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/git"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/pipeline"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/scan"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/tui"
)

var (
	scanJSON         bool
	scanChangedSince string
)

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "List untested source files in processing order",
	Long: `Walk a directory, find source files without a test file on disk, and print
them leaves first: a file comes after the local files it imports.

A source file counts as tested when x.test.<ext>, x.spec.<ext> or a file of
the same name under __tests__ exists next to it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, err := loadConfig(nil)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		res, err := runScan(ctx, resolved.Config, dirArg(args), scanChangedSince)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if scanJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printScanResult(out, res)
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Output the scan result as JSON")
	scanCmd.Flags().StringVar(&scanChangedSince, "changed-since", "", "Only list files changed relative to this git ref")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(newBatchCmd())
}

func dirArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

// runScan scans dir. A non-empty changedSince limits the untested files to
// those git reports as changed relative to that ref.
func runScan(ctx context.Context, cfg *config.Config, dir, changedSince string) (*scan.Result, error) {
	c, err := buildComponents(ctx, cfg, false)
	if err != nil {
		return nil, err
	}
	s := scan.New(c.analyzer,
		scan.WithExtensions(cfg.Project.SourceExtensions),
		scan.WithExclude(cfg.Project.Exclude),
		scan.WithLogger(logging.New("scan")),
	)
	res, err := s.Scan(ctx, dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFileNotFound, "scan", err)
	}
	if changedSince == "" {
		return res, nil
	}

	client, err := git.NewClient(ctx, res.Root)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgs, "scan", err)
	}
	changed, err := client.ChangedFiles(ctx, changedSince)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgs, "scan", err)
	}
	set := make(map[string]bool, len(changed))
	for _, f := range changed {
		set[canonicalPath(f)] = true
	}
	before := len(res.Order)
	res.Restrict(func(p string) bool { return set[canonicalPath(p)] })
	logging.New("scan").Debug("limited to changed files", "ref", changedSince, "changed", len(changed), "before", before, "after", len(res.Order))
	return res, nil
}

// canonicalPath resolves symlinks so paths from git and from the walk
// compare equal.
func canonicalPath(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return p
}

func printScanResult(w io.Writer, res *scan.Result) {
	fmt.Fprintln(w, styleHeader.Render(fmt.Sprintf("%d untested of %d source file(s)", len(res.Untested), len(res.SourceFiles))))
	for i, f := range res.Order {
		fmt.Fprintf(w, "%4d  %s\n", i+1, relTo(res.Root, f))
	}
	if len(res.Cycles) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styleWarnLbl.Render(fmt.Sprintf("%d import cycle(s):", len(res.Cycles))))
		for _, cycle := range res.Cycles {
			parts := make([]string, len(cycle))
			for i, f := range cycle {
				parts[i] = relTo(res.Root, f)
			}
			fmt.Fprintf(w, "  %v\n", parts)
		}
	}
}

func relTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}

type batchFlags struct {
	generateFlags
	Concurrency   int
	StopOnFailure bool
	Report        string
	TUI           bool
	ChangedSince  string
}

func newBatchCmd() *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "batch [dir]",
		Short: "Generate tests for every untested file in a directory",
		Long: `Scan a directory and run every untested source file through the pipeline in
dependency order.

With --concurrency N above 1, files run in consecutive groups of N. A failed
file never stops the batch unless --stop-on-failure is set.`,
		Example: `  # Sequential batch over src/, report as YAML
  testsmith batch src --report testsmith-report.yaml

  # Four files at a time, stop at the first failure
  testsmith batch src --concurrency 4 --stop-on-failure

  # Only files this branch touched
  testsmith batch src --changed-since main`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, dirArg(args), &flags)
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().IntVar(&flags.Concurrency, "concurrency", 0, "Files processed at once (default: batch.concurrency)")
	cmd.Flags().BoolVar(&flags.StopOnFailure, "stop-on-failure", false, "Skip remaining files after the first failure")
	cmd.Flags().StringVar(&flags.Report, "report", "", "Write the batch report to this path (.json or .yaml)")
	cmd.Flags().BoolVar(&flags.TUI, "tui", false, "Show a live dashboard instead of progress lines")
	cmd.Flags().StringVar(&flags.ChangedSince, "changed-since", "", "Only process files changed relative to this git ref")
	return cmd
}

func runBatch(cmd *cobra.Command, dir string, flags *batchFlags) error {
	overrides, err := flags.overrides(cmd.Flags())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		if flags.Concurrency < 1 {
			return apperr.New(apperr.KindInvalidArgs, "cli", "--concurrency must be >= 1, got %d", flags.Concurrency)
		}
		overrides.Concurrency = &flags.Concurrency
	}
	if cmd.Flags().Changed("stop-on-failure") {
		overrides.StopOnFailure = &flags.StopOnFailure
	}
	if flags.TUI {
		// Log lines would tear the alternate screen; the dashboard's event
		// log replaces them.
		logging.SetOutput(io.Discard)
		defer logging.SetOutput(os.Stderr)
	}

	resolved, err := loadConfig(overrides)
	if err != nil {
		return err
	}
	cfg := resolved.Config

	ctx, cancel := commandContext(cmd)
	defer cancel()

	scanned, err := runScan(ctx, cfg, dir, flags.ChangedSince)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(scanned.Order) == 0 {
		fmt.Fprintln(out, styleSuccess.Render("Every source file already has tests."))
		return nil
	}

	c, err := buildComponents(ctx, cfg, true)
	if err != nil {
		return err
	}

	var (
		res      *scan.BatchResult
		batchErr error
	)
	if flags.TUI {
		res, batchErr = tui.RunDashboard(ctx, tui.DashboardConfig{
			Title: "testsmith batch " + dir,
			Root:  scanned.Root,
			Total: len(scanned.Order),
		}, func(ctx context.Context, s tui.Sender) (*scan.BatchResult, error) {
			c.limiter.SetUpdateCallback(tui.LimitFunc(s))
			orch := c.orchestrator(tui.ProgressFunc(s), logging.New("pipeline"))
			return newBatchProcessor(cfg, tui.BatchProgressFunc(s)).Process(ctx, scanned.Order, orch.Run)
		})
	} else {
		progress := flags.progressWriter(cmd)
		// Per-phase events from parallel files interleave, so only a
		// sequential batch shows them.
		fileProgress := func(pipeline.ProgressEvent) {}
		if cfg.Batch.Concurrency <= 1 {
			fileProgress = progressPrinter(progress)
		}
		orch := c.orchestrator(fileProgress, logging.New("pipeline"))
		res, batchErr = newBatchProcessor(cfg, func(ev pipeline.ProgressEvent) {
			fmt.Fprintf(progress, "%s %s [%d/%d]\n",
				statusStyle(scan.Status(ev.Message)).Render(ev.Message), relTo(scanned.Root, ev.File), ev.Current, ev.Total)
		}).Process(ctx, scanned.Order, orch.Run)
	}
	if res == nil {
		return batchErr
	}

	printBatchResult(out, scanned.Root, res)
	if flags.Report != "" {
		if err := scan.WriteReport(flags.Report, res); err != nil {
			return err
		}
		fmt.Fprintf(out, "report: %s\n", flags.Report)
	}
	if batchErr != nil {
		return batchErr
	}
	for _, r := range res.Results {
		if r.Status == scan.StatusFailed {
			return &outcomeError{code: r.Code, message: fmt.Sprintf("%d of %d file(s) failed", res.FailedCount, res.TotalFiles)}
		}
	}
	return nil
}

func newBatchProcessor(cfg *config.Config, progress pipeline.ProgressFunc) *scan.BatchProcessor {
	return scan.NewBatchProcessor(
		scan.WithConcurrency(cfg.Batch.Concurrency),
		scan.WithStopOnFailure(cfg.Batch.StopOnFailure),
		scan.WithBatchProgress(progress),
		scan.WithBatchLogger(logging.New("batch")),
	)
}

func printBatchResult(w io.Writer, root string, res *scan.BatchResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, styleHeader.Render("Batch Summary"))
	for _, r := range res.Results {
		line := fmt.Sprintf("  %-8s %s", r.Status, relTo(root, r.File))
		if r.Status != scan.StatusSkipped {
			line += fmt.Sprintf("  score=%d attempts=%d", r.Score, r.Attempts)
		}
		if r.Error != "" && r.Status == scan.StatusFailed {
			line += "  " + r.Error
		}
		fmt.Fprintln(w, statusStyle(r.Status).Render(line))
	}
	fmt.Fprintf(w, "\n%d succeeded, %d failed, %d skipped of %d in %s (%d llm calls, %d test runs)\n",
		res.SuccessCount, res.FailedCount, res.SkippedCount, res.TotalFiles,
		res.Duration.Round(time.Millisecond), res.Metrics.LLMCalls, res.Metrics.TestRuns)
}
