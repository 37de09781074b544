package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/config"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/pipeline"
)

// generateFlags are shared by generate and batch.
type generateFlags struct {
	Provider    string
	Model       string
	Framework   string
	SelfHeal    bool
	NoSelfHeal  bool
	MaxRetries  int
	AutoFix     bool
	NoAutoFix   bool
	OutputDir   string
	ShowCode    bool
	progressOut io.Writer
}

func (f *generateFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.Provider, "provider", "", "Backend to use (default: generation.provider)")
	fs.StringVar(&f.Model, "model", "", "Model override for the backend")
	fs.StringVar(&f.Framework, "framework", "", "Test framework: auto, jest, vitest or mocha")
	fs.BoolVar(&f.SelfHeal, "self-heal", false, "Run the tests and fix failures (default: healing.enabled)")
	fs.BoolVar(&f.NoSelfHeal, "no-self-heal", false, "Disable the run/fix loop")
	fs.IntVar(&f.MaxRetries, "max-retries", 0, "Fix attempts per file (default: healing.max_retries)")
	fs.BoolVar(&f.AutoFix, "auto-fix", false, "Accept static auto-fixes (default: quality.auto_fix)")
	fs.BoolVar(&f.NoAutoFix, "no-auto-fix", false, "Keep generated code as the backend wrote it")
	fs.StringVar(&f.OutputDir, "output-dir", "", "Directory for generated test files (default: next to the source)")
}

// overrides turns the flags that were set into config overrides.
func (f *generateFlags) overrides(fs *pflag.FlagSet) (*config.CLIOverrides, error) {
	o := &config.CLIOverrides{}
	if fs.Changed("self-heal") && fs.Changed("no-self-heal") {
		return nil, apperr.New(apperr.KindInvalidArgs, "cli", "--self-heal and --no-self-heal are mutually exclusive")
	}
	if fs.Changed("auto-fix") && fs.Changed("no-auto-fix") {
		return nil, apperr.New(apperr.KindInvalidArgs, "cli", "--auto-fix and --no-auto-fix are mutually exclusive")
	}
	if fs.Changed("provider") {
		o.Provider = &f.Provider
	}
	if fs.Changed("model") {
		o.Model = &f.Model
	}
	if fs.Changed("framework") {
		o.Framework = &f.Framework
	}
	if fs.Changed("output-dir") {
		o.OutputDir = &f.OutputDir
	}
	if fs.Changed("self-heal") {
		o.SelfHeal = boolPtr(f.SelfHeal)
	}
	if fs.Changed("no-self-heal") {
		o.SelfHeal = boolPtr(!f.NoSelfHeal)
	}
	if fs.Changed("max-retries") {
		if f.MaxRetries < 0 {
			return nil, apperr.New(apperr.KindInvalidArgs, "cli", "--max-retries must be >= 0, got %d", f.MaxRetries)
		}
		o.MaxRetries = &f.MaxRetries
	}
	if fs.Changed("auto-fix") {
		o.AutoFix = boolPtr(f.AutoFix)
	}
	if fs.Changed("no-auto-fix") {
		o.AutoFix = boolPtr(!f.NoAutoFix)
	}
	return o, nil
}

func boolPtr(b bool) *bool { return &b }

func newGenerateCmd() *cobra.Command {
	var flags generateFlags

	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Generate tests for one source file",
		Long: `Generate a test file for one TypeScript or JavaScript source file.

The source is analyzed, its local imports resolved, and the backend asked for
a test file. The result is checked statically; with self-healing enabled the
tests are run and failures are sent back to the backend until they pass or
the retry budget is spent.

Exit codes:
  0 - tests generated (and passing when run)
  2 - invalid arguments or configuration
  3 - source file not found
  4 - backend error
  5 - generation failed
  6 - static validation failed
  7 - tests failed and healing was not possible
  8 - tests still failing after every fix attempt`,
		Example: `  # Generate and heal tests for one file
  testsmith generate src/math.ts

  # Use vitest and a specific model, at most 5 fix attempts
  testsmith generate src/math.ts --framework vitest --model gpt-4o --max-retries 5

  # Print the generated code without writing or running anything
  testsmith generate src/math.ts --dry-run --show-code`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], &flags)
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&flags.ShowCode, "show-code", false, "Print the generated test code to stdout")
	return cmd
}

func init() {
	rootCmd.AddCommand(newGenerateCmd())
}

func runGenerate(cmd *cobra.Command, source string, flags *generateFlags) error {
	if _, err := os.Stat(source); err != nil {
		return apperr.New(apperr.KindFileNotFound, "generate", "source file %s: %v", source, err)
	}

	overrides, err := flags.overrides(cmd.Flags())
	if err != nil {
		return err
	}
	resolved, err := loadConfig(overrides)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := buildComponents(ctx, resolved.Config, true)
	if err != nil {
		return err
	}

	orch := c.orchestrator(progressPrinter(flags.progressWriter(cmd)), logging.New("pipeline"))
	res, err := orch.Run(ctx, source)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flags.ShowCode && res.State != nil {
		fmt.Fprint(out, res.State.TestCode)
	}
	printFileResult(out, res)

	if !res.Success {
		return &outcomeError{code: res.Code, message: fmt.Sprintf("%s: %s", filepath.Base(source), res.Error)}
	}
	return nil
}

// progressWriter is stderr unless quiet or redirected by a test.
func (f *generateFlags) progressWriter(cmd *cobra.Command) io.Writer {
	if f.progressOut != nil {
		return f.progressOut
	}
	if flagQuiet {
		return io.Discard
	}
	return cmd.ErrOrStderr()
}

// progressPrinter renders pipeline events as one muted line each.
func progressPrinter(w io.Writer) pipeline.ProgressFunc {
	return func(ev pipeline.ProgressEvent) {
		line := fmt.Sprintf("%-10s %s  %s", ev.Phase, filepath.Base(ev.File), ev.Message)
		if ev.Total > 0 {
			line += fmt.Sprintf(" [%d/%d]", ev.Current, ev.Total)
		}
		fmt.Fprintln(w, styleMuted.Render(line))
	}
}

// printFileResult writes the one-file summary.
func printFileResult(w io.Writer, res *pipeline.FileResult) {
	label := styleSuccess.Render("PASS")
	if !res.Success {
		label = styleErrorLbl.Render("FAIL")
	}
	fmt.Fprintf(w, "%s %s\n", label, res.SourcePath)
	if res.Written {
		fmt.Fprintf(w, "  test file: %s\n", res.TestPath)
	}
	fmt.Fprintf(w, "  result:    %s\n", res.Code)
	fmt.Fprintf(w, "  score:     %d\n", res.Score)
	fmt.Fprintf(w, "  attempts:  %d\n", res.Attempts)
	fmt.Fprintf(w, "  llm calls: %d\n", res.Metrics.LLMCalls)
	fmt.Fprintf(w, "  duration:  %s\n", res.Duration.Round(time.Millisecond))
	if res.Error != "" {
		fmt.Fprintf(w, "  reason:    %s\n", res.Error)
	}
}

// commandContext returns cmd's context cancelled on interrupt.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
