package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/config"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

type runFlags struct {
	Framework string
	JSON      bool
	Raw       bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <test-file>",
		Short: "Run one test file and print the parsed result",
		Long: `Run a single test file with the configured framework and print the
normalized result: counts, failures with expected and actual values, and
the exit code. No backend is involved.`,
		Example: `  testsmith run src/math.test.ts
  testsmith run src/math.test.ts --framework vitest --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, args[0], &flags)
		},
	}
	cmd.Flags().StringVar(&flags.Framework, "framework", "", "Test framework: auto, jest, vitest or mocha")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output the result as JSON")
	cmd.Flags().BoolVar(&flags.Raw, "raw", false, "Also print the raw runner output")
	return cmd
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func runTests(cmd *cobra.Command, testFile string, flags *runFlags) error {
	if _, err := os.Stat(testFile); err != nil {
		return apperr.New(apperr.KindFileNotFound, "run", "test file %s: %v", testFile, err)
	}

	var overrides *config.CLIOverrides
	if cmd.Flags().Changed("framework") {
		overrides = &config.CLIOverrides{Framework: &flags.Framework}
	}
	resolved, err := loadConfig(overrides)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := buildComponents(ctx, resolved.Config, false)
	if err != nil {
		return err
	}

	res, err := c.runner.Run(ctx, testFile, c.framework)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flags.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printRunOutput(out, testFile, res, flags.Raw)
	}

	if !res.Success {
		return &outcomeError{code: apperr.CodeTestRunFailed, message: fmt.Sprintf("%s: %d of %d test(s) failed", testFile, res.Failed, res.TotalTests)}
	}
	return nil
}

func printRunOutput(w io.Writer, testFile string, res *testrun.TestRunOutput, raw bool) {
	label := styleSuccess.Render("PASS")
	if !res.Success {
		label = styleErrorLbl.Render("FAIL")
	}
	fmt.Fprintf(w, "%s %s (%s, exit %d, %s)\n", label, testFile, res.Framework, res.ExitCode, res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  %d passed, %d failed, %d skipped of %d\n", res.Passed, res.Failed, res.Skipped, res.TotalTests)
	if res.TimedOut {
		fmt.Fprintln(w, styleWarnLbl.Render("  timed out"))
	}
	if !res.SummaryFound {
		fmt.Fprintln(w, styleMuted.Render("  no summary line found in runner output"))
	}
	if summary := res.FailureSummary(); summary != "" {
		fmt.Fprintln(w, styleSection.Render("Failures"))
		fmt.Fprintln(w, summary)
	}
	if raw && res.RawOutput != "" {
		fmt.Fprintln(w, styleSeparator.Render("----- runner output -----"))
		fmt.Fprintln(w, res.RawOutput)
	}
}
