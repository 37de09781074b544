package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/config"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/quality"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/resolver"
)

type validateFlags struct {
	Source string
	Fix    bool
	JSON   bool
}

func newValidateCmd() *cobra.Command {
	var flags validateFlags

	cmd := &cobra.Command{
		Use:   "validate <test-file>",
		Short: "Run the static checks on an existing test file",
		Long: `Check a test file for syntax errors, lint findings, unresolved imports and
missing mocks, and print its quality score.

With --source the source file's dependencies are resolved so that mock
completeness can be checked. With --fix the auto-fixes are written back to
the test file.`,
		Example: `  testsmith validate src/math.test.ts --source src/math.ts
  testsmith validate src/math.test.ts --fix`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], &flags)
		},
	}
	cmd.Flags().StringVar(&flags.Source, "source", "", "Source file under test, for mock checks")
	cmd.Flags().BoolVar(&flags.Fix, "fix", false, "Write auto-fixed code back to the test file")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output the report as JSON")
	return cmd
}

func init() {
	rootCmd.AddCommand(newValidateCmd())
}

func runValidate(cmd *cobra.Command, testFile string, flags *validateFlags) error {
	code, err := os.ReadFile(testFile)
	if err != nil {
		return apperr.New(apperr.KindFileNotFound, "validate", "test file %s: %v", testFile, err)
	}

	resolved, err := loadConfig(fixOverrides(flags.Fix))
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := buildComponents(ctx, resolved.Config, false)
	if err != nil {
		return err
	}

	var deps []resolver.DependencyInfo
	if flags.Source != "" {
		fa, err := c.analyzer.Analyze(ctx, flags.Source)
		if err != nil {
			return apperr.Wrap(apperr.KindFileNotFound, "validate", err)
		}
		r := resolver.New(c.analyzer, resolver.WithLogger(logging.New("resolver")))
		res, err := r.ResolveDependencies(ctx, fa.Imports, flags.Source)
		if err != nil {
			return err
		}
		deps = res.Dependencies
	}

	report, err := c.validator.Validate(ctx, quality.Input{
		TestFile:     testFile,
		Code:         string(code),
		Dependencies: deps,
		Framework:    c.framework,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flags.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printQualityReport(out, testFile, report)
	}

	if flags.Fix && report.FixedCode != "" && !flagDryRun {
		if err := os.WriteFile(testFile, []byte(report.FixedCode), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", testFile, err)
		}
		if !flags.JSON {
			fmt.Fprintf(out, "wrote %d fix(es) to %s\n", len(report.FixesApplied), testFile)
		}
	}

	if !report.IsValid() {
		return &outcomeError{code: apperr.CodeValidationFailed, message: fmt.Sprintf("%s failed validation (score %d)", testFile, report.Score)}
	}
	return nil
}

// fixOverrides forces auto-fix on when --fix is given, so the report
// carries the fixed code.
func fixOverrides(fix bool) *config.CLIOverrides {
	if !fix {
		return nil
	}
	return &config.CLIOverrides{AutoFix: boolPtr(true)}
}

func printQualityReport(w io.Writer, testFile string, r *quality.QualityReport) {
	label := styleSuccess.Render("VALID")
	if !r.IsValid() {
		label = styleErrorLbl.Render("INVALID")
	}
	fmt.Fprintf(w, "%s %s  score=%d\n", label, testFile, r.Score)

	if len(r.LintErrors) > 0 {
		fmt.Fprintln(w, styleSection.Render("Lint"))
		for _, l := range r.LintErrors {
			lbl := styleWarnLbl.Render(string(l.Severity))
			if l.Severity == quality.SeverityError {
				lbl = styleErrorLbl.Render(string(l.Severity))
			}
			fmt.Fprintf(w, "  %s line %d [%s] %s\n", lbl, l.Line, l.Rule, l.Message)
		}
	}
	if len(r.ImportErrors) > 0 {
		fmt.Fprintln(w, styleSection.Render("Imports"))
		for _, im := range r.ImportErrors {
			fmt.Fprintf(w, "  %s line %d %s: %s\n", styleErrorLbl.Render("error"), im.Line, im.Path, im.Message)
		}
	}
	if len(r.MockIssues) > 0 {
		fmt.Fprintln(w, styleSection.Render("Mocks"))
		for _, m := range r.MockIssues {
			lbl := styleWarnLbl.Render(string(m.Kind))
			if m.Kind == quality.MockMissing {
				lbl = styleErrorLbl.Render(string(m.Kind))
			}
			fmt.Fprintf(w, "  %s %s: %s\n", lbl, m.Module, m.Message)
		}
	}
	if len(r.FixesApplied) > 0 {
		fmt.Fprintln(w, styleSection.Render("Fixes"))
		for _, f := range r.FixesApplied {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
}
