package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/config"
)

// configCmd prints the resolved configuration; its subcommands inspect it
// further.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration with source annotations",
	Long: `Display the fully-resolved configuration showing each value and the source
it came from (cli flag, environment variable, config file, or default).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, _, err := loadAndResolveConfig(nil)
		if err != nil {
			return err
		}
		printResolvedConfig(cmd.OutOrStdout(), resolved)
		return nil
	},
}

// configValidateCmd implements "testsmith config validate".
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and report issues",
	Long:  "Check the configuration for errors and warnings.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, meta, err := loadAndResolveConfig(nil)
		if err != nil {
			return err
		}
		result := config.Validate(resolved.Config, meta)
		printValidationResult(cmd.OutOrStdout(), result)
		if result.HasErrors() {
			return apperr.New(apperr.KindInvalidArgs, "config", "configuration has %d error(s)", len(result.Errors()))
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

const fieldWidth = 22 // column width for field names

func printResolvedConfig(out io.Writer, rc *config.ResolvedConfig) {
	const title = "Resolved Configuration"
	fmt.Fprintln(out, styleHeader.Render(title))
	fmt.Fprintln(out, styleSeparator.Render(strings.Repeat("=", len(title))))
	fmt.Fprintln(out)

	if rc.Path != "" {
		fmt.Fprintf(out, "Config file: %s\n", rc.Path)
	} else {
		fmt.Fprintln(out, "Config file: none found")
	}
	fmt.Fprintln(out)

	c := rc.Config
	src := func(key string) config.ConfigSource { return rc.Sources[key] }

	fmt.Fprintln(out, styleSection.Render("[project]"))
	printField(out, "source_extensions", fmtSlice(c.Project.SourceExtensions), src("project.source_extensions"))
	printField(out, "exclude", fmtSlice(c.Project.Exclude), src("project.exclude"))
	printField(out, "output_dir", fmtStr(c.Project.OutputDir), src("project.output_dir"))
	printField(out, "test_suffix", fmtStr(c.Project.TestSuffix), src("project.test_suffix"))
	printField(out, "import_suffix", fmtStr(c.Project.ImportSuffix), src("project.import_suffix"))
	fmt.Fprintln(out)

	g := c.Generation
	fmt.Fprintln(out, styleSection.Render("[generation]"))
	printField(out, "provider", fmtStr(g.Provider), src("generation.provider"))
	printField(out, "model", fmtStr(g.Model), src("generation.model"))
	printField(out, "temperature", fmt.Sprintf("%g", g.Temperature), src("generation.temperature"))
	printField(out, "max_tokens", fmt.Sprint(g.MaxTokens), src("generation.max_tokens"))
	printField(out, "timeout", fmtDur(g.Timeout), src("generation.timeout"))
	printField(out, "max_attempts", fmt.Sprint(g.MaxAttempts), src("generation.max_attempts"))
	printField(out, "base_delay", fmtDur(g.BaseDelay), src("generation.base_delay"))
	printField(out, "max_delay", fmtDur(g.MaxDelay), src("generation.max_delay"))
	fmt.Fprintln(out)

	fmt.Fprintln(out, styleSection.Render("[healing]"))
	printField(out, "enabled", fmt.Sprint(c.Healing.Enabled), src("healing.enabled"))
	printField(out, "max_retries", fmt.Sprint(c.Healing.MaxRetries), src("healing.max_retries"))
	printField(out, "always_run", fmt.Sprint(c.Healing.AlwaysRun), src("healing.always_run"))
	fmt.Fprintln(out)

	fmt.Fprintln(out, styleSection.Render("[runner]"))
	printField(out, "framework", fmtStr(c.Runner.Framework), src("runner.framework"))
	printField(out, "timeout", fmtDur(c.Runner.Timeout), src("runner.timeout"))
	printField(out, "command", fmtSlice(c.Runner.Command), src("runner.command"))
	fmt.Fprintln(out)

	fmt.Fprintln(out, styleSection.Render("[quality]"))
	printField(out, "auto_fix", fmt.Sprint(c.Quality.AutoFix), src("quality.auto_fix"))
	printField(out, "min_score", fmt.Sprint(c.Quality.MinScore), src("quality.min_score"))
	printField(out, "mock_exempt", fmtSlice(c.Quality.MockExempt), src("quality.mock_exempt"))
	fmt.Fprintln(out)

	fmt.Fprintln(out, styleSection.Render("[batch]"))
	printField(out, "concurrency", fmt.Sprint(c.Batch.Concurrency), src("batch.concurrency"))
	printField(out, "stop_on_failure", fmt.Sprint(c.Batch.StopOnFailure), src("batch.stop_on_failure"))
	fmt.Fprintln(out)

	names := make([]string, 0, len(c.Providers))
	for n := range c.Providers {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		p := c.Providers[name]
		prefix := "providers." + name
		fmt.Fprintln(out, styleSection.Render(fmt.Sprintf("[providers.%s]", name)))
		printField(out, "command", fmtStr(p.Command), src(prefix+".command"))
		printField(out, "model", fmtStr(p.Model), src(prefix+".model"))
		printField(out, "base_url", fmtStr(p.BaseURL), src(prefix+".base_url"))
		printField(out, "api_key_env", fmtStr(p.APIKeyEnv), src(prefix+".api_key_env"))
		printField(out, "requests_per_minute", fmt.Sprint(p.RequestsPerMinute), src(prefix+".requests_per_minute"))
		fmt.Fprintln(out)
	}
}

// printField writes a single key = value (source: ...) line. Keys without a
// recorded source are defaults.
func printField(out io.Writer, name, value string, src config.ConfigSource) {
	if src == "" {
		src = config.SourceDefault
	}
	padded := fmt.Sprintf("  %-*s", fieldWidth, name)
	srcLabel := sourceStyle(src).Render(fmt.Sprintf("(source: %s)", src))
	fmt.Fprintf(out, "%s = %-40s %s\n", padded, value, srcLabel)
}

func fmtStr(s string) string {
	return fmt.Sprintf("%q", s)
}

func fmtDur(d time.Duration) string {
	return d.String()
}

func fmtSlice(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func printValidationResult(out io.Writer, result *config.ValidationResult) {
	const title = "Configuration Validation"
	fmt.Fprintln(out, styleHeader.Render(title))
	fmt.Fprintln(out, styleSeparator.Render(strings.Repeat("=", len(title))))
	fmt.Fprintln(out)

	errs := result.Errors()
	warns := result.Warnings()

	if len(errs) == 0 && len(warns) == 0 {
		fmt.Fprintln(out, styleSuccess.Render("No issues found."))
		return
	}

	if len(errs) > 0 {
		fmt.Fprintln(out, styleErrorLbl.Render("Errors:"))
		for _, issue := range errs {
			fmt.Fprintf(out, "  [%s] %s\n", issue.Field, issue.Message)
		}
		fmt.Fprintln(out)
	}

	if len(warns) > 0 {
		fmt.Fprintln(out, styleWarnLbl.Render("Warnings:"))
		for _, issue := range warns {
			fmt.Fprintf(out, "  [%s] %s\n", issue.Field, issue.Message)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "%d error(s), %d warning(s)\n", len(errs), len(warns))
}
