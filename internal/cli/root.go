package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/config"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
)

// Global flag values accessible to all subcommands.
var (
	flagVerbose bool
	flagQuiet   bool
	flagConfig  string
	flagDir     string
	flagDryRun  bool
	flagNoColor bool
)

// rootCmd is the base command for testsmith.
var rootCmd = &cobra.Command{
	Use:   "testsmith",
	Short: "Generate and self-heal unit tests for TypeScript and JavaScript",
	Long: `testsmith generates unit tests for TypeScript and JavaScript sources with an
LLM backend, checks them statically, runs them with jest, vitest or mocha, and
feeds failures back to the backend until the tests pass or the retry budget
runs out.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Check env vars for flags not explicitly set on command line.
		if !cmd.Flags().Changed("verbose") && os.Getenv("TESTSMITH_VERBOSE") != "" {
			flagVerbose = true
		}
		if !cmd.Flags().Changed("quiet") && os.Getenv("TESTSMITH_QUIET") != "" {
			flagQuiet = true
		}
		if !cmd.Flags().Changed("no-color") && (os.Getenv("NO_COLOR") != "" || os.Getenv("TESTSMITH_NO_COLOR") != "") {
			flagNoColor = true
		}

		jsonFormat := os.Getenv("TESTSMITH_LOG_FORMAT") == "json"
		logging.Setup(flagVerbose, flagQuiet, jsonFormat)

		if flagNoColor {
			lipgloss.SetColorProfile(termenv.Ascii)
		}

		if flagDir != "" {
			if err := os.Chdir(flagDir); err != nil {
				return apperr.New(apperr.KindInvalidArgs, "cli", "changing directory to %s: %v", flagDir, err)
			}
		}

		// Backend keys may live in .env; already-set variables win.
		if err := config.LoadDotEnv("."); err != nil {
			logging.New("cli").Warn("ignoring .env", "error", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (debug) output (env: TESTSMITH_VERBOSE)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress all output except errors (env: TESTSMITH_QUIET)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to testsmith.toml config file")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Override working directory")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Generate and validate without writing or running tests")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output (env: TESTSMITH_NO_COLOR, NO_COLOR)")
}

// outcomeError reports a command that ran to the end without succeeding,
// such as a file whose tests still fail after healing. It carries the
// result code for the exit status.
type outcomeError struct {
	code    apperr.ResultCode
	message string
}

func (e *outcomeError) Error() string { return e.message }

// ExitCode maps err onto the process exit status: 0 for nil, the result
// code's status for classified errors, and 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var oe *outcomeError
	if errors.As(err, &oe) {
		return oe.code.ExitCode()
	}
	if apperr.KindOf(err) != "" {
		return apperr.CodeFor(err).ExitCode()
	}
	return 1
}

// Execute runs the root command and returns the exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, styleErrorLbl.Render("Error:"), err)
	}
	return ExitCode(err)
}

// NewRootCmd returns a fresh root command carrying the global flags and
// every registered subcommand, for completion and man page generators.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               rootCmd.Use,
		Short:             rootCmd.Short,
		Long:              rootCmd.Long,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: rootCmd.PersistentPreRunE,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose (debug) output (env: TESTSMITH_VERBOSE)")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors (env: TESTSMITH_QUIET)")
	cmd.PersistentFlags().String("config", "", "Path to testsmith.toml config file")
	cmd.PersistentFlags().String("dir", "", "Override working directory")
	cmd.PersistentFlags().Bool("dry-run", false, "Generate and validate without writing or running tests")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output (env: TESTSMITH_NO_COLOR, NO_COLOR)")

	for _, child := range rootCmd.Commands() {
		cmd.AddCommand(child)
	}
	return cmd
}
