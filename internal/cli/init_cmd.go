package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/config"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/tui"
)

var (
	initFlagProvider     string
	initFlagFramework    string
	initFlagImportSuffix string
	initFlagForce        bool
	initFlagInteractive  bool
)

// initCmd writes a starter testsmith.toml. It never loads an existing
// configuration, so it is safe in a fresh directory.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter testsmith.toml",
	Long: `Write a commented testsmith.toml into the working directory. The test
framework is detected from package.json unless --framework is given. An
existing file is preserved unless --force is supplied. With --interactive the
values are asked for in a form, pre-filled from the flags.`,
	Example: `  testsmith init
  testsmith init --provider openai --framework vitest --import-suffix .js`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initFlagProvider, "provider", "claude", "Default backend")
	initCmd.Flags().StringVar(&initFlagFramework, "framework", "", "Test framework (default: detected)")
	initCmd.Flags().StringVar(&initFlagImportSuffix, "import-suffix", "", `Suffix relative imports need, e.g. ".js" for ESM`)
	initCmd.Flags().BoolVar(&initFlagForce, "force", false, "Overwrite an existing testsmith.toml")
	initCmd.Flags().BoolVarP(&initFlagInteractive, "interactive", "i", false, "Ask for the values in a form")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	framework := initFlagFramework
	if framework == "" {
		framework = string(testrun.DetectFramework(dir))
	} else if _, err := testrun.ParseFramework(framework); err != nil && framework != testrun.FrameworkAuto {
		return apperr.Wrap(apperr.KindInvalidArgs, "init", err)
	}

	vars := config.StarterVars{
		Provider:     initFlagProvider,
		Framework:    framework,
		ImportSuffix: initFlagImportSuffix,
	}
	out := cmd.OutOrStdout()
	if initFlagInteractive {
		vars, err = tui.RunInitWizard(vars, defaultProviderNames())
		if errors.Is(err, tui.ErrWizardCancelled) {
			fmt.Fprintln(out, styleWarnLbl.Render("cancelled"))
			return nil
		}
		if err != nil {
			return err
		}
	}

	path, written, err := config.WriteStarter(dir, vars, initFlagForce)
	if err != nil {
		return err
	}

	if !written {
		fmt.Fprintf(out, "%s %s already exists; use --force to overwrite\n", styleWarnLbl.Render("skipped"), path)
		return nil
	}
	fmt.Fprintf(out, "%s %s (provider %s, framework %s)\n", styleSuccess.Render("created"), path, vars.Provider, vars.Framework)
	return nil
}

// defaultProviderNames lists the built-in backends, sorted.
func defaultProviderNames() []string {
	providers := config.NewDefaults().Providers
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
