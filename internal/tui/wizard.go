package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/config"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

// ErrWizardCancelled is returned when the user aborts the init wizard or
// declines to write the file.
var ErrWizardCancelled = errors.New("wizard cancelled by user")

const wizardWidth = 80

// InitAnswers are the values collected by the init wizard.
type InitAnswers struct {
	Provider     string
	Framework    string
	ImportSuffix string
	Confirmed    bool
}

// StarterVars converts the answers into template variables.
func (a InitAnswers) StarterVars() config.StarterVars {
	return config.StarterVars{
		Provider:     a.Provider,
		Framework:    a.Framework,
		ImportSuffix: strings.TrimSpace(a.ImportSuffix),
	}
}

// RunInitWizard asks for the starter file's provider, framework and import
// suffix, pre-filled from defaults. providers lists the selectable backends.
func RunInitWizard(defaults config.StarterVars, providers []string) (config.StarterVars, error) {
	answers := InitAnswers{
		Provider:     defaults.Provider,
		Framework:    defaults.Framework,
		ImportSuffix: defaults.ImportSuffix,
	}
	if err := NewInitForm(&answers, providers).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return config.StarterVars{}, ErrWizardCancelled
		}
		return config.StarterVars{}, fmt.Errorf("init wizard: %w", err)
	}
	if !answers.Confirmed {
		return config.StarterVars{}, ErrWizardCancelled
	}
	return answers.StarterVars(), nil
}

// NewInitForm builds the wizard form bound to answers.
func NewInitForm(answers *InitAnswers, providers []string) *huh.Form {
	if len(providers) == 0 {
		providers = []string{"claude", "openai"}
	}
	if answers.Provider == "" {
		answers.Provider = providers[0]
	}
	if answers.Framework == "" {
		answers.Framework = testrun.FrameworkAuto
	}

	providerOpts := make([]huh.Option[string], len(providers))
	for i, p := range providers {
		providerOpts[i] = huh.NewOption(p, p)
	}
	frameworkOpts := []huh.Option[string]{huh.NewOption("auto (detect from package.json)", testrun.FrameworkAuto)}
	for _, fw := range testrun.Frameworks() {
		frameworkOpts = append(frameworkOpts, huh.NewOption(string(fw), string(fw)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which backend should generate tests?").
				Options(providerOpts...).
				Value(&answers.Provider),
			huh.NewSelect[string]().
				Title("Which test framework does the project use?").
				Options(frameworkOpts...).
				Value(&answers.Framework),
			huh.NewInput().
				Title("Import suffix").
				Description(`Suffix relative imports need, e.g. ".js" for ESM. Leave empty for none.`).
				Value(&answers.ImportSuffix).
				Validate(ValidateImportSuffix),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write testsmith.toml?").
				Affirmative("Write").
				Negative("Cancel").
				Value(&answers.Confirmed),
		),
	).
		WithTheme(huh.ThemeCharm()).
		WithWidth(wizardWidth)
}

// ValidateImportSuffix accepts an empty suffix or one starting with a dot
// and containing no path separators or spaces.
func ValidateImportSuffix(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, ".") {
		return fmt.Errorf("suffix must start with a dot, e.g. .js")
	}
	if strings.ContainsAny(s, `/\ `) {
		return fmt.Errorf("suffix must not contain slashes or spaces")
	}
	return nil
}
