package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
)

// ValidationSeverity indicates whether a validation issue is an error or warning.
type ValidationSeverity string

const (
	// SeverityError marks a configuration that cannot be used.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning marks a usable configuration with a likely mistake.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	Severity ValidationSeverity
	Field    string // dotted path, e.g. "runner.framework"
	Message  string
}

// ValidationResult holds all validation findings.
type ValidationResult struct {
	Issues []ValidationIssue
}

// HasErrors returns true if any issue has error severity.
func (vr *ValidationResult) HasErrors() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings returns true if any issue has warning severity.
func (vr *ValidationResult) HasWarnings() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (vr *ValidationResult) Errors() []ValidationIssue {
	var errs []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (vr *ValidationResult) Warnings() []ValidationIssue {
	var warns []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			warns = append(warns, issue)
		}
	}
	return warns
}

// Err folds the error-severity issues into one error, nil when there are none.
func (vr *ValidationResult) Err() error {
	errs := vr.Errors()
	if len(errs) == 0 {
		return nil
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Field + ": " + e.Message
	}
	return errors.New("invalid configuration: " + strings.Join(parts, "; "))
}

// structValidator reports field paths using the toml tag names.
var structValidator = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// Validate checks cfg for correctness. meta may be nil when no file was
// loaded; otherwise undecoded keys are reported as warnings.
func Validate(cfg *Config, meta *toml.MetaData) *ValidationResult {
	vr := &ValidationResult{}

	if cfg == nil {
		addError(vr, "", "configuration is nil")
		return vr
	}

	validateTags(vr, "", cfg)
	for name, pc := range cfg.Providers {
		pc := pc
		validateTags(vr, "providers."+name, &pc)
	}

	validateProject(vr, &cfg.Project)
	validateGeneration(vr, cfg)
	validateRuntime(vr, cfg)
	validateUnknownKeys(vr, meta)

	return vr
}

func validateTags(vr *ValidationResult, prefix string, s interface{}) {
	err := structValidator.Struct(s)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		addError(vr, prefix, err.Error())
		return
	}
	for _, fe := range verrs {
		field := fe.Namespace()
		// Drop the root struct name.
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if prefix != "" {
			field = prefix + "." + field
		}
		addError(vr, field, describeTag(fe))
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%v is not one of: %s", fe.Value(), fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "startswith":
		return fmt.Sprintf("%q must start with %q", fe.Value(), fe.Param())
	case "url":
		return fmt.Sprintf("%q is not a valid URL", fe.Value())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func validateProject(vr *ValidationResult, p *ProjectConfig) {
	if len(p.SourceExtensions) == 0 {
		addError(vr, "project.source_extensions", "must not be empty")
	}

	for i, pattern := range p.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			addError(vr, fmt.Sprintf("project.exclude[%d]", i),
				fmt.Sprintf("invalid glob %q", pattern))
		}
	}

	if p.OutputDir != "" {
		if _, err := os.Stat(p.OutputDir); err != nil {
			addWarning(vr, "project.output_dir",
				fmt.Sprintf("directory %q does not exist; it will be created", p.OutputDir))
		}
	}
}

func validateGeneration(vr *ValidationResult, cfg *Config) {
	g := &cfg.Generation

	if g.Provider == "" {
		addError(vr, "generation.provider", "must not be empty")
	} else if _, ok := cfg.Providers[g.Provider]; !ok {
		addError(vr, "generation.provider",
			fmt.Sprintf("references undefined provider %q", g.Provider))
	}

	if g.Timeout <= 0 {
		addError(vr, "generation.timeout", "must be positive")
	}
	if g.MaxDelay > 0 && g.BaseDelay > g.MaxDelay {
		addWarning(vr, "generation.base_delay", "is larger than generation.max_delay")
	}

	for name, pc := range cfg.Providers {
		if name == "openai" && pc.APIKeyEnv == "" {
			addWarning(vr, "providers.openai.api_key_env", "not set; OPENAI_API_KEY is assumed")
		}
	}
}

func validateRuntime(vr *ValidationResult, cfg *Config) {
	if cfg.Runner.Timeout <= 0 {
		addError(vr, "runner.timeout", "must be positive")
	}
	if cfg.Batch.Concurrency < 1 {
		addError(vr, "batch.concurrency", "must be at least 1")
	}
	if cfg.Healing.Enabled && cfg.Healing.MaxRetries == 0 {
		addWarning(vr, "healing.max_retries", "is 0; failing tests will not be fixed")
	}
}

// validateUnknownKeys reports TOML keys that did not map to any field.
func validateUnknownKeys(vr *ValidationResult, meta *toml.MetaData) {
	if meta == nil {
		return
	}
	for _, key := range meta.Undecoded() {
		addWarning(vr, strings.Join(key, "."), "unknown configuration key")
	}
}

func addError(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{Severity: SeverityError, Field: field, Message: message})
}

func addWarning(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{Severity: SeverityWarning, Field: field, Message: message})
}
