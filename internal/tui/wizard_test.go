package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/config"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

func TestValidateImportSuffix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		wantErr bool
	}{
		{in: ""},
		{in: "  "},
		{in: ".js"},
		{in: ".mjs"},
		{in: "js", wantErr: true},
		{in: "./js", wantErr: true},
		{in: ". js", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := ValidateImportSuffix(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInitAnswers_StarterVars(t *testing.T) {
	t.Parallel()

	a := InitAnswers{Provider: "openai", Framework: "vitest", ImportSuffix: " .js ", Confirmed: true}

	assert.Equal(t, config.StarterVars{Provider: "openai", Framework: "vitest", ImportSuffix: ".js"}, a.StarterVars())
}

func TestNewInitForm_FillsDefaults(t *testing.T) {
	t.Parallel()

	var a InitAnswers
	form := NewInitForm(&a, nil)

	assert.NotNil(t, form)
	assert.Equal(t, "claude", a.Provider, "the first provider is pre-selected")
	assert.Equal(t, testrun.FrameworkAuto, a.Framework)
}

func TestNewInitForm_KeepsGivenAnswers(t *testing.T) {
	t.Parallel()

	a := InitAnswers{Provider: "openai", Framework: "mocha"}
	NewInitForm(&a, []string{"claude", "openai"})

	assert.Equal(t, "openai", a.Provider)
	assert.Equal(t, "mocha", a.Framework)
}
