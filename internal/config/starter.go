package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

//go:embed starter.toml.tmpl
var starterTemplate string

// StarterVars fills the starter testsmith.toml.
type StarterVars struct {
	Provider     string
	Framework    string
	ImportSuffix string
}

// RenderStarter returns the starter configuration text.
func RenderStarter(vars StarterVars) ([]byte, error) {
	if vars.Provider == "" {
		vars.Provider = "claude"
	}
	if vars.Framework == "" {
		vars.Framework = "auto"
	}

	tmpl, err := template.New("starter").Delims("[[", "]]").Parse(starterTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing starter template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("executing starter template: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteStarter writes dir/testsmith.toml. An existing file is left alone
// unless force is set; the returned bool reports whether a file was written.
func WriteStarter(dir string, vars StarterVars, force bool) (string, bool, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err == nil && !force {
		return path, false, nil
	}

	data, err := RenderStarter(vars)
	if err != nil {
		return "", false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", false, fmt.Errorf("writing %s: %w", path, err)
	}
	return path, true, nil
}
