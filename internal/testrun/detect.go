package testrun

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// detectOrder is the precedence used when several frameworks are present.
var detectOrder = []struct {
	fw    Framework
	globs []string
	dep   string
}{
	{FrameworkVitest, []string{"vitest.config.*", "vitest.workspace.*"}, "vitest"},
	{FrameworkJest, []string{"jest.config.*"}, "jest"},
	{FrameworkMocha, []string{".mocharc*"}, "mocha"},
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Jest            json.RawMessage   `json:"jest"`
}

// DetectFramework picks the test framework used by the project rooted at
// dir. Config files win over package.json dependencies; jest is the default.
func DetectFramework(dir string) Framework {
	for _, d := range detectOrder {
		for _, g := range d.globs {
			if matches, _ := filepath.Glob(filepath.Join(dir, g)); len(matches) > 0 {
				return d.fw
			}
		}
	}

	pkg, ok := readPackageJSON(filepath.Join(dir, "package.json"))
	if !ok {
		return FrameworkJest
	}
	if len(pkg.Jest) > 0 {
		return FrameworkJest
	}
	for _, d := range detectOrder {
		if _, ok := pkg.DevDependencies[d.dep]; ok {
			return d.fw
		}
		if _, ok := pkg.Dependencies[d.dep]; ok {
			return d.fw
		}
	}
	return FrameworkJest
}

// ResolveFramework returns the configured framework, detecting it from dir
// when name is "auto" or empty.
func ResolveFramework(name, dir string) (Framework, error) {
	if name == "" || name == FrameworkAuto {
		return DetectFramework(dir), nil
	}
	return ParseFramework(name)
}

func readPackageJSON(path string) (packageJSON, bool) {
	var pkg packageJSON
	data, err := os.ReadFile(path)
	if err != nil {
		return pkg, false
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return pkg, false
	}
	return pkg, true
}
