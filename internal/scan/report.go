package scan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WriteReport writes res to path as JSON when the extension is .json and
// as YAML otherwise.
func WriteReport(path string, res *BatchResult) error {
	data, err := EncodeReport(res, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("scan: creating report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("scan: writing report: %w", err)
	}
	return nil
}

// EncodeReport renders res as indented JSON or YAML.
func EncodeReport(res *BatchResult, asJSON bool) ([]byte, error) {
	if asJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("scan: encoding report: %w", err)
		}
		return append(data, '\n'), nil
	}
	data, err := yaml.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("scan: encoding report: %w", err)
	}
	return data, nil
}
