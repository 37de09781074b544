package analyzer

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Supported language names.
const (
	LangTypeScript = "typescript"
	LangTSX        = "tsx"
	LangJavaScript = "javascript"
)

// LanguageFor picks the grammar for path by extension. Unknown extensions
// return ok=false.
func LanguageFor(path string) (lang *sitter.Language, name string, ok bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage(), LangTypeScript, true
	case ".tsx":
		return tsx.GetLanguage(), LangTSX, true
	case ".js", ".jsx", ".mjs", ".cjs":
		// The javascript grammar includes JSX.
		return javascript.GetLanguage(), LangJavaScript, true
	default:
		return nil, "", false
	}
}

// Supported reports whether path has an extension the analyzer can parse.
func Supported(path string) bool {
	_, _, ok := LanguageFor(path)
	return ok
}
