// Package analyzer extracts the structure testsmith needs from one
// TypeScript or JavaScript source file: imports, exports, exported types and
// function signatures.
//
// The pipeline depends only on the Analyzer interface and the plain data
// types below; tree-sitter nodes never leave this package.
package analyzer

import "context"

// Analyzer analyzes one source file.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (*FileAnalysis, error)
}

// ImportSpecifier is one name bound by an import statement.
type ImportSpecifier struct {
	Name     string `json:"name"`
	Alias    string `json:"alias,omitempty"`
	TypeOnly bool   `json:"typeOnly,omitempty"`
}

// ImportInfo is one import statement or require call.
type ImportInfo struct {
	Path        string            `json:"path"`
	Specifiers  []ImportSpecifier `json:"specifiers,omitempty"`
	IsDefault   bool              `json:"isDefault,omitempty"`
	IsNamespace bool              `json:"isNamespace,omitempty"`
	TypeOnly    bool              `json:"typeOnly,omitempty"`
	Line        int               `json:"line"`
}

// IsExternal reports whether the import names a package rather than a file.
func (i ImportInfo) IsExternal() bool {
	return IsExternalPath(i.Path)
}

// IsExternalPath reports whether an import path names a package outside the
// local source tree, i.e. it does not start with "." or "/".
func IsExternalPath(p string) bool {
	return p != "" && p[0] != '.' && p[0] != '/'
}

// FunctionSignature describes a function exported by a file.
type FunctionSignature struct {
	Name       string   `json:"name"`
	Params     []string `json:"params,omitempty"`
	ReturnType string   `json:"returnType,omitempty"`
	Async      bool     `json:"async,omitempty"`
	Exported   bool     `json:"exported"`
	// Signature is the declaration header as written, e.g.
	// "function add(a: number, b: number): number".
	Signature string `json:"signature"`
	Line      int    `json:"line"`
}

// DeclKind discriminates Declaration.
type DeclKind string

const (
	DeclImport           DeclKind = "import"
	DeclExport           DeclKind = "export"
	DeclFunction         DeclKind = "function"
	DeclClass            DeclKind = "class"
	DeclVariableFunction DeclKind = "variable_function"
)

// Declaration is one top-level structure. Exactly one of Import or Function
// is set for DeclImport and DeclFunction/DeclVariableFunction respectively.
type Declaration struct {
	Kind     DeclKind           `json:"kind"`
	Name     string             `json:"name,omitempty"`
	Exported bool               `json:"exported,omitempty"`
	Line     int                `json:"line"`
	Import   *ImportInfo        `json:"import,omitempty"`
	Function *FunctionSignature `json:"function,omitempty"`
}

// FileAnalysis is the analyzer's result for one file.
type FileAnalysis struct {
	Path       string `json:"path"`
	SourceCode string `json:"-"`
	// Language is "typescript", "tsx" or "javascript".
	Language     string              `json:"language"`
	Imports      []ImportInfo        `json:"imports"`
	Exports      []string            `json:"exports"`
	Types        []string            `json:"types"`
	Functions    []FunctionSignature `json:"functions"`
	Classes      []string            `json:"classes,omitempty"`
	Declarations []Declaration       `json:"declarations"`
	// HasSyntaxErrors is set when the parse tree contains error nodes.
	// Analysis still returns whatever could be extracted.
	HasSyntaxErrors bool `json:"hasSyntaxErrors,omitempty"`
}

// ExportedFunctions returns the exported subset of Functions.
func (fa *FileAnalysis) ExportedFunctions() []FunctionSignature {
	var out []FunctionSignature
	for _, fn := range fa.Functions {
		if fn.Exported {
			out = append(out, fn)
		}
	}
	return out
}
