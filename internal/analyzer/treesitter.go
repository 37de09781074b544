package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
)

// DefaultMaxFileSize bounds the files Analyze will read.
const DefaultMaxFileSize = 2 << 20

// TreeSitter analyzes TypeScript and JavaScript with tree-sitter grammars.
// It holds no per-file state and is safe for concurrent use; every call
// creates its own parser.
type TreeSitter struct {
	maxFileSize int64
	logger      *log.Logger
}

// Option configures a TreeSitter.
type Option func(*TreeSitter)

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(t *TreeSitter) {
		if n > 0 {
			t.maxFileSize = n
		}
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(l *log.Logger) Option {
	return func(t *TreeSitter) { t.logger = l }
}

// NewTreeSitter returns an analyzer with the given options applied.
func NewTreeSitter(opts ...Option) *TreeSitter {
	t := &TreeSitter{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.OrDiscard(t.logger)
	return t
}

var _ Analyzer = (*TreeSitter)(nil)

// Analyze reads and analyzes the file at path.
func (t *TreeSitter) Analyze(ctx context.Context, path string) (*FileAnalysis, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.KindFileNotFound, "analyze", "%s does not exist", path)
		}
		return nil, apperr.Wrap(apperr.KindInvalidArgs, "analyze", err)
	}
	if info.IsDir() {
		return nil, apperr.New(apperr.KindInvalidArgs, "analyze", "%s is a directory", path)
	}
	if info.Size() > t.maxFileSize {
		return nil, apperr.New(apperr.KindInvalidArgs, "analyze",
			"%s is %d bytes; limit is %d", path, info.Size(), t.maxFileSize)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgs, "analyze", err)
	}
	return t.AnalyzeSource(ctx, path, src)
}

// AnalyzeSource analyzes src as if it were the contents of path. The path
// only selects the grammar and is recorded in the result.
func (t *TreeSitter) AnalyzeSource(ctx context.Context, path string, src []byte) (*FileAnalysis, error) {
	tree, lang, err := parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	fa := &FileAnalysis{
		Path:            path,
		SourceCode:      string(src),
		Language:        lang,
		Imports:         []ImportInfo{},
		Exports:         []string{},
		Types:           []string{},
		Functions:       []FunctionSignature{},
		Declarations:    []Declaration{},
		HasSyntaxErrors: root.HasError(),
	}

	e := &extractor{src: src, fa: fa, exported: make(map[string]bool)}
	for i := 0; i < int(root.ChildCount()); i++ {
		e.topLevel(root.Child(i))
	}

	t.logger.Debug("analyzed file",
		"path", path,
		"imports", len(fa.Imports),
		"exports", len(fa.Exports),
		"functions", len(fa.Functions),
		"syntax_errors", fa.HasSyntaxErrors,
	)
	return fa, nil
}

// parse builds a syntax tree for src. The caller closes the tree.
func parse(ctx context.Context, path string, src []byte) (*sitter.Tree, string, error) {
	lang, name, ok := LanguageFor(path)
	if !ok {
		return nil, "", apperr.New(apperr.KindInvalidArgs, "parse", "unsupported file type: %s", path)
	}
	if !utf8.Valid(src) {
		return nil, "", apperr.New(apperr.KindInvalidArgs, "parse", "%s is not valid UTF-8", path)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", path, err)
	}
	return tree, name, nil
}

// extractor walks top-level statements into a FileAnalysis.
type extractor struct {
	src      []byte
	fa       *FileAnalysis
	exported map[string]bool
}

func (e *extractor) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(e.src)
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func unquote(s string) string {
	return strings.Trim(s, "'\"`")
}

func hasChild(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == typ {
			return true
		}
	}
	return false
}

func (e *extractor) addExport(name string) {
	if name == "" || e.exported[name] {
		return
	}
	e.exported[name] = true
	e.fa.Exports = append(e.fa.Exports, name)
}

func (e *extractor) addImport(imp ImportInfo) {
	e.fa.Imports = append(e.fa.Imports, imp)
	imp2 := imp
	e.fa.Declarations = append(e.fa.Declarations, Declaration{
		Kind:   DeclImport,
		Name:   imp.Path,
		Line:   imp.Line,
		Import: &imp2,
	})
}

func (e *extractor) topLevel(n *sitter.Node) {
	switch n.Type() {
	case "import_statement":
		e.importStatement(n)
	case "export_statement":
		e.exportStatement(n)
	case "function_declaration", "generator_function_declaration":
		e.function(n, false, "")
	case "class_declaration", "abstract_class_declaration":
		e.class(n, false)
	case "lexical_declaration", "variable_declaration":
		e.variables(n, false)
	case "expression_statement":
		e.commonJSExport(n)
	}
}

func (e *extractor) importStatement(n *sitter.Node) {
	imp := ImportInfo{Line: line(n)}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "type":
			imp.TypeOnly = true
		case "import_clause":
			e.importClause(child, &imp)
		case "string":
			imp.Path = unquote(e.text(child))
		}
	}
	if imp.Path != "" {
		e.addImport(imp)
	}
}

func (e *extractor) importClause(n *sitter.Node, imp *ImportInfo) {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "identifier":
			imp.IsDefault = true
			imp.Specifiers = append(imp.Specifiers, ImportSpecifier{Name: e.text(child), TypeOnly: imp.TypeOnly})
		case "namespace_import":
			imp.IsNamespace = true
			for j := 0; j < int(child.ChildCount()); j++ {
				if gc := child.Child(j); gc.Type() == "identifier" {
					imp.Specifiers = append(imp.Specifiers, ImportSpecifier{Name: "*", Alias: e.text(gc)})
				}
			}
		case "named_imports":
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() != "import_specifier" {
					continue
				}
				spec := ImportSpecifier{
					Name:     e.text(gc.ChildByFieldName("name")),
					Alias:    e.text(gc.ChildByFieldName("alias")),
					TypeOnly: imp.TypeOnly || hasChild(gc, "type"),
				}
				if spec.Name == "" {
					spec.Name = e.text(gc)
				}
				imp.Specifiers = append(imp.Specifiers, spec)
			}
		}
	}
}

func (e *extractor) exportStatement(n *sitter.Node) {
	isDefault := false
	var source string
	var names []string
	first := len(e.fa.Exports)

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "default":
			isDefault = true
		case "function_declaration", "generator_function_declaration":
			name := ""
			if isDefault {
				name = "default"
			}
			e.function(child, true, name)
		case "function_expression", "function", "arrow_function", "generator_function":
			if isDefault {
				e.functionValue(child, "default", true, DeclFunction)
			}
		case "class_declaration", "abstract_class_declaration", "class":
			e.class(child, true)
			if isDefault {
				e.addExport("default")
			}
		case "lexical_declaration", "variable_declaration":
			e.variables(child, true)
		case "interface_declaration", "type_alias_declaration", "enum_declaration":
			if name := e.text(child.ChildByFieldName("name")); name != "" {
				e.fa.Types = append(e.fa.Types, name)
				e.addExport(name)
			}
		case "export_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				spec := child.Child(j)
				if spec.Type() != "export_specifier" {
					continue
				}
				name := e.text(spec.ChildByFieldName("name"))
				if alias := e.text(spec.ChildByFieldName("alias")); alias != "" {
					name = alias
				}
				names = append(names, name)
			}
		case "namespace_export":
			names = append(names, e.text(child))
		case "string":
			source = unquote(e.text(child))
		case "identifier":
			if isDefault {
				e.addExport("default")
			}
		}
	}

	for _, name := range names {
		e.addExport(name)
	}
	if isDefault {
		e.addExport("default")
	}
	if source != "" {
		e.addImport(ImportInfo{Path: source, IsNamespace: len(names) == 0, Line: line(n)})
	}

	decl := Declaration{Kind: DeclExport, Exported: true, Line: line(n)}
	if first < len(e.fa.Exports) {
		decl.Name = e.fa.Exports[first]
	}
	e.fa.Declarations = append(e.fa.Declarations, decl)
}

// header returns the declaration text up to its body.
func (e *extractor) header(n *sitter.Node) string {
	body := n.ChildByFieldName("body")
	if body == nil {
		return strings.TrimSpace(e.text(n))
	}
	return strings.TrimSpace(string(e.src[n.StartByte():body.StartByte()]))
}

func (e *extractor) params(n *sitter.Node) []string {
	if p := n.ChildByFieldName("parameters"); p != nil {
		out := make([]string, 0, p.NamedChildCount())
		for i := 0; i < int(p.NamedChildCount()); i++ {
			c := p.NamedChild(i)
			if c.Type() == "comment" {
				continue
			}
			out = append(out, e.text(c))
		}
		return out
	}
	// Arrow functions with a single bare parameter.
	if p := n.ChildByFieldName("parameter"); p != nil {
		return []string{e.text(p)}
	}
	return nil
}

func (e *extractor) returnType(n *sitter.Node) string {
	rt := e.text(n.ChildByFieldName("return_type"))
	return strings.TrimSpace(strings.TrimPrefix(rt, ":"))
}

func (e *extractor) function(n *sitter.Node, exported bool, fallback string) {
	name := e.text(n.ChildByFieldName("name"))
	if name == "" {
		name = fallback
	}
	if name == "" {
		return
	}
	fn := FunctionSignature{
		Name:       name,
		Params:     e.params(n),
		ReturnType: e.returnType(n),
		Async:      hasChild(n, "async"),
		Exported:   exported,
		Signature:  e.header(n),
		Line:       line(n),
	}
	e.fa.Functions = append(e.fa.Functions, fn)
	if exported {
		e.addExport(name)
	}
	fn2 := fn
	e.fa.Declarations = append(e.fa.Declarations, Declaration{
		Kind: DeclFunction, Name: name, Exported: exported, Line: fn.Line, Function: &fn2,
	})
}

// functionValue records a function expression bound to name.
func (e *extractor) functionValue(value *sitter.Node, name string, exported bool, kind DeclKind) {
	fn := FunctionSignature{
		Name:       name,
		Params:     e.params(value),
		ReturnType: e.returnType(value),
		Async:      hasChild(value, "async"),
		Exported:   exported,
		Signature:  e.header(value),
		Line:       line(value),
	}
	if kind == DeclVariableFunction {
		fn.Signature = "const " + name + " = " + strings.TrimSuffix(fn.Signature, "=>")
		fn.Signature = strings.TrimSpace(fn.Signature)
	}
	e.fa.Functions = append(e.fa.Functions, fn)
	if exported {
		e.addExport(name)
	}
	fn2 := fn
	e.fa.Declarations = append(e.fa.Declarations, Declaration{
		Kind: kind, Name: name, Exported: exported, Line: fn.Line, Function: &fn2,
	})
}

func (e *extractor) class(n *sitter.Node, exported bool) {
	name := e.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	e.fa.Classes = append(e.fa.Classes, name)
	if exported {
		e.addExport(name)
	}
	e.fa.Declarations = append(e.fa.Declarations, Declaration{
		Kind: DeclClass, Name: name, Exported: exported, Line: line(n),
	})
}

func isFunctionValue(n *sitter.Node) bool {
	switch n.Type() {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

func (e *extractor) variables(n *sitter.Node, exported bool) {
	for i := 0; i < int(n.ChildCount()); i++ {
		decl := n.Child(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		value := decl.ChildByFieldName("value")
		if nameNode == nil {
			continue
		}

		if value != nil && isFunctionValue(value) && nameNode.Type() == "identifier" {
			e.functionValue(value, e.text(nameNode), exported, DeclVariableFunction)
			continue
		}
		if value != nil && e.requireCall(value, nameNode) {
			continue
		}
		if exported && nameNode.Type() == "identifier" {
			e.addExport(e.text(nameNode))
		}
	}
}

// requireCall records `const x = require("y")` as an import.
func (e *extractor) requireCall(value, nameNode *sitter.Node) bool {
	if value.Type() != "call_expression" || e.text(value.ChildByFieldName("function")) != "require" {
		return false
	}
	args := value.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 || args.NamedChild(0).Type() != "string" {
		return false
	}

	imp := ImportInfo{Path: unquote(e.text(args.NamedChild(0))), Line: line(value)}
	switch nameNode.Type() {
	case "identifier":
		imp.IsDefault = true
		imp.Specifiers = []ImportSpecifier{{Name: e.text(nameNode)}}
	case "object_pattern":
		for j := 0; j < int(nameNode.NamedChildCount()); j++ {
			p := nameNode.NamedChild(j)
			switch p.Type() {
			case "shorthand_property_identifier_pattern":
				imp.Specifiers = append(imp.Specifiers, ImportSpecifier{Name: e.text(p)})
			case "pair_pattern":
				imp.Specifiers = append(imp.Specifiers, ImportSpecifier{
					Name:  e.text(p.ChildByFieldName("key")),
					Alias: e.text(p.ChildByFieldName("value")),
				})
			}
		}
	}
	e.addImport(imp)
	return true
}

// commonJSExport records `module.exports = ...` and `exports.name = ...`.
func (e *extractor) commonJSExport(n *sitter.Node) {
	if n.NamedChildCount() == 0 {
		return
	}
	assign := n.NamedChild(0)
	if assign.Type() != "assignment_expression" {
		return
	}
	left := e.text(assign.ChildByFieldName("left"))
	right := assign.ChildByFieldName("right")

	var name string
	switch {
	case left == "module.exports":
		name = "default"
	case strings.HasPrefix(left, "exports."):
		name = strings.TrimPrefix(left, "exports.")
	case strings.HasPrefix(left, "module.exports."):
		name = strings.TrimPrefix(left, "module.exports.")
	default:
		return
	}

	if right != nil && isFunctionValue(right) {
		e.functionValue(right, name, true, DeclFunction)
		return
	}
	e.addExport(name)
}
