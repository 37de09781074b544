package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
)

const tsSource = `import { a, b as c } from './x';
import def from 'lodash';
import * as ns from '../y';
import type { T } from './types';
import './setup';

export function add(a: number, b: number): number {
  return a + b;
}

export const fetchUser = async (id: string): Promise<T> => {
  return def(id);
};

export class Service {}

export interface Options {
  verbose: boolean;
}

export type ID = string;

function internal() {}

export { internal as helper };
`

func analyzeString(t *testing.T, name, src string) *FileAnalysis {
	t.Helper()
	fa, err := NewTreeSitter().AnalyzeSource(context.Background(), name, []byte(src))
	require.NoError(t, err)
	return fa
}

func TestAnalyzeSource_Imports(t *testing.T) {
	t.Parallel()

	fa := analyzeString(t, "src/mod.ts", tsSource)
	require.Len(t, fa.Imports, 5)

	named := fa.Imports[0]
	assert.Equal(t, "./x", named.Path)
	require.Len(t, named.Specifiers, 2)
	assert.Equal(t, "a", named.Specifiers[0].Name)
	assert.Equal(t, "b", named.Specifiers[1].Name)
	assert.Equal(t, "c", named.Specifiers[1].Alias)
	assert.False(t, named.IsExternal())
	assert.Equal(t, 1, named.Line)

	def := fa.Imports[1]
	assert.Equal(t, "lodash", def.Path)
	assert.True(t, def.IsDefault)
	assert.True(t, def.IsExternal())

	ns := fa.Imports[2]
	assert.True(t, ns.IsNamespace)
	assert.Equal(t, "../y", ns.Path)

	assert.True(t, fa.Imports[3].TypeOnly)
	assert.Equal(t, "./setup", fa.Imports[4].Path)
	assert.Empty(t, fa.Imports[4].Specifiers)
}

func TestAnalyzeSource_Exports(t *testing.T) {
	t.Parallel()

	fa := analyzeString(t, "src/mod.ts", tsSource)

	assert.Equal(t, "typescript", fa.Language)
	assert.False(t, fa.HasSyntaxErrors)
	assert.Subset(t, fa.Exports, []string{"add", "fetchUser", "Service", "Options", "ID", "helper"})
	assert.NotContains(t, fa.Exports, "internal")
	assert.ElementsMatch(t, []string{"Options", "ID"}, fa.Types)
	assert.Equal(t, []string{"Service"}, fa.Classes)

	exported := fa.ExportedFunctions()
	require.Len(t, exported, 2)

	add := exported[0]
	assert.Equal(t, "add", add.Name)
	assert.Equal(t, []string{"a: number", "b: number"}, add.Params)
	assert.Equal(t, "number", add.ReturnType)
	assert.Equal(t, "export function add(a: number, b: number): number", "export "+add.Signature)

	fetch := exported[1]
	assert.Equal(t, "fetchUser", fetch.Name)
	assert.True(t, fetch.Async)
	assert.Equal(t, []string{"id: string"}, fetch.Params)

	var kinds []DeclKind
	for _, d := range fa.Declarations {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, DeclImport)
	assert.Contains(t, kinds, DeclExport)
	assert.Contains(t, kinds, DeclFunction)
	assert.Contains(t, kinds, DeclVariableFunction)
	assert.Contains(t, kinds, DeclClass)
}

func TestAnalyzeSource_CommonJS(t *testing.T) {
	t.Parallel()

	src := `const fs = require('fs');
const { join, resolve: res } = require('./paths');

exports.load = function (name) {
  return fs.readFileSync(join(name));
};
module.exports.VERSION = '1.0';
`
	fa := analyzeString(t, "lib/loader.js", src)

	require.Len(t, fa.Imports, 2)
	assert.Equal(t, "fs", fa.Imports[0].Path)
	assert.True(t, fa.Imports[0].IsDefault)
	assert.Equal(t, "./paths", fa.Imports[1].Path)
	require.Len(t, fa.Imports[1].Specifiers, 2)
	assert.Equal(t, "join", fa.Imports[1].Specifiers[0].Name)
	assert.Equal(t, "resolve", fa.Imports[1].Specifiers[1].Name)
	assert.Equal(t, "res", fa.Imports[1].Specifiers[1].Alias)

	assert.ElementsMatch(t, []string{"load", "VERSION"}, fa.Exports)
	require.Len(t, fa.ExportedFunctions(), 1)
	assert.Equal(t, "load", fa.ExportedFunctions()[0].Name)
	assert.Equal(t, "javascript", fa.Language)
}

func TestAnalyzeSource_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := NewTreeSitter().AnalyzeSource(context.Background(), "main.py", []byte("x = 1"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidArgs, apperr.KindOf(err))
}

func TestAnalyze_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := NewTreeSitter().Analyze(context.Background(), filepath.Join(t.TempDir(), "gone.ts"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindFileNotFound, apperr.KindOf(err))
}

func TestAnalyze_TooLarge(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "big.ts")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))

	_, err := NewTreeSitter(WithMaxFileSize(16)).Analyze(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidArgs, apperr.KindOf(err))
}

func TestAnalyze_ReadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sum.ts")
	require.NoError(t, os.WriteFile(path, []byte("export const sum = (a: number, b: number) => a + b;\n"), 0o644))

	fa, err := NewTreeSitter().Analyze(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, fa.Path)
	assert.Equal(t, []string{"sum"}, fa.Exports)
	assert.Contains(t, fa.SourceCode, "export const sum")
}

func TestCheckSyntax(t *testing.T) {
	t.Parallel()

	diags, err := CheckSyntax(context.Background(), "ok.test.ts", []byte("describe('x', () => { it('y', () => {}); });\n"))
	require.NoError(t, err)
	assert.Empty(t, diags)

	diags, err = CheckSyntax(context.Background(), "bad.test.ts", []byte("const x = ;\nconst y = 2;\n"))
	require.NoError(t, err)
	require.NotEmpty(t, diags)
	assert.Equal(t, 1, diags[0].Line)
	assert.NotEmpty(t, diags[0].String())
}

func TestLanguageFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"a.ts", LangTypeScript, true},
		{"a.tsx", LangTSX, true},
		{"a.jsx", LangJavaScript, true},
		{"a.mjs", LangJavaScript, true},
		{"a.go", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			_, name, ok := LanguageFor(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, name)
			assert.Equal(t, tt.ok, Supported(tt.path))
		})
	}
}
