package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/analyzer"
)

// fakeAnalyzer serves canned analyses keyed by absolute path.
type fakeAnalyzer struct {
	files map[string]*analyzer.FileAnalysis
	fail  map[string]bool
	calls map[string]int
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		files: make(map[string]*analyzer.FileAnalysis),
		fail:  make(map[string]bool),
		calls: make(map[string]int),
	}
}

func (f *fakeAnalyzer) Analyze(_ context.Context, path string) (*analyzer.FileAnalysis, error) {
	f.calls[path]++
	if f.fail[path] {
		return nil, errors.New("parse failed")
	}
	if fa, ok := f.files[path]; ok {
		return fa, nil
	}
	return &analyzer.FileAnalysis{Path: path}, nil
}

// project creates files under a temp dir and registers their imports.
type project struct {
	t    *testing.T
	root string
	fa   *fakeAnalyzer
}

func newProject(t *testing.T) *project {
	t.Helper()
	return &project{t: t, root: t.TempDir(), fa: newFakeAnalyzer()}
}

func (p *project) file(rel string, imports ...string) string {
	p.t.Helper()
	path := filepath.Join(p.root, rel)
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(p.t, os.WriteFile(path, []byte("// "+rel+"\n"), 0o644))

	fa := &analyzer.FileAnalysis{Path: path}
	for _, imp := range imports {
		fa.Imports = append(fa.Imports, analyzer.ImportInfo{Path: imp})
	}
	p.fa.files[path] = fa
	return path
}

func (p *project) exports(path string, fns ...string) {
	fa := p.fa.files[path]
	for _, name := range fns {
		fa.Exports = append(fa.Exports, name)
		fa.Functions = append(fa.Functions, analyzer.FunctionSignature{Name: name, Exported: true})
	}
}

func (p *project) resolve(r *Resolver, path string) *Result {
	p.t.Helper()
	res, err := r.ResolveDependencies(context.Background(), p.fa.files[path].Imports, path)
	require.NoError(p.t, err)
	return res
}

// --- ResolveDependencies ---

func TestResolveDependencies_TwoFileCycle(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	a := p.file("a.ts", "./b")
	b := p.file("b.ts", "./a")

	r := New(p.fa)
	res := p.resolve(r, a)

	require.Len(t, res.Dependencies, 1)
	assert.Equal(t, b, res.Dependencies[0].Path)
	assert.False(t, res.Dependencies[0].Cyclic)

	require.Len(t, res.CircularDependencies, 1)
	assert.ElementsMatch(t, []string{a, b}, res.CircularDependencies[0])
	assert.Equal(t, []string{b}, res.Graph[a])
	assert.Equal(t, []string{a}, res.Graph[b])
}

func TestResolveDependencies_ThreeFileCycle(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	a := p.file("a.ts", "./b")
	b := p.file("b.ts", "./c")
	c := p.file("c.ts", "./a")

	r := New(p.fa)
	p.resolve(r, a)

	cycles := r.CircularDependencies()
	require.Len(t, cycles, 1)
	assert.Len(t, cycles[0], 3)
	assert.ElementsMatch(t, []string{a, b, c}, cycles[0])

	// Entering the same cycle from another file does not record it twice.
	p.resolve(r, b)
	assert.Len(t, r.CircularDependencies(), 1)
}

func TestResolveDependencies_CyclicEdgeIsMarked(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	a := p.file("a.ts", "./a")

	res := p.resolve(New(p.fa), a)
	require.Len(t, res.Dependencies, 1)
	assert.True(t, res.Dependencies[0].Cyclic)
	assert.False(t, res.Dependencies[0].Placeholder)
	assert.Equal(t, [][]string{{a}}, res.CircularDependencies)
}

func TestResolveDependencies_ExternalStub(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	a := p.file("a.ts")
	imports := []analyzer.ImportInfo{{
		Path:       "lodash",
		Specifiers: []analyzer.ImportSpecifier{{Name: "debounce"}, {Name: "throttle"}},
	}}

	res, err := New(p.fa).ResolveDependencies(context.Background(), imports, a)
	require.NoError(t, err)

	require.Len(t, res.Dependencies, 1)
	dep := res.Dependencies[0]
	assert.True(t, dep.IsExternal)
	assert.Equal(t, "lodash", dep.Path)
	assert.Empty(t, dep.Exports)
	require.Len(t, dep.FunctionSignatures, 2)
	assert.Equal(t, "debounce", dep.FunctionSignatures[0].Name)
	assert.Equal(t, 1, res.ExternalCount)
	assert.Equal(t, 0, res.ResolvedCount)
	assert.Empty(t, res.Graph[a])
}

func TestResolveDependencies_LocalInfo(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	a := p.file("src/a.ts", "./util", "../lib")
	util := p.file("src/util.ts")
	p.exports(util, "format", "parse")
	lib := p.file("lib/index.ts")

	res := p.resolve(New(p.fa), a)

	require.Len(t, res.Dependencies, 2)
	assert.Equal(t, util, res.Dependencies[0].Path)
	assert.Equal(t, "./util", res.Dependencies[0].Specifier)
	assert.Equal(t, []string{"format", "parse"}, res.Dependencies[0].Exports)
	assert.Len(t, res.Dependencies[0].FunctionSignatures, 2)
	assert.Equal(t, lib, res.Dependencies[1].Path)
	assert.Equal(t, 2, res.ResolvedCount)
}

func TestResolveDependencies_Placeholders(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	a := p.file("a.ts", "./missing", "./broken")
	broken := p.file("broken.ts")
	p.fa.fail[broken] = true

	res := p.resolve(New(p.fa), a)

	require.Len(t, res.Dependencies, 2)
	assert.True(t, res.Dependencies[0].Placeholder)
	assert.Equal(t, "./missing", res.Dependencies[0].Specifier)
	assert.True(t, res.Dependencies[1].Placeholder)
	assert.Equal(t, broken, res.Dependencies[1].Path)
	assert.Equal(t, 1, res.ResolvedCount)
}

func TestResolveDependencies_CachesAnalysis(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	a := p.file("a.ts", "./shared")
	b := p.file("b.ts", "./shared")
	shared := p.file("shared.ts")

	r := New(p.fa)
	p.resolve(r, a)
	p.resolve(r, b)
	assert.Equal(t, 1, p.fa.calls[shared])

	r.Reset()
	p.resolve(r, a)
	assert.Equal(t, 2, p.fa.calls[shared], "Reset clears the cache")
}

func TestResolveDependencies_Cancelled(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	a := p.file("a.ts", "./b")
	p.file("b.ts")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(p.fa).ResolveDependencies(ctx, p.fa.files[a].Imports, a)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReset_ClearsCycles(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	a := p.file("a.ts", "./b")
	p.file("b.ts", "./a")

	r := New(p.fa)
	p.resolve(r, a)
	require.NotEmpty(t, r.CircularDependencies())

	r.Reset()
	assert.Empty(t, r.CircularDependencies())
}

// --- BuildDependencyGraph ---

func TestBuildDependencyGraph_DepthBound(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	a := p.file("a.ts", "./b")
	b := p.file("b.ts", "./c")
	c := p.file("c.ts", "./d")
	p.file("d.ts")

	g, err := New(p.fa).BuildDependencyGraph(context.Background(), a, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{b}, g[a])
	assert.Equal(t, []string{c}, g[b])
	assert.Empty(t, g[c])
}

func TestBuildDependencyGraph_Diamond(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	a := p.file("a.ts", "./b", "./c")
	b := p.file("b.ts", "./d")
	c := p.file("c.ts", "./d")
	d := p.file("d.ts")

	g, err := New(p.fa).BuildDependencyGraph(context.Background(), a, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{b, c}, g[a])
	assert.Equal(t, []string{d}, g[b])
	assert.Equal(t, []string{d}, g[c])
	assert.Len(t, g.Nodes(), 4)
}

// --- ResolveLocal ---

func TestResolveLocal_Order(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write := func(rel string) string {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		return path
	}

	literal := write("data.json")
	tsFile := write("util.ts")
	write("util.js")
	index := write("components/index.tsx")
	esm := write("esm/helper.ts")

	tests := []struct {
		name string
		base string
		want string
		ok   bool
	}{
		{name: "literal", base: filepath.Join(root, "data.json"), want: literal, ok: true},
		{name: ".ts before .js", base: filepath.Join(root, "util"), want: tsFile, ok: true},
		{name: "directory index", base: filepath.Join(root, "components"), want: index, ok: true},
		{name: "esm js specifier", base: filepath.Join(root, "esm", "helper.js"), want: esm, ok: true},
		{name: "missing", base: filepath.Join(root, "nope"), ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ResolveLocal(tt.base)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinImport(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join("/src", "lib", "x"), JoinImport("/src/app/main.ts", "../lib/x"))
	assert.Equal(t, filepath.Clean("/abs/y"), JoinImport("/src/main.ts", "/abs/y"))
}

func TestRelativeImport(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "./add", RelativeImport("/src/add.test.ts", "/src/add.ts", ""))
	assert.Equal(t, "../lib/api.js", RelativeImport("/src/__tests__/user.test.ts", "/src/lib/api.ts", ".js"))
	assert.Equal(t, "./lib/api", RelativeImport("/src/user.test.ts", "/src/lib/api.ts", ""))
}
