// Package resolver resolves a file's imports onto the local source tree,
// builds dependency graphs, records import cycles and orders files leaves
// first.
//
// A Resolver is a single-session object. Its analysis cache, visited set,
// resolution stack and cycle list are unsynchronized: use one Resolver per
// concurrent resolution task and call Reset between unrelated sessions.
package resolver

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/analyzer"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
)

// DefaultMaxDepth bounds transitive resolution.
const DefaultMaxDepth = 8

// DependencyInfo is one resolved import target.
type DependencyInfo struct {
	// Path is the absolute file path for local imports and the package
	// name for external ones.
	Path string `json:"path"`
	// Specifier is the import path as written in the importing file.
	Specifier  string   `json:"specifier"`
	IsExternal bool     `json:"isExternal"`
	TypeOnly   bool     `json:"typeOnly,omitempty"`
	Exports    []string `json:"exports,omitempty"`
	Types      []string `json:"types,omitempty"`
	// FunctionSignatures holds the target's exported functions. External
	// stubs carry only the imported names.
	FunctionSignatures []analyzer.FunctionSignature `json:"functionSignatures,omitempty"`
	// Placeholder marks a local import that could not be resolved or
	// analyzed.
	Placeholder bool `json:"placeholder,omitempty"`
	// Cyclic marks an edge that closes an import cycle. The target was
	// intentionally not expanded; Exports and FunctionSignatures are empty.
	Cyclic bool `json:"cyclic,omitempty"`
}

// Result is the outcome of ResolveDependencies.
type Result struct {
	Dependencies         []DependencyInfo `json:"dependencies"`
	Graph                Graph            `json:"graph"`
	CircularDependencies [][]string       `json:"circularDependencies"`
	ResolvedCount        int              `json:"resolvedCount"`
	ExternalCount        int              `json:"externalCount"`
}

// Resolver resolves imports through an analyzer.
type Resolver struct {
	analyzer analyzer.Analyzer
	maxDepth int
	logger   *log.Logger

	analyses  map[string]*analyzer.FileAnalysis
	failed    map[string]bool
	visited   map[string]bool
	stack     []string
	cycles    [][]string
	cycleKeys map[string]bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDepth bounds transitive expansion. Values below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

// WithLogger sets the resolver's logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New returns a Resolver that analyzes files with a.
func New(a analyzer.Analyzer, opts ...Option) *Resolver {
	r := &Resolver{analyzer: a, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDiscard(r.logger)
	r.Reset()
	return r
}

// Reset clears the analysis cache, visited set, resolution stack and
// recorded cycles.
func (r *Resolver) Reset() {
	r.analyses = make(map[string]*analyzer.FileAnalysis)
	r.failed = make(map[string]bool)
	r.visited = make(map[string]bool)
	r.stack = nil
	r.cycles = nil
	r.cycleKeys = make(map[string]bool)
}

// CircularDependencies returns the cycles recorded since the last Reset.
// Each cycle lists its files in import order, starting with the file that
// was first entered.
func (r *Resolver) CircularDependencies() [][]string {
	out := make([][]string, len(r.cycles))
	for i, c := range r.cycles {
		out[i] = append([]string(nil), c...)
	}
	return out
}

// walk carries the per-call state of one traversal.
type walk struct {
	graph    Graph
	visited  map[string]bool
	maxDepth int
	resolved int
	external int
}

// ResolveDependencies resolves imports as seen from fromFile. Local targets
// are analyzed and expanded transitively into the returned graph. External
// imports become stubs without touching the filesystem. Unresolvable or
// unparseable targets become placeholders. Only a cancelled context
// produces an error.
func (r *Resolver) ResolveDependencies(ctx context.Context, imports []analyzer.ImportInfo, fromFile string) (*Result, error) {
	from := absPath(fromFile)
	w := &walk{graph: Graph{}, visited: r.visited, maxDepth: r.maxDepth}
	w.graph.AddNode(from)
	w.visited[from] = true

	deps, err := r.walkImports(ctx, w, from, imports, 0)
	if err != nil {
		return nil, err
	}

	return &Result{
		Dependencies:         deps,
		Graph:                w.graph,
		CircularDependencies: r.CircularDependencies(),
		ResolvedCount:        w.resolved,
		ExternalCount:        w.external,
	}, nil
}

// BuildDependencyGraph analyzes startFile and follows its local imports up
// to maxDepth levels (DefaultMaxDepth when maxDepth < 1). Each file's direct
// local edges are recorded once. The traversal has its own visited set, so
// it is complete even after earlier calls on the same Resolver.
func (r *Resolver) BuildDependencyGraph(ctx context.Context, startFile string, maxDepth int) (Graph, error) {
	if maxDepth < 1 {
		maxDepth = r.maxDepth
	}
	start := absPath(startFile)
	w := &walk{graph: Graph{}, visited: map[string]bool{start: true}, maxDepth: maxDepth}
	w.graph.AddNode(start)

	fa, ok := r.analyze(ctx, start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return w.graph, nil
	}
	if _, err := r.walkImports(ctx, w, start, fa.Imports, 0); err != nil {
		return nil, err
	}
	return w.graph, nil
}

func (r *Resolver) walkImports(ctx context.Context, w *walk, from string, imports []analyzer.ImportInfo, depth int) ([]DependencyInfo, error) {
	r.stack = append(r.stack, from)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	deps := make([]DependencyInfo, 0, len(imports))
	for _, imp := range imports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dep, err := r.resolveImport(ctx, w, from, imp, depth)
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

func (r *Resolver) resolveImport(ctx context.Context, w *walk, from string, imp analyzer.ImportInfo, depth int) (DependencyInfo, error) {
	if imp.IsExternal() {
		w.external++
		return externalStub(imp), nil
	}

	target, ok := ResolveLocal(JoinImport(from, imp.Path))
	if !ok {
		r.logger.Debug("unresolved import", "from", from, "import", imp.Path)
		return DependencyInfo{
			Path:        JoinImport(from, imp.Path),
			Specifier:   imp.Path,
			TypeOnly:    imp.TypeOnly,
			Placeholder: true,
		}, nil
	}
	w.resolved++
	w.graph.AddEdge(from, target)
	w.graph.AddNode(target)

	if idx := r.stackIndex(target); idx >= 0 {
		r.recordCycle(r.stack[idx:])
		return DependencyInfo{Path: target, Specifier: imp.Path, TypeOnly: imp.TypeOnly, Cyclic: true}, nil
	}

	fa, ok := r.analyze(ctx, target)
	if !ok {
		return DependencyInfo{Path: target, Specifier: imp.Path, TypeOnly: imp.TypeOnly, Placeholder: true}, nil
	}

	if !w.visited[target] && depth+1 < w.maxDepth {
		w.visited[target] = true
		if _, err := r.walkImports(ctx, w, target, fa.Imports, depth+1); err != nil {
			return DependencyInfo{}, err
		}
	}

	return DependencyInfo{
		Path:               target,
		Specifier:          imp.Path,
		TypeOnly:           imp.TypeOnly,
		Exports:            append([]string(nil), fa.Exports...),
		Types:              append([]string(nil), fa.Types...),
		FunctionSignatures: fa.ExportedFunctions(),
	}, nil
}

// analyze returns the cached analysis for path. Failures are cached too, so
// a broken file is analyzed once per session.
func (r *Resolver) analyze(ctx context.Context, path string) (*analyzer.FileAnalysis, bool) {
	if fa, ok := r.analyses[path]; ok {
		return fa, true
	}
	if r.failed[path] {
		return nil, false
	}
	fa, err := r.analyzer.Analyze(ctx, path)
	if err != nil {
		r.logger.Debug("analysis failed; using placeholder", "path", path, "error", err)
		if ctx.Err() == nil {
			r.failed[path] = true
		}
		return nil, false
	}
	r.analyses[path] = fa
	return fa, true
}

func (r *Resolver) stackIndex(path string) int {
	for i, p := range r.stack {
		if p == path {
			return i
		}
	}
	return -1
}

// recordCycle stores cycle once, whatever file it was entered from.
func (r *Resolver) recordCycle(cycle []string) {
	key := cycleKey(cycle)
	if r.cycleKeys[key] {
		return
	}
	r.cycleKeys[key] = true
	r.cycles = append(r.cycles, append([]string(nil), cycle...))
	r.logger.Debug("import cycle", "files", cycle)
}

// cycleKey rotates the cycle to start at its smallest path.
func cycleKey(cycle []string) string {
	start := 0
	for i, p := range cycle {
		if p < cycle[start] {
			start = i
		}
	}
	rotated := make([]string, 0, len(cycle))
	rotated = append(rotated, cycle[start:]...)
	rotated = append(rotated, cycle[:start]...)
	return strings.Join(rotated, "\x00")
}

func externalStub(imp analyzer.ImportInfo) DependencyInfo {
	dep := DependencyInfo{Path: imp.Path, Specifier: imp.Path, IsExternal: true, TypeOnly: imp.TypeOnly}
	for _, spec := range imp.Specifiers {
		dep.FunctionSignatures = append(dep.FunctionSignatures, analyzer.FunctionSignature{Name: spec.Name})
	}
	return dep
}
