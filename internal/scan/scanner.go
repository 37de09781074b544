// Package scan discovers untested source files in a project and processes
// them in dependency order.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/analyzer"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/resolver"
)

// testInfixes are the name markers of a test file: x.test.ts, x.spec.ts.
var testInfixes = []string{".test", ".spec"}

// testsDir is the conventional folder for tests next to the sources.
const testsDir = "__tests__"

// DefaultExtensions are scanned when none are configured.
var DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx"}

// Result describes one scan.
type Result struct {
	Root string `json:"root"`
	// SourceFiles are all non-test files with a scanned extension, sorted.
	SourceFiles []string `json:"sourceFiles"`
	TestFiles   []string `json:"testFiles"`
	// Untested are the source files with no test file on disk, sorted.
	Untested []string `json:"untested"`
	// Order is Untested sorted leaves first.
	Order  []string       `json:"order"`
	Graph  resolver.Graph `json:"-"`
	Cycles [][]string     `json:"cycles,omitempty"`
}

// Scanner walks a directory tree.
type Scanner struct {
	analyzer   analyzer.Analyzer
	extensions []string
	exclude    []string
	maxDepth   int
	logger     *log.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithExtensions sets the source extensions to scan.
func WithExtensions(exts []string) Option {
	return func(s *Scanner) {
		if len(exts) > 0 {
			s.extensions = exts
		}
	}
}

// WithExclude sets doublestar globs, relative to the scan root, of paths
// to skip. A matching directory is not descended into.
func WithExclude(globs []string) Option {
	return func(s *Scanner) { s.exclude = globs }
}

// WithMaxDepth bounds the import levels followed when building the graph.
func WithMaxDepth(n int) Option {
	return func(s *Scanner) { s.maxDepth = n }
}

// WithLogger sets the scanner's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// New returns a Scanner that builds its dependency graph through a.
func New(a analyzer.Analyzer, opts ...Option) *Scanner {
	s := &Scanner{analyzer: a, extensions: DefaultExtensions}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)
	return s
}

// Scan walks root, classifies files and orders the untested ones. Paths in
// the result are absolute.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("scan: resolving %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan: %s is not a directory", root)
	}

	res := &Result{Root: abs}
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Debug("skipping unreadable path", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(abs, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.excluded(rel) || s.excluded(rel+"/") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !s.hasExtension(path) || s.excluded(rel) {
			return nil
		}
		if IsTestFile(path) {
			res.TestFiles = append(res.TestFiles, path)
		} else {
			res.SourceFiles = append(res.SourceFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: walking %s: %w", root, err)
	}
	sort.Strings(res.SourceFiles)
	sort.Strings(res.TestFiles)

	for _, src := range res.SourceFiles {
		if _, ok := s.FindTest(src); !ok {
			res.Untested = append(res.Untested, src)
		}
	}

	if err := s.order(ctx, res); err != nil {
		return nil, err
	}
	s.logger.Info("scan finished",
		"root", abs,
		"sources", len(res.SourceFiles),
		"tests", len(res.TestFiles),
		"untested", len(res.Untested),
		"cycles", len(res.Cycles),
	)
	return res, nil
}

// order builds the dependency graph of the untested files and sorts them
// leaves first.
func (s *Scanner) order(ctx context.Context, res *Result) error {
	res.Graph = resolver.Graph{}
	if len(res.Untested) == 0 {
		return nil
	}

	r := resolver.New(s.analyzer, resolver.WithLogger(s.logger))
	for _, src := range res.Untested {
		g, err := r.BuildDependencyGraph(ctx, src, s.maxDepth)
		if err != nil {
			return fmt.Errorf("scan: building graph for %s: %w", src, err)
		}
		res.Graph.Merge(g)
	}
	res.Cycles = r.CircularDependencies()

	untested := make(map[string]bool, len(res.Untested))
	for _, f := range res.Untested {
		untested[f] = true
	}
	for _, f := range resolver.TopologicalSort(res.Graph) {
		if untested[f] {
			res.Order = append(res.Order, f)
			delete(untested, f)
		}
	}
	if len(res.Order) == 0 {
		res.Order = append([]string(nil), res.Untested...)
		return nil
	}
	// Files the graph missed keep their sorted position at the end.
	for _, f := range res.Untested {
		if untested[f] {
			res.Order = append(res.Order, f)
		}
	}
	return nil
}

// FindTest returns the first existing test file for source, checking
// <dir>/<base>.test.<ext>, <dir>/<base>.spec.<ext> and the same names plus
// <base>.<ext> under <dir>/__tests__, for every scanned extension.
func (s *Scanner) FindTest(source string) (string, bool) {
	for _, candidate := range s.testCandidates(source) {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

func (s *Scanner) testCandidates(source string) []string {
	dir := filepath.Dir(source)
	ext := filepath.Ext(source)
	base := strings.TrimSuffix(filepath.Base(source), ext)

	// The source's own extension first.
	exts := []string{ext}
	for _, e := range s.extensions {
		if e != ext {
			exts = append(exts, e)
		}
	}

	var out []string
	for _, e := range exts {
		for _, infix := range testInfixes {
			out = append(out, filepath.Join(dir, base+infix+e))
		}
	}
	for _, e := range exts {
		out = append(out, filepath.Join(dir, testsDir, base+e))
		for _, infix := range testInfixes {
			out = append(out, filepath.Join(dir, testsDir, base+infix+e))
		}
	}
	return out
}

// IsTestFile reports whether path is a test by name or location.
func IsTestFile(path string) bool {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, infix := range testInfixes {
		if strings.HasSuffix(stem, infix) {
			return true
		}
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(path)), "/") {
		if part == testsDir {
			return true
		}
	}
	return false
}

func (s *Scanner) hasExtension(path string) bool {
	if strings.HasSuffix(path, ".d.ts") {
		return false
	}
	ext := filepath.Ext(path)
	for _, e := range s.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (s *Scanner) excluded(rel string) bool {
	for _, g := range s.exclude {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

// Restrict drops the untested files keep rejects from Untested and Order.
// The relative order of the remaining files is unchanged.
func (r *Result) Restrict(keep func(path string) bool) {
	filter := func(files []string) []string {
		out := make([]string, 0, len(files))
		for _, f := range files {
			if keep(f) {
				out = append(out, f)
			}
		}
		return out
	}
	r.Untested = filter(r.Untested)
	r.Order = filter(r.Order)
}
