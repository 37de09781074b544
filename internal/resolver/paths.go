package resolver

import (
	"os"
	"path/filepath"
	"strings"
)

// Extensions are tried, in order, when an import omits its extension.
var Extensions = []string{".ts", ".tsx", ".js", ".jsx"}

// ResolveLocal maps an extensionless or literal module path onto a file.
// It tries the literal path, then base+ext for each of Extensions, then the
// TypeScript form of a ".js"/".jsx" specifier, then base/index.<ext> when
// base is a directory. The result is absolute.
func ResolveLocal(base string) (string, bool) {
	if isFile(base) {
		return absPath(base), true
	}
	for _, ext := range Extensions {
		if isFile(base + ext) {
			return absPath(base + ext), true
		}
	}

	// ESM TypeScript imports name the emitted file: "./util.js" -> util.ts.
	if ext := filepath.Ext(base); ext == ".js" || ext == ".jsx" || ext == ".mjs" {
		stem := strings.TrimSuffix(base, ext)
		for _, tsExt := range []string{".ts", ".tsx"} {
			if isFile(stem + tsExt) {
				return absPath(stem + tsExt), true
			}
		}
	}

	if isDir(base) {
		for _, ext := range Extensions {
			index := filepath.Join(base, "index"+ext)
			if isFile(index) {
				return absPath(index), true
			}
		}
	}
	return "", false
}

// JoinImport returns the filesystem base an import path refers to from file.
func JoinImport(fromFile, importPath string) string {
	if filepath.IsAbs(importPath) {
		return filepath.Clean(importPath)
	}
	return filepath.Join(filepath.Dir(fromFile), filepath.FromSlash(importPath))
}

// RelativeImport renders target as an import written in fromFile: forward
// slashes, a leading "./" and no extension, followed by suffix.
func RelativeImport(fromFile, target, suffix string) string {
	rel, err := filepath.Rel(filepath.Dir(absPath(fromFile)), target)
	if err != nil {
		rel = target
	}
	rel = filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
	if !strings.HasPrefix(rel, ".") && !strings.HasPrefix(rel, "/") {
		rel = "./" + rel
	}
	return rel + suffix
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
