package quality

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	reFocused = regexp.MustCompile(`\b(?:(?:describe|it|test)\.only|fit|fdescribe)\s*\(`)
	reSkipped = regexp.MustCompile(`\b(?:(?:describe|it|test)\.skip|xit|xdescribe|xtest)\s*\(`)

	reModifier = regexp.MustCompile(`\b(describe|it|test)\.(?:only|skip)(\s*\()`)
	rePrefixed = regexp.MustCompile(`\b(?:f|x)(it|describe|test)(\s*\()`)

	// reImportEnd finds the end of every top-level import statement or
	// require declaration.
	reImportEnd = regexp.MustCompile(`(?m)^(?:import\s[^;]*?\bfrom\s*['"][^'"\n]+['"]|import\s*['"][^'"\n]+['"]|(?:const|let|var)\s[^;\n]*=\s*require\(\s*['"][^'"\n]+['"]\s*\)).*$`)
)

// stripConsole deletes lines that consist of a single console call.
func stripConsole(code string) (string, int) {
	lines := strings.Split(code, "\n")
	kept := lines[:0]
	removed := 0
	for _, line := range lines {
		if !isCommentLine(line) && isConsoleStatement(line) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), removed
}

// stripModifiers rewrites it.only/it.skip/fit/xit and friends to the plain
// call.
func stripModifiers(code string) (string, int) {
	n := len(reModifier.FindAllStringIndex(code, -1)) + len(rePrefixed.FindAllStringIndex(code, -1))
	code = reModifier.ReplaceAllString(code, "$1$2")
	code = rePrefixed.ReplaceAllString(code, "$1$2")
	return code, n
}

// insertMocks adds one registration per module after the last import
// statement, or at the top of the file when there is none.
func insertMocks(code string, modules []string, fn string) string {
	if len(modules) == 0 {
		return code
	}
	sorted := append([]string(nil), modules...)
	sort.Strings(sorted)

	var block strings.Builder
	for _, m := range sorted {
		fmt.Fprintf(&block, "%s.mock('%s');\n", fn, m)
	}

	at := 0
	if locs := reImportEnd.FindAllStringIndex(code, -1); len(locs) > 0 {
		at = locs[len(locs)-1][1]
	}
	if at == 0 {
		return block.String() + "\n" + code
	}
	// at sits on the end of the import line, before its newline.
	rest := strings.TrimPrefix(code[at:], "\n")
	return code[:at] + "\n\n" + block.String() + rest
}

// appendSuffix rewrites the quoted import path spec to spec+suffix on every
// static import, re-export, dynamic import or require of it, whatever the
// spacing around the keyword.
func appendSuffix(code, spec, suffix string) string {
	for _, q := range []string{"'", `"`} {
		re := regexp.MustCompile(`(\bfrom\s*|\bimport\s*|\bimport\(\s*|\brequire\(\s*)` +
			q + regexp.QuoteMeta(spec) + q)
		repl := "${1}" + q + strings.ReplaceAll(spec+suffix, "$", "$$") + q
		code = re.ReplaceAllString(code, repl)
	}
	return code
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
