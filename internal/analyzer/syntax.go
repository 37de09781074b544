package analyzer

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Bounds for diagnostic collection on badly broken input.
const (
	maxDiagnostics = 50
	maxDepth       = 1000
)

// Diagnostic is one syntax problem. Line is 1-based, Column 0-based.
type Diagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
	// Missing is set when the parser inserted a missing token.
	Missing bool `json:"missing,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}

// CheckSyntax parses src with the grammar chosen by path and returns one
// diagnostic per ERROR or MISSING node, in source order.
func CheckSyntax(ctx context.Context, path string, src []byte) ([]Diagnostic, error) {
	tree, _, err := parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil, nil
	}

	var diags []Diagnostic
	collectDiagnostics(root, src, &diags, 0)
	return diags, nil
}

func collectDiagnostics(n *sitter.Node, src []byte, diags *[]Diagnostic, depth int) {
	if depth > maxDepth || len(*diags) >= maxDiagnostics {
		return
	}

	if n.IsMissing() {
		*diags = append(*diags, Diagnostic{
			Line:    int(n.StartPoint().Row) + 1,
			Column:  int(n.StartPoint().Column),
			Message: fmt.Sprintf("missing %s", n.Type()),
			Missing: true,
		})
		return
	}
	if n.IsError() {
		msg := "syntax error"
		if snippet := snippetOf(n, src); snippet != "" {
			msg = fmt.Sprintf("unexpected %q", snippet)
		}
		*diags = append(*diags, Diagnostic{
			Line:    int(n.StartPoint().Row) + 1,
			Column:  int(n.StartPoint().Column),
			Message: msg,
		})
		// Nested errors inside an ERROR node repeat the same problem.
		return
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.HasError() || child.IsMissing() {
			collectDiagnostics(child, src, diags, depth+1)
		}
	}
}

func snippetOf(n *sitter.Node, src []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if end > uint32(len(src)) {
		end = uint32(len(src))
	}
	if start >= end {
		return ""
	}
	s := strings.TrimSpace(string(src[start:end]))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return s
}
