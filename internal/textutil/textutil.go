// Package textutil cleans and slices freeform text produced by subprocesses
// and text-generation backends.
//
// Test runners and AI CLIs decorate their output with ANSI escape codes,
// carriage returns, and markdown fences. Sanitize strips the decoration;
// CodeBlocks and LargestCodeBlock pull fenced source out of a backend reply.
package textutil

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxInputBytes is the largest input Sanitize accepts.
const MaxInputBytes = 10 * 1024 * 1024 // 10 MB

// reANSI matches CSI escape sequences, including private-mode sequences such
// as "\x1b[?25l" that spinners emit.
var reANSI = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

// reFence matches a markdown code fence with an optional language tag. The
// tag is captured in group 1 and the body in group 2. The body match is
// non-greedy so several fences in one reply are matched separately.
var reFence = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[ \\t]*\r?\n(.*?)\r?\n[ \\t]*```")

// Sanitize removes a leading UTF-8 BOM and ANSI escape codes and normalizes
// CRLF line endings. Inputs larger than MaxInputBytes are rejected.
func Sanitize(text string) (string, error) {
	if len(text) > MaxInputBytes {
		return "", fmt.Errorf("textutil: input exceeds maximum size of %d bytes", MaxInputBytes)
	}
	return StripDecorations(text), nil
}

// StripDecorations is Sanitize without the size cap.
func StripDecorations(text string) string {
	text = strings.TrimPrefix(text, "\xef\xbb\xbf")
	text = reANSI.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return text
}

// CodeBlock is one fenced block found in text.
type CodeBlock struct {
	Lang string
	Body string
}

// CodeBlocks returns every non-empty fenced block in text, in order of
// appearance.
func CodeBlocks(text string) []CodeBlock {
	var blocks []CodeBlock
	for _, m := range reFence.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[2])
		if body == "" {
			continue
		}
		blocks = append(blocks, CodeBlock{Lang: strings.ToLower(m[1]), Body: body})
	}
	return blocks
}

// LargestCodeBlock returns the longest fenced block whose language tag is
// empty or one of langs. It reports false when no block qualifies.
func LargestCodeBlock(text string, langs ...string) (CodeBlock, bool) {
	var best CodeBlock
	found := false
	for _, b := range CodeBlocks(text) {
		if b.Lang != "" && len(langs) > 0 && !contains(langs, b.Lang) {
			continue
		}
		if !found || len(b.Body) > len(best.Body) {
			best = b
			found = true
		}
	}
	return best, found
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
