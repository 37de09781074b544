package textutil

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxOutputBytes is the size above which Truncate shortens output.
	MaxOutputBytes = 1024 * 1024 // 1 MiB

	// truncationLines is how many lines Truncate keeps from each end.
	truncationLines = 512
)

// Truncate shortens output larger than MaxOutputBytes, keeping the first and
// last 512 lines around an omission notice. When that is still over the
// limit, as with few but very long lines, the start and end are kept by
// byte instead. The result never exceeds MaxOutputBytes and stays valid
// UTF-8 when the input is.
func Truncate(output string) string {
	if len(output) <= MaxOutputBytes {
		return output
	}

	if lines := strings.Split(output, "\n"); len(lines) > truncationLines*2 {
		head := lines[:truncationLines]
		tail := lines[len(lines)-truncationLines:]
		omitted := len(lines) - truncationLines*2

		var sb strings.Builder
		sb.WriteString(strings.Join(head, "\n"))
		fmt.Fprintf(&sb, "\n\n... (%d lines omitted) ...\n\n", omitted)
		sb.WriteString(strings.Join(tail, "\n"))
		output = sb.String()
		if len(output) <= MaxOutputBytes {
			return output
		}
	}
	return cutMiddle(output, MaxOutputBytes)
}

// cutMiddle keeps the start and end of s in at most limit bytes, splitting
// only on rune boundaries.
func cutMiddle(s string, limit int) string {
	const notice = "\n\n... (output truncated) ...\n\n"
	keep := max(limit-len(notice), 0)

	headEnd := min(keep/2, len(s))
	for headEnd > 0 && !utf8.RuneStart(s[headEnd]) {
		headEnd--
	}
	tailStart := max(len(s)-(keep-headEnd), headEnd)
	for tailStart < len(s) && !utf8.RuneStart(s[tailStart]) {
		tailStart++
	}
	return s[:headEnd] + notice + s[tailStart:]
}
