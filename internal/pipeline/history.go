package pipeline

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/generate"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

// HealingAttempt records one fix attempt of the self-healing loop.
type HealingAttempt struct {
	Attempt int `json:"attempt"`
	// Failures are the test failures the fix was asked to address.
	Failures []testrun.TestFailure `json:"failures,omitempty"`
	// Fixes describes what changed: the regenerated file plus any QA
	// auto-fixes applied to it.
	Fixes []string `json:"fixes,omitempty"`
	Error string   `json:"error,omitempty"`
	// CodeHash fingerprints the code the fix returned.
	CodeHash string `json:"code_hash,omitempty"`
	// Duplicate is set when the returned code matches an earlier version.
	Duplicate bool `json:"duplicate,omitempty"`
}

// FixHistory accumulates the attempts of one self-healing loop. Attempts
// are only ever appended.
type FixHistory struct {
	Attempts       []HealingAttempt `json:"attempts"`
	CurrentAttempt int              `json:"current_attempt"`
	MaxRetries     int              `json:"max_retries"`

	seen map[string]bool
}

func newFixHistory(maxRetries int) FixHistory {
	return FixHistory{MaxRetries: maxRetries, seen: make(map[string]bool)}
}

// Remaining reports whether another attempt fits in the budget.
func (h *FixHistory) Remaining() bool {
	return h.CurrentAttempt < h.MaxRetries
}

// begin starts the next attempt and returns its number.
func (h *FixHistory) begin() int {
	h.CurrentAttempt++
	return h.CurrentAttempt
}

// see registers code as tried and reports whether it had been tried.
func (h *FixHistory) see(code string) (string, bool) {
	if h.seen == nil {
		h.seen = make(map[string]bool)
	}
	hash := fingerprint(code)
	dup := h.seen[hash]
	h.seen[hash] = true
	return hash, dup
}

func (h *FixHistory) record(a HealingAttempt) {
	h.Attempts = append(h.Attempts, a)
}

// Prior renders the attempts for the next fix prompt.
func (h *FixHistory) Prior() []generate.PriorAttempt {
	out := make([]generate.PriorAttempt, 0, len(h.Attempts))
	for _, a := range h.Attempts {
		out = append(out, generate.PriorAttempt{
			Attempt:   a.Attempt,
			Summary:   a.summary(),
			Duplicate: a.Duplicate,
		})
	}
	return out
}

func (a HealingAttempt) summary() string {
	if a.Error != "" {
		return "fix failed: " + a.Error
	}
	if len(a.Failures) == 0 {
		return "addressed static check findings"
	}
	names := make([]string, 0, len(a.Failures))
	for _, f := range a.Failures {
		names = append(names, f.TestName)
	}
	return fmt.Sprintf("addressed %d failing test(s): %s", len(a.Failures), strings.Join(names, ", "))
}

// fingerprint hashes code with surrounding whitespace ignored.
func fingerprint(code string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.TrimSpace(code)))
}
