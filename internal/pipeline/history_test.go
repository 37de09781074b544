package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

func TestFixHistory_Budget(t *testing.T) {
	t.Parallel()

	h := newFixHistory(2)
	assert.True(t, h.Remaining())
	assert.Equal(t, 1, h.begin())
	assert.True(t, h.Remaining())
	assert.Equal(t, 2, h.begin())
	assert.False(t, h.Remaining())
}

func TestFixHistory_SeeIgnoresSurroundingWhitespace(t *testing.T) {
	t.Parallel()

	var h FixHistory
	hash, dup := h.see("it('a', () => {})")
	assert.False(t, dup)
	assert.Len(t, hash, 16)

	again, dup := h.see("\n  it('a', () => {})  \n")
	assert.True(t, dup)
	assert.Equal(t, hash, again)

	_, dup = h.see("it('b', () => {})")
	assert.False(t, dup)
}

func TestFixHistory_Prior(t *testing.T) {
	t.Parallel()

	h := newFixHistory(3)
	h.record(HealingAttempt{Attempt: 1, Error: "provider timed out"})
	h.record(HealingAttempt{Attempt: 2})
	h.record(HealingAttempt{
		Attempt:   3,
		Failures:  []testrun.TestFailure{{TestName: "adds"}, {TestName: "rounds"}},
		Duplicate: true,
	})

	prior := h.Prior()
	require.Len(t, prior, 3)
	assert.Equal(t, "fix failed: provider timed out", prior[0].Summary)
	assert.Equal(t, "addressed static check findings", prior[1].Summary)
	assert.Equal(t, "addressed 2 failing test(s): adds, rounds", prior[2].Summary)
	assert.Equal(t, 3, prior[2].Attempt)
	assert.True(t, prior[2].Duplicate)
}

func TestMetrics_Merge(t *testing.T) {
	t.Parallel()

	total := NewMetrics()
	a := NewMetrics()
	a.AddPhase(PhaseGenerating, 2*time.Second)
	a.LLMCalls = 2
	a.Completed = 1

	b := Metrics{LLMCalls: 3, TestRuns: 4, FixAttempts: 2, Failed: 1}
	b.AddPhase(PhaseGenerating, time.Second)
	b.AddPhase(PhaseRunning, 500*time.Millisecond)

	total.Merge(a)
	total.Merge(b)

	assert.Equal(t, 3*time.Second, total.PhaseDurations[PhaseGenerating])
	assert.Equal(t, 500*time.Millisecond, total.PhaseDurations[PhaseRunning])
	assert.Equal(t, 3500*time.Millisecond, total.Total())
	assert.Equal(t, 5, total.LLMCalls)
	assert.Equal(t, 4, total.TestRuns)
	assert.Equal(t, 2, total.FixAttempts)
	assert.Equal(t, 1, total.Completed)
	assert.Equal(t, 1, total.Failed)
}

func TestPhaseTerminal(t *testing.T) {
	t.Parallel()

	for _, p := range []Phase{PhaseAnalyzing, PhaseGenerating, PhaseValidating, PhaseRunning, PhaseFixing} {
		assert.False(t, p.Terminal(), p)
	}
	assert.True(t, PhaseComplete.Terminal())
	assert.True(t, PhaseError.Terminal())
}
