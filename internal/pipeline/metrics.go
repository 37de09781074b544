package pipeline

import "time"

// Metrics counts work done by one or more runs. Counters only grow.
type Metrics struct {
	PhaseDurations map[Phase]time.Duration `json:"phase_durations" yaml:"phase_durations"`
	// LLMCalls counts provider calls, retries included.
	LLMCalls    int `json:"llm_calls" yaml:"llm_calls"`
	TestRuns    int `json:"test_runs" yaml:"test_runs"`
	FixAttempts int `json:"fix_attempts" yaml:"fix_attempts"`
	Completed   int `json:"completed" yaml:"completed"`
	Failed      int `json:"failed" yaml:"failed"`
}

// NewMetrics returns zeroed metrics.
func NewMetrics() Metrics {
	return Metrics{PhaseDurations: make(map[Phase]time.Duration)}
}

// AddPhase adds d to phase's total.
func (m *Metrics) AddPhase(phase Phase, d time.Duration) {
	if m.PhaseDurations == nil {
		m.PhaseDurations = make(map[Phase]time.Duration)
	}
	m.PhaseDurations[phase] += d
}

// Merge adds other's counters and durations to m.
func (m *Metrics) Merge(other Metrics) {
	for phase, d := range other.PhaseDurations {
		m.AddPhase(phase, d)
	}
	m.LLMCalls += other.LLMCalls
	m.TestRuns += other.TestRuns
	m.FixAttempts += other.FixAttempts
	m.Completed += other.Completed
	m.Failed += other.Failed
}

// Total is the summed duration of all phases.
func (m *Metrics) Total() time.Duration {
	var total time.Duration
	for _, d := range m.PhaseDurations {
		total += d
	}
	return total
}
