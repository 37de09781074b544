package scan

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/pipeline"
)

// scripted succeeds for every file except those in fail.
func scripted(fail map[string]bool, calls *[]string, mu *sync.Mutex) ProcessFunc {
	return func(_ context.Context, file string) (*pipeline.FileResult, error) {
		mu.Lock()
		*calls = append(*calls, file)
		mu.Unlock()

		m := pipeline.NewMetrics()
		m.LLMCalls = 1
		if fail[file] {
			m.Failed = 1
			return &pipeline.FileResult{
				SourcePath: file,
				TestPath:   file + ".test",
				Code:       apperr.CodeSelfHealExhausted,
				Error:      "1 test(s) still failing after 3 fix attempt(s)",
				Attempts:   3,
				Metrics:    m,
			}, nil
		}
		m.Completed = 1
		return &pipeline.FileResult{
			SourcePath: file,
			TestPath:   file + ".test",
			Success:    true,
			Code:       apperr.CodeSuccess,
			Score:      95,
			Metrics:    m,
		}, nil
	}
}

func TestProcess_SequentialInOrder(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls []string
	)
	files := []string{"a", "b", "c"}
	res, err := NewBatchProcessor().Process(context.Background(), files, scripted(map[string]bool{"b": true}, &calls, &mu))
	require.NoError(t, err)

	assert.Equal(t, files, calls)
	assert.Equal(t, 3, res.TotalFiles)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.FailedCount)
	assert.Zero(t, res.SkippedCount)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.Metrics.LLMCalls)

	require.Len(t, res.Results, 3)
	assert.Equal(t, StatusSuccess, res.Results[0].Status)
	assert.Equal(t, "a.test", res.Results[0].TestFile)
	assert.Equal(t, 95, res.Results[0].Score)
	assert.Equal(t, StatusFailed, res.Results[1].Status)
	assert.Equal(t, apperr.CodeSelfHealExhausted, res.Results[1].Code)
	assert.Equal(t, 3, res.Results[1].Attempts)
	assert.Contains(t, res.Results[1].Error, "still failing")
}

func TestProcess_StopOnFailureSkipsTheRest(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls []string
	)
	files := []string{"a", "b", "c", "d"}
	res, err := NewBatchProcessor(WithStopOnFailure(true)).
		Process(context.Background(), files, scripted(map[string]bool{"b": true}, &calls, &mu))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.FailedCount)
	assert.Equal(t, 2, res.SkippedCount)
	for _, r := range res.Results[2:] {
		assert.Equal(t, StatusSkipped, r.Status)
		assert.Equal(t, "skipped after an earlier failure", r.Error)
	}
}

func TestProcess_ChunksRunConcurrently(t *testing.T) {
	t.Parallel()

	var (
		running atomic.Int32
		peak    atomic.Int32
		order   []string
		mu      sync.Mutex
	)
	fn := func(_ context.Context, file string) (*pipeline.FileResult, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		mu.Lock()
		order = append(order, file)
		mu.Unlock()
		return &pipeline.FileResult{SourcePath: file, Success: true, Code: apperr.CodeSuccess}, nil
	}

	files := []string{"a", "b", "c", "d", "e"}
	res, err := NewBatchProcessor(WithConcurrency(2)).Process(context.Background(), files, fn)
	require.NoError(t, err)

	assert.Equal(t, 5, res.SuccessCount)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	// Chunks are sequential: {a,b} before {c,d} before {e}.
	require.Len(t, order, 5)
	assert.ElementsMatch(t, []string{"a", "b"}, order[:2])
	assert.ElementsMatch(t, []string{"c", "d"}, order[2:4])
	assert.Equal(t, "e", order[4])
	for i, r := range res.Results {
		assert.Equal(t, files[i], r.File, "results keep input order")
	}
}

func TestProcess_StopOnFailureSkipsLaterChunks(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls []string
	)
	files := []string{"a", "b", "c", "d"}
	res, err := NewBatchProcessor(WithConcurrency(2), WithStopOnFailure(true)).
		Process(context.Background(), files, scripted(map[string]bool{"a": true}, &calls, &mu))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, calls, "the failing file's chunk finishes")
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.FailedCount)
	assert.Equal(t, 2, res.SkippedCount)
}

func TestProcess_ErrorsBecomeFailures(t *testing.T) {
	t.Parallel()

	fn := func(_ context.Context, file string) (*pipeline.FileResult, error) {
		if file == "missing" {
			return nil, apperr.New(apperr.KindFileNotFound, "analyze", "no such file")
		}
		return &pipeline.FileResult{SourcePath: file, TestPath: "x.test.ts"}, errors.New("disk full")
	}
	res, err := NewBatchProcessor().Process(context.Background(), []string{"missing", "other"}, fn)
	require.NoError(t, err)

	assert.Equal(t, 2, res.FailedCount)
	assert.Equal(t, apperr.CodeFileNotFound, res.Results[0].Code)
	assert.Contains(t, res.Results[0].Error, "no such file")
	assert.Equal(t, apperr.CodeGenerationFailed, res.Results[1].Code)
	assert.Equal(t, "x.test.ts", res.Results[1].TestFile)
}

func TestProcess_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	fn := func(_ context.Context, file string) (*pipeline.FileResult, error) {
		cancel()
		return &pipeline.FileResult{SourcePath: file, Success: true}, nil
	}
	res, err := NewBatchProcessor().Process(ctx, []string{"a", "b"}, fn)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.SkippedCount)
	assert.Equal(t, "batch cancelled", res.Results[1].Error)
}

func TestProcess_ProgressAndHash(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(src, []byte("export const a = 1;\n"), 0o644))

	var events []pipeline.ProgressEvent
	b := NewBatchProcessor(WithBatchProgress(func(ev pipeline.ProgressEvent) { events = append(events, ev) }))
	fn := func(_ context.Context, file string) (*pipeline.FileResult, error) {
		return &pipeline.FileResult{SourcePath: file, Success: true}, nil
	}
	res, err := b.Process(context.Background(), []string{src, filepath.Join(dir, "gone.ts")}, fn)
	require.NoError(t, err)

	assert.Len(t, res.Results[0].SourceHash, 16)
	assert.Empty(t, res.Results[1].SourceHash)

	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Current)
	assert.Equal(t, 2, events[1].Current)
	assert.Equal(t, 2, events[1].Total)
	assert.Equal(t, pipeline.PhaseComplete, events[0].Phase)
}

func TestProcess_Empty(t *testing.T) {
	t.Parallel()

	res, err := NewBatchProcessor().Process(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, res.TotalFiles)
	assert.Empty(t, res.Results)
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	res := &BatchResult{
		RunID:        "run-1",
		TotalFiles:   1,
		SuccessCount: 1,
		Results:      []FileReport{{File: "a.ts", Status: StatusSuccess, Score: 90}},
		Metrics:      pipeline.NewMetrics(),
	}
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "out", "report.json")
	require.NoError(t, WriteReport(jsonPath, res))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded BatchResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, StatusSuccess, decoded.Results[0].Status)

	yamlPath := filepath.Join(dir, "report.yaml")
	require.NoError(t, WriteReport(yamlPath, res))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "run-1", doc["run_id"])
	assert.Equal(t, 1, doc["success_count"])
}
