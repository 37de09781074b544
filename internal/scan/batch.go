package scan

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/pipeline"
)

// Status is the outcome of one file in a batch.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// FileReport is one file's line in a BatchResult.
type FileReport struct {
	File       string            `json:"file" yaml:"file"`
	TestFile   string            `json:"testFile,omitempty" yaml:"test_file,omitempty"`
	Status     Status            `json:"status" yaml:"status"`
	Code       apperr.ResultCode `json:"code,omitempty" yaml:"code,omitempty"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
	Score      int               `json:"score" yaml:"score"`
	Attempts   int               `json:"attempts" yaml:"attempts"`
	SourceHash string            `json:"sourceHash,omitempty" yaml:"source_hash,omitempty"`
	Duration   time.Duration     `json:"duration" yaml:"duration"`
}

// BatchResult aggregates a batch run. SuccessCount, FailedCount and
// SkippedCount always sum to TotalFiles.
type BatchResult struct {
	RunID        string           `json:"runId" yaml:"run_id"`
	StartedAt    time.Time        `json:"startedAt" yaml:"started_at"`
	TotalFiles   int              `json:"totalFiles" yaml:"total_files"`
	SuccessCount int              `json:"successCount" yaml:"success_count"`
	FailedCount  int              `json:"failedCount" yaml:"failed_count"`
	SkippedCount int              `json:"skippedCount" yaml:"skipped_count"`
	Results      []FileReport     `json:"results" yaml:"results"`
	Duration     time.Duration    `json:"duration" yaml:"duration"`
	Metrics      pipeline.Metrics `json:"metrics" yaml:"metrics"`
}

// ProcessFunc runs one file. It is normally Orchestrator.Run. A nil result
// with an error is allowed.
type ProcessFunc func(ctx context.Context, file string) (*pipeline.FileResult, error)

// BatchProcessor runs a ProcessFunc over an ordered file list.
type BatchProcessor struct {
	concurrency   int
	stopOnFailure bool
	progress      pipeline.ProgressFunc
	logger        *log.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithConcurrency sets how many files run at once (default 1). Values
// below 1 mean 1.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) { b.concurrency = max(n, 1) }
}

// WithStopOnFailure skips every file not yet started once one fails.
func WithStopOnFailure(stop bool) BatchOption {
	return func(b *BatchProcessor) { b.stopOnFailure = stop }
}

// WithBatchProgress receives one event per finished file, with Current and
// Total counting files.
func WithBatchProgress(fn pipeline.ProgressFunc) BatchOption {
	return func(b *BatchProcessor) { b.progress = fn }
}

// WithBatchLogger sets the processor's logger.
func WithBatchLogger(l *log.Logger) BatchOption {
	return func(b *BatchProcessor) { b.logger = l }
}

// NewBatchProcessor returns a sequential processor unless configured
// otherwise.
func NewBatchProcessor(opts ...BatchOption) *BatchProcessor {
	b := &BatchProcessor{concurrency: 1}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrDiscard(b.logger)
	if b.progress == nil {
		b.progress = func(pipeline.ProgressEvent) {}
	}
	return b
}

// Process runs fn over files. At concurrency 1 files run strictly in
// order. Above 1 they run in consecutive chunks of that size; a chunk
// starts only after the previous one has finished. A file's failure never
// stops the batch unless stop-on-failure is set, in which case every later
// file (or later chunk) is skipped. The error is non-nil only when ctx
// ends; the partial result is still returned.
func (b *BatchProcessor) Process(ctx context.Context, files []string, fn ProcessFunc) (*BatchResult, error) {
	start := time.Now()
	res := &BatchResult{
		RunID:      uuid.NewString(),
		StartedAt:  start,
		TotalFiles: len(files),
		Results:    make([]FileReport, len(files)),
		Metrics:    pipeline.NewMetrics(),
	}
	logger := b.logger.With("batch_id", res.RunID)
	logger.Info("batch started", "files", len(files), "concurrency", b.concurrency, "stop_on_failure", b.stopOnFailure)

	metrics := make([]pipeline.Metrics, len(files))
	done := make([]bool, len(files))
	finished := 0
	stopped := false

	var ctxErr error
	for chunkStart := 0; chunkStart < len(files); chunkStart += b.concurrency {
		if stopped {
			break
		}
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		end := min(chunkStart+b.concurrency, len(files))

		g, gctx := errgroup.WithContext(ctx)
		for i := chunkStart; i < end; i++ {
			g.Go(func() error {
				res.Results[i], metrics[i] = b.processOne(gctx, files[i], fn)
				done[i] = true
				// Per-file failures never cancel siblings.
				return nil
			})
		}
		_ = g.Wait()

		for i := chunkStart; i < end; i++ {
			finished++
			r := res.Results[i]
			b.progress(pipeline.ProgressEvent{
				Phase:   phaseFor(r.Status),
				File:    r.File,
				Message: string(r.Status),
				Current: finished,
				Total:   len(files),
			})
			if r.Status == StatusFailed && b.stopOnFailure {
				stopped = true
			}
		}
	}
	if ctxErr == nil && ctx.Err() != nil {
		ctxErr = ctx.Err()
	}

	for i, f := range files {
		if !done[i] {
			reason := "skipped after an earlier failure"
			if ctxErr != nil {
				reason = "batch cancelled"
			}
			res.Results[i] = FileReport{File: f, Status: StatusSkipped, Error: reason}
		}
		switch res.Results[i].Status {
		case StatusSuccess:
			res.SuccessCount++
		case StatusFailed:
			res.FailedCount++
		default:
			res.SkippedCount++
		}
		res.Metrics.Merge(metrics[i])
	}
	res.Duration = time.Since(start)

	logger.Info("batch finished",
		"success", res.SuccessCount,
		"failed", res.FailedCount,
		"skipped", res.SkippedCount,
		"duration", res.Duration.Round(time.Millisecond),
	)
	if ctxErr != nil {
		return res, fmt.Errorf("scan: batch: %w", ctxErr)
	}
	return res, nil
}

func (b *BatchProcessor) processOne(ctx context.Context, file string, fn ProcessFunc) (FileReport, pipeline.Metrics) {
	report := FileReport{File: file, SourceHash: hashFile(file)}
	start := time.Now()
	fr, err := fn(ctx, file)
	report.Duration = time.Since(start)

	var metrics pipeline.Metrics
	if fr != nil {
		report.TestFile = fr.TestPath
		report.Code = fr.Code
		report.Error = fr.Error
		report.Score = fr.Score
		report.Attempts = fr.Attempts
		metrics = fr.Metrics
	}
	switch {
	case err != nil:
		report.Status = StatusFailed
		report.Code = apperr.CodeFor(err)
		report.Error = err.Error()
	case fr == nil || !fr.Success:
		report.Status = StatusFailed
		if report.Code == "" || report.Code == apperr.CodeSuccess {
			report.Code = apperr.CodeGenerationFailed
		}
	default:
		report.Status = StatusSuccess
	}

	if report.Status == StatusFailed {
		b.logger.Warn("file failed", "file", file, "code", report.Code, "error", report.Error)
	} else {
		b.logger.Debug("file done", "file", file, "score", report.Score, "attempts", report.Attempts)
	}
	return report, metrics
}

func phaseFor(s Status) pipeline.Phase {
	if s == StatusSuccess {
		return pipeline.PhaseComplete
	}
	return pipeline.PhaseError
}

// hashFile fingerprints a source file for the report. Unreadable files
// hash to "".
func hashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
