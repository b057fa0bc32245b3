package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lllllllleong/pdf2md/internal/config"
	"github.com/Lllllllleong/pdf2md/internal/llm"
	"github.com/Lllllllleong/pdf2md/internal/models"
	"github.com/Lllllllleong/pdf2md/internal/output"
	"github.com/Lllllllleong/pdf2md/internal/pdfsource"
	"github.com/Lllllllleong/pdf2md/internal/pipeline"
)

// SummarizerConfig holds the run settings shared by every job.
type SummarizerConfig struct {
	Models        pipeline.Models
	BatchSize     int
	MaxConcurrent int
}

// SummarizerConfigFrom picks the summarizer settings out of cfg.
func SummarizerConfigFrom(cfg config.Config) SummarizerConfig {
	return SummarizerConfig{
		Models:        pipeline.Models{Extraction: cfg.ExtractionModel, Summarizer: cfg.SummarizerModel},
		BatchSize:     cfg.BatchSize,
		MaxConcurrent: cfg.MaxConcurrent,
	}
}

// PageExtractor reads the pages of a source document.
type PageExtractor interface {
	Extract(ctx context.Context, path string, kind models.PageKind) (models.Pages, error)
}

// Observer is told about a job's progress. The CLI uses it for its terminal output.
type Observer interface {
	Extracted(pageCount int)
	// Scheduled is called once every batch is dispatched. The returned function
	// is called after every batch has settled.
	Scheduled(statuses []*pipeline.Status) (stop func())
}

type nopObserver struct{}

func (nopObserver) Extracted(int)                        {}
func (nopObserver) Scheduled([]*pipeline.Status) func() { return func() {} }

// Job is one PDF to summarize.
type Job struct {
	SourcePath  string
	Filename    string
	Kind        models.PageKind
	Prompts     config.Prompts
	BatchSize   int
	Destination output.Destination
	// Provider overrides the summarizer's provider, for per-request credentials.
	Provider llm.Provider
	// Models overrides the configured model names. Set it together with Provider
	// when the override talks to a different backend.
	Models pipeline.Models
}

// Result describes a completed job.
type Result struct {
	Title       string
	Markdown    string
	PageCount   int
	BatchCount  int
	Destination string
}

// SummarizerFunction turns a PDF into one Markdown document.
type SummarizerFunction struct {
	provider  llm.Provider
	invoker   *llm.Invoker
	extractor PageExtractor
	jobs      JobStore
	observer  Observer
	config    SummarizerConfig
}

// SummarizerOption configures a SummarizerFunction.
type SummarizerOption func(*SummarizerFunction)

// WithJobStore records every job in store.
func WithJobStore(store JobStore) SummarizerOption {
	return func(f *SummarizerFunction) { f.jobs = store }
}

// WithObserver reports job progress to obs.
func WithObserver(obs Observer) SummarizerOption {
	return func(f *SummarizerFunction) { f.observer = obs }
}

// NewSummarizer creates a new SummarizerFunction instance.
func NewSummarizer(provider llm.Provider, invoker *llm.Invoker, extractor PageExtractor, cfg SummarizerConfig, opts ...SummarizerOption) *SummarizerFunction {
	f := &SummarizerFunction{
		provider:  provider,
		invoker:   invoker,
		extractor: extractor,
		jobs:      nopJobStore{},
		observer:  nopObserver{},
		config:    cfg,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Process runs one job end to end: destination check, page extraction,
// concurrent batch processing, assembly and the final write. The destination
// is checked before any provider call and is never overwritten.
func (f *SummarizerFunction) Process(ctx context.Context, job Job) (*Result, error) {
	filename := job.Filename
	if filename == "" {
		filename = filepath.Base(job.SourcePath)
	}
	logCtx := slog.With("source", filename, "kind", job.Kind, "destination", job.Destination.String())
	logCtx.Info("Starting summarization.")

	if err := job.Prompts.Validate(); err != nil {
		return nil, err
	}
	exists, err := job.Destination.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check destination: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", output.ErrDestinationExists, job.Destination)
	}

	fileHash, err := calculateFileHash(job.SourcePath)
	if err != nil {
		// A missing file is reported by the extractor with its own error.
		logCtx.Warn("Failed to calculate file hash", "error", err)
	}
	jobID, err := f.jobs.Create(ctx, models.Document{
		FileHash:         fileHash,
		OriginalFilename: filename,
		Status:           models.StatusExtracting,
		PageKind:         string(job.Kind),
		Destination:      job.Destination.String(),
		CreatedAt:        time.Now(),
	})
	if err != nil {
		logCtx.Error("Failed to create job record", "error", err)
		return nil, err
	}
	if jobID != "" {
		logCtx = logCtx.With("documentId", jobID)
	}

	pages, err := f.extractor.Extract(ctx, job.SourcePath, job.Kind)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, jobID, "failed to extract pages", err)
	}
	f.observer.Extracted(pages.Len())

	batchSize := job.BatchSize
	if batchSize < 1 {
		batchSize = f.config.BatchSize
	}
	batchCount := len(pipeline.Partition(pages, batchSize))
	logCtx = logCtx.With("pageCount", pages.Len(), "batchCount", batchCount)
	if err := f.jobs.Update(ctx, jobID, map[string]interface{}{
		"status":     models.StatusProcessing,
		"pageCount":  pages.Len(),
		"batchCount": batchCount,
	}); err != nil {
		logCtx.Warn("Failed to update job record", "error", err)
	}

	provider := f.provider
	if job.Provider != nil {
		provider = job.Provider
	}
	stageModels := f.config.Models
	if job.Models != (pipeline.Models{}) {
		stageModels = job.Models
	}
	scheduler := pipeline.NewScheduler(provider, f.invoker, stageModels, pipeline.WithMaxConcurrent(f.config.MaxConcurrent))
	titleTask, units := scheduler.Schedule(ctx, pages, job.Prompts, batchSize)

	stop := f.observer.Scheduled(pipeline.Statuses(units))
	fragments, err := pipeline.Collect(ctx, units)
	stop()
	if err != nil {
		return nil, f.handleError(ctx, logCtx, jobID, "failed to process batches", err)
	}

	title, err := titleTask.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, f.handleError(ctx, logCtx, jobID, "failed to generate title", err)
		}
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
		logCtx.Warn("Title generation failed, using file name", "error", err, "title", title)
	}

	doc := pipeline.Assemble(title, fragments)
	if err := job.Destination.Write(ctx, doc); err != nil {
		return nil, f.handleError(ctx, logCtx, jobID, "failed to write document", err)
	}

	if err := f.jobs.Update(ctx, jobID, map[string]interface{}{
		"status":      models.StatusCompleted,
		"destination": job.Destination.String(),
	}); err != nil {
		logCtx.Warn("Failed to update job record", "error", err)
	}
	logCtx.Info("Summarization completed.", "title", title)

	return &Result{
		Title:       title,
		Markdown:    doc,
		PageCount:   pages.Len(),
		BatchCount:  batchCount,
		Destination: job.Destination.String(),
	}, nil
}

// handleError logs err, marks the job record as failed and returns err wrapped with message.
func (f *SummarizerFunction) handleError(ctx context.Context, logCtx *slog.Logger, jobID, message string, err error) error {
	logCtx.Error(message, "error", err)
	details := err.Error()
	if failed := pipeline.FailedBatches(err); len(failed) > 0 {
		lines := make([]string, len(failed))
		for i, be := range failed {
			lines[i] = be.Error()
		}
		details = strings.Join(lines, "; ")
	}
	// Record the failure even when ctx is cancelled.
	updateCtx := context.WithoutCancel(ctx)
	if updateErr := f.jobs.Update(updateCtx, jobID, map[string]interface{}{
		"status":       models.StatusFailed,
		"errorDetails": details,
	}); updateErr != nil {
		logCtx.Error("Failed to mark job as failed", "error", updateErr)
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsInputError reports whether err stems from the job's inputs rather than from processing.
func IsInputError(err error) bool {
	return errors.Is(err, config.ErrMissingPrompts) ||
		errors.Is(err, config.ErrMissingCredentials) ||
		errors.Is(err, output.ErrDestinationExists) ||
		errors.Is(err, pdfsource.ErrSourceNotFound) ||
		errors.Is(err, pdfsource.ErrSourceUnreadable)
}
