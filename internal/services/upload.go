package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/pdf2md/internal/config"
	"github.com/Lllllllleong/pdf2md/internal/gcp"
	"github.com/Lllllllleong/pdf2md/internal/models"
	"github.com/Lllllllleong/pdf2md/internal/output"
	"github.com/Lllllllleong/pdf2md/internal/pdfsource"
)

// GCSEvent is the payload of a storage object finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// UploadConfig holds the settings specific to the upload trigger.
type UploadConfig struct {
	ResultsBucket string
	Vision        bool
}

// UploadFunction summarizes every PDF uploaded to a bucket into RESULTS_BUCKET.
type UploadFunction struct {
	summarizer     *SummarizerFunction
	prompts        config.Prompts
	config         UploadConfig
	newDestination func(name string) (output.Destination, error)
	download       func(ctx context.Context, bucket, object, destPath string) error
}

// NewUploadSummarizer creates a new UploadFunction instance from the environment.
func NewUploadSummarizer(ctx context.Context) (*UploadFunction, error) {
	cfg := config.Load()
	uploadCfg := UploadConfig{
		ResultsBucket: config.GetEnv("RESULTS_BUCKET", ""),
		Vision:        strings.EqualFold(config.GetEnv("VISION", "false"), "true"),
	}
	if uploadCfg.ResultsBucket == "" {
		return nil, fmt.Errorf("RESULTS_BUCKET environment variable must be set")
	}

	prompts, err := loadPromptsFromEnv()
	if err != nil {
		return nil, err
	}
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	var opts []SummarizerOption
	if cfg.FirestoreCollection != "" {
		firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		opts = append(opts, WithJobStore(gcp.NewFirestoreJobStore(firestoreClient, cfg.FirestoreCollection)))
	}

	f := &UploadFunction{
		summarizer: NewSummarizer(provider, NewInvoker(cfg), pdfsource.NewExtractor(), SummarizerConfigFrom(cfg), opts...),
		prompts:    prompts,
		config:     uploadCfg,
		newDestination: func(name string) (output.Destination, error) {
			return gcp.NewGCSDestination(storageClient, "gs://"+uploadCfg.ResultsBucket, name)
		},
		download: func(ctx context.Context, bucket, object, destPath string) error {
			return gcp.DownloadObject(ctx, storageClient, bucket, object, destPath)
		},
	}
	slog.Info("Upload summarizer logic initialized.", "resultsBucket", uploadCfg.ResultsBucket, "provider", cfg.Provider)
	return f, nil
}

// loadPromptsFromEnv prefers inline prompts and falls back to PROMPTS_PATH.
func loadPromptsFromEnv() (config.Prompts, error) {
	if summarizer := config.GetEnv("SUMMARIZER_PROMPT", ""); summarizer != "" {
		p := config.Prompts{
			PageExtraction: config.GetEnv("PAGE_EXTRACTION_PROMPT", config.DefaultPageExtractionPrompt),
			Summarizer:     summarizer,
		}
		return p, p.Validate()
	}
	return config.LoadPrompts(config.GetEnv("PROMPTS_PATH", "prompts.json"))
}

// Process summarizes the uploaded object. Non-PDF objects and objects whose
// result already exists are skipped.
func (f *UploadFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.EqualFold(filepath.Ext(e.Name), ".pdf") {
		logCtx.Info("Ignoring non-PDF object.")
		return nil
	}

	stem := strings.TrimSuffix(filepath.Base(e.Name), filepath.Ext(e.Name))
	dest, err := f.newDestination(stem)
	if err != nil {
		return err
	}
	exists, err := dest.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		logCtx.Info("Result already exists. Skipping.", "destination", dest.String())
		return nil
	}

	tempDir, err := os.MkdirTemp("", "pdf2md-upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, "source.pdf")
	if err := f.download(ctx, e.Bucket, e.Name, sourcePath); err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	kind := models.PageKindText
	if f.config.Vision {
		kind = models.PageKindImage
	}
	_, err = f.summarizer.Process(ctx, Job{
		SourcePath:  sourcePath,
		Filename:    filepath.Base(e.Name),
		Kind:        kind,
		Prompts:     f.prompts,
		Destination: dest,
	})
	if errors.Is(err, output.ErrDestinationExists) {
		// Another invocation for the same object finished first.
		logCtx.Info("Result written concurrently. Skipping.", "destination", dest.String())
		return nil
	}
	return err
}
