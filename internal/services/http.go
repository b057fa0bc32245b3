package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/pdf2md/internal/config"
	"github.com/Lllllllleong/pdf2md/internal/gcp"
	"github.com/Lllllllleong/pdf2md/internal/llm"
	"github.com/Lllllllleong/pdf2md/internal/models"
	"github.com/Lllllllleong/pdf2md/internal/output"
	"github.com/Lllllllleong/pdf2md/internal/pdfsource"
	"github.com/Lllllllleong/pdf2md/internal/pipeline"
)

// ErrInvalidRequest marks a summarize request that cannot be processed as sent.
var ErrInvalidRequest = errors.New("invalid request")

// SummarizeHTTPFunction serves summarize requests that carry the PDF inline or by GCS URI.
type SummarizeHTTPFunction struct {
	storageClient *storage.Client
	summarizer    *SummarizerFunction
	config        config.Config
}

// NewSummarizeHTTP creates a new SummarizeHTTPFunction instance from the environment.
// Missing provider credentials are tolerated so requests can bring their own key.
func NewSummarizeHTTP(ctx context.Context) (*SummarizeHTTPFunction, error) {
	cfg := config.Load()

	var provider llm.Provider
	if err := cfg.Validate(); err == nil {
		p, err := NewProvider(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider: %w", err)
		}
		provider = p
	} else {
		slog.Warn("No default model credentials; requests must supply their own", "reason", err)
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	var opts []SummarizerOption
	if cfg.FirestoreCollection != "" {
		firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		opts = append(opts, WithJobStore(gcp.NewFirestoreJobStore(firestoreClient, cfg.FirestoreCollection)))
	}

	summarizer := NewSummarizer(provider, NewInvoker(cfg), pdfsource.NewExtractor(), SummarizerConfigFrom(cfg), opts...)
	slog.Info("Summarize HTTP logic initialized.", "provider", cfg.Provider)
	return &SummarizeHTTPFunction{
		storageClient: storageClient,
		summarizer:    summarizer,
		config:        cfg,
	}, nil
}

// Process handles one summarize request and returns the document inline.
func (f *SummarizeHTTPFunction) Process(ctx context.Context, req *models.SummarizeRequest) (*models.SummarizeResponse, error) {
	logCtx := slog.With("executionId", req.ExecutionID, "gcsUri", req.GCSUri)

	prompts := config.Prompts{
		PageExtraction: req.PageExtractionPrompt,
		Summarizer:     req.SummarizerPrompt,
	}
	if prompts.PageExtraction == "" {
		prompts.PageExtraction = config.DefaultPageExtractionPrompt
	}
	if err := prompts.Validate(); err != nil {
		return nil, err
	}

	provider, requestModels, err := f.requestProvider(req)
	if err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "pdf2md-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath, filename, err := f.stageSource(ctx, req, tempDir)
	if err != nil {
		logCtx.Error("Failed to stage source PDF", "error", err)
		return nil, err
	}

	kind := models.PageKindText
	if req.Vision {
		kind = models.PageKindImage
	}
	dest := &output.Memory{}
	res, err := f.summarizer.Process(ctx, Job{
		SourcePath:  sourcePath,
		Filename:    filename,
		Kind:        kind,
		Prompts:     prompts,
		BatchSize:   req.BatchSize,
		Destination: dest,
		Provider:    provider,
		Models:      requestModels,
	})
	if err != nil {
		return nil, err
	}

	return &models.SummarizeResponse{
		Status:     models.StatusCompleted,
		Title:      res.Title,
		Markdown:   res.Markdown,
		BatchCount: res.BatchCount,
	}, nil
}

// requestProvider returns a provider bound to the request's API key together
// with the OpenAI models it must be called with, or nil to use the shared one.
func (f *SummarizeHTTPFunction) requestProvider(req *models.SummarizeRequest) (llm.Provider, pipeline.Models, error) {
	if req.OpenAIAPIKey != "" {
		cfg := f.config.WithOpenAIKey(req.OpenAIAPIKey)
		if cfg.Provider != config.ProviderOpenAI {
			cfg.Provider = config.ProviderOpenAI
			cfg.ExtractionModel = ""
			cfg.SummarizerModel = ""
			cfg.ApplyDefaults()
		}
		return llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), SummarizerConfigFrom(cfg).Models, nil
	}
	if f.summarizer.provider == nil {
		return nil, pipeline.Models{}, fmt.Errorf("%w: no API key configured or supplied", config.ErrMissingCredentials)
	}
	return nil, pipeline.Models{}, nil
}

func (f *SummarizeHTTPFunction) stageSource(ctx context.Context, req *models.SummarizeRequest, tempDir string) (path, filename string, err error) {
	path = filepath.Join(tempDir, "source.pdf")
	switch {
	case req.GCSUri != "" && req.PDFBase64 != "":
		return "", "", fmt.Errorf("%w: gcsUri and pdfBase64 are mutually exclusive", ErrInvalidRequest)
	case req.GCSUri != "":
		bucket, object, err := gcp.ParseGCSURI(req.GCSUri)
		if err != nil {
			return "", "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		if err := gcp.DownloadObject(ctx, f.storageClient, bucket, object, path); err != nil {
			if errors.Is(err, storage.ErrObjectNotExist) {
				return "", "", fmt.Errorf("%w: %s", pdfsource.ErrSourceNotFound, req.GCSUri)
			}
			return "", "", err
		}
		filename = filepath.Base(object)
	case req.PDFBase64 != "":
		if err := writeBase64File(path, req.PDFBase64); err != nil {
			return "", "", err
		}
		filename = "upload.pdf"
	default:
		return "", "", fmt.Errorf("%w: one of gcsUri or pdfBase64 is required", ErrInvalidRequest)
	}
	if req.Filename != "" {
		filename = filepath.Base(req.Filename)
	}
	return path, filename, nil
}

func writeBase64File(path, data string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", path, err)
	}
	defer file.Close()
	decoder := base64.NewDecoder(base64.StdEncoding, strings.NewReader(data))
	if _, err := io.Copy(file, decoder); err != nil {
		return fmt.Errorf("%w: pdfBase64 is not valid base64: %w", ErrInvalidRequest, err)
	}
	return nil
}
