package services

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdf2md/internal/config"
	"github.com/Lllllllleong/pdf2md/internal/llm"
	"github.com/Lllllllleong/pdf2md/internal/models"
	"github.com/Lllllllleong/pdf2md/internal/pipeline"
)

func newTestHTTPFunction(shared *SummarizerFunction) *SummarizeHTTPFunction {
	return &SummarizeHTTPFunction{summarizer: shared, config: config.Config{Provider: config.ProviderOpenAI}}
}

func TestSummarizeHTTPInlinePDF(t *testing.T) {
	provider := lectureModel()
	f := newTestHTTPFunction(newTestSummarizer(provider, &stubExtractor{pages: textPages(4)}))

	res, err := f.Process(context.Background(), &models.SummarizeRequest{
		PDFBase64:            base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 stub")),
		PageExtractionPrompt: testPrompts.PageExtraction,
		SummarizerPrompt:     testPrompts.Summarizer,
		BatchSize:            2,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, res.Status)
	assert.Equal(t, "Exam Summary", res.Title)
	assert.Equal(t, 2, res.BatchCount)
	assert.Equal(t, "# Exam Summary\n\n## Page 1\n\n## Page 3", res.Markdown)
}

func TestSummarizeHTTPDefaultsExtractionPrompt(t *testing.T) {
	provider := lectureModel()
	f := newTestHTTPFunction(newTestSummarizer(provider, &stubExtractor{pages: textPages(1)}))

	_, err := f.Process(context.Background(), &models.SummarizeRequest{
		PDFBase64:        base64.StdEncoding.EncodeToString([]byte("%PDF")),
		SummarizerPrompt: testPrompts.Summarizer,
	})
	require.NoError(t, err)

	var sawDefault bool
	for _, req := range provider.Requests() {
		if req.System[0] == config.DefaultPageExtractionPrompt {
			sawDefault = true
		}
	}
	assert.True(t, sawDefault)
}

func TestSummarizeHTTPRejectsBadRequests(t *testing.T) {
	provider := lectureModel()
	f := newTestHTTPFunction(newTestSummarizer(provider, &stubExtractor{pages: textPages(1)}))

	tests := []struct {
		name string
		req  models.SummarizeRequest
		want error
	}{
		{"missing summarizer prompt", models.SummarizeRequest{PDFBase64: "JVBERg=="}, config.ErrMissingPrompts},
		{"no source", models.SummarizeRequest{SummarizerPrompt: "s"}, ErrInvalidRequest},
		{"both sources", models.SummarizeRequest{SummarizerPrompt: "s", PDFBase64: "JVBERg==", GCSUri: "gs://b/o.pdf"}, ErrInvalidRequest},
		{"bad base64", models.SummarizeRequest{SummarizerPrompt: "s", PDFBase64: "***"}, ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Process(context.Background(), &tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, provider.Count())
}

func TestSummarizeHTTPRequiresSomeCredentials(t *testing.T) {
	f := newTestHTTPFunction(newTestSummarizer(nil, &stubExtractor{pages: textPages(1)}))
	_, err := f.Process(context.Background(), &models.SummarizeRequest{
		PDFBase64:        "JVBERg==",
		SummarizerPrompt: "s",
	})
	assert.ErrorIs(t, err, config.ErrMissingCredentials)

	p, _, err := f.requestProvider(&models.SummarizeRequest{OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestSummarizeHTTPRequestKeyOnVertexDeploymentUsesOpenAIModels(t *testing.T) {
	cfg := config.Config{Provider: config.ProviderVertex, ProjectID: "p", VertexAIRegion: "us-central1"}
	cfg.ApplyDefaults()
	f := &SummarizeHTTPFunction{
		summarizer: NewSummarizer(lectureModel(), nil, &stubExtractor{}, SummarizerConfigFrom(cfg)),
		config:     cfg,
	}

	p, requestModels, err := f.requestProvider(&models.SummarizeRequest{OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &llm.OpenAIProvider{}, p)
	assert.Equal(t, pipeline.Models{Extraction: "gpt-4o-mini", Summarizer: "gpt-4o"}, requestModels)

	shared, sharedModels, err := f.requestProvider(&models.SummarizeRequest{})
	require.NoError(t, err)
	assert.Nil(t, shared)
	assert.Equal(t, pipeline.Models{}, sharedModels)
}

func TestWriteBase64File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pdf")
	require.NoError(t, writeBase64File(path, base64.StdEncoding.EncodeToString([]byte("%PDF-1.7"))))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))
}
