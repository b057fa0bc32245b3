// Package pipeline partitions pages into batches, runs each batch through a
// two-stage transform chain concurrently and assembles the ordered results.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/pdf2md/internal/config"
	"github.com/Lllllllleong/pdf2md/internal/llm"
	"github.com/Lllllllleong/pdf2md/internal/models"
)

// Models names the model used by each stage.
type Models struct {
	Extraction string
	Summarizer string
}

// PageText is the normalized text of a batch, the output of the extraction stage.
type PageText string

// Fragment is the Markdown produced for one batch. It may be empty.
type Fragment string

// Chain is the fixed two-stage transform applied to every batch: extraction
// turns raw pages into text, summarization turns that text into Markdown.
type Chain struct {
	provider llm.Provider
	invoker  *llm.Invoker
	prompts  config.Prompts
	models   Models
}

// NewChain builds the chain for one run. The prompts are fixed for its lifetime.
func NewChain(provider llm.Provider, invoker *llm.Invoker, prompts config.Prompts, models Models) *Chain {
	return &Chain{
		provider: provider,
		invoker:  invoker,
		prompts:  prompts,
		models:   models,
	}
}

// Run executes both stages for batch, keeping status current. A failure is
// returned as a *BatchError naming the stage it happened in.
func (c *Chain) Run(ctx context.Context, batch models.Batch, status *Status) (string, error) {
	logCtx := slog.With("batch", batch.Index, "firstPage", batch.FirstPage(), "lastPage", batch.LastPage())

	status.Set(StageReading)
	text, err := c.Extract(ctx, batch, status)
	if err != nil {
		return "", &BatchError{Index: batch.Index, Stage: StageReading, Err: err}
	}

	status.Set(StageGenerating)
	fragment, err := c.Summarize(ctx, text, status)
	if err != nil {
		return "", &BatchError{Index: batch.Index, Stage: StageGenerating, Err: err}
	}

	status.Set(StageDone)
	logCtx.Info("Batch completed", "fragmentLength", len(fragment))
	return string(fragment), nil
}

// Extract is the first stage. Text batches are reformatted, image batches are
// transcribed with a multi-image request.
func (c *Chain) Extract(ctx context.Context, batch models.Batch, notes llm.Notes) (PageText, error) {
	var req llm.Request
	switch batch.Kind {
	case models.PageKindImage:
		req = c.imageExtractionRequest(batch)
	default:
		req = llm.TextRequest(c.models.Extraction, labelPages(batch.Pages), c.prompts.PageExtraction)
	}

	reply, err := c.invoker.Invoke(ctx, c.provider, req, notes)
	if err != nil {
		return "", fmt.Errorf("failed to extract pages %d-%d: %w", batch.FirstPage(), batch.LastPage(), err)
	}
	if !reply.IsText() {
		slog.Warn("Extraction returned non-text content, using its text form", "batch", batch.Index, "content", reply.NonText)
	}
	return PageText(reply.Text), nil
}

func (c *Chain) imageExtractionRequest(batch models.Batch) llm.Request {
	parts := make([]llm.Part, 0, 2*len(batch.Pages))
	for _, p := range batch.Pages {
		parts = append(parts,
			llm.Part{Text: fmt.Sprintf("Page %d", p.Number)},
			llm.Part{JPEGBase64: p.Content},
		)
	}
	return llm.Request{
		Model:  c.models.Extraction,
		System: []string{c.prompts.PageExtraction},
		Parts:  parts,
	}
}

// labelPages joins pages as "Page n: text" blocks.
func labelPages(pages []models.Page) string {
	labelled := make([]string, len(pages))
	for i, p := range pages {
		labelled[i] = fmt.Sprintf("Page %d: %s", p.Number, p.Content)
	}
	return strings.Join(labelled, "\n\n")
}

// Summarize is the second stage. The reply must be text; math delimiters are
// normalized, a markdown fence is removed and the empty signal becomes "".
func (c *Chain) Summarize(ctx context.Context, text PageText, notes llm.Notes) (Fragment, error) {
	req := llm.TextRequest(c.models.Summarizer, string(text), c.prompts.Summarizer, FormattingInstructions)

	reply, err := c.invoker.Invoke(ctx, c.provider, req, notes)
	if err != nil {
		return "", fmt.Errorf("failed to summarize: %w", err)
	}
	if !reply.IsText() {
		return "", fmt.Errorf("%w: %s", llm.ErrUnexpectedResponse, reply.NonText)
	}

	content := StripMarkdownFence(NormalizeMath(reply.Text))
	if IsEmptySignal(content) {
		return "", nil
	}
	if LooksLikeRefusal(content) {
		slog.Warn("Summarizer response looks like a refusal", "response", content)
	}
	return Fragment(content), nil
}

// Title asks for a document title derived from the summarizer prompt. It does
// not depend on any batch.
func (c *Chain) Title(ctx context.Context) (string, error) {
	req := llm.TextRequest(c.models.Summarizer, c.prompts.Summarizer, TitleInstruction)
	reply, err := c.invoker.Invoke(ctx, c.provider, req, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate title: %w", err)
	}
	if !reply.IsText() {
		return "", fmt.Errorf("%w: %s", llm.ErrUnexpectedResponse, reply.NonText)
	}
	title := CleanTitle(reply.Text)
	if title == "" {
		return "", fmt.Errorf("%w: empty title", llm.ErrUnexpectedResponse)
	}
	return title, nil
}
