package services

import (
	"context"
	"fmt"

	"github.com/Lllllllleong/pdf2md/internal/config"
	"github.com/Lllllllleong/pdf2md/internal/gcp"
	"github.com/Lllllllleong/pdf2md/internal/llm"
)

// NewProvider builds the model provider selected by cfg. The caller should
// close the result if it implements io.Closer.
func NewProvider(ctx context.Context, cfg config.Config) (llm.Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case config.ProviderVertex:
		p, err := gcp.NewVertexProvider(ctx, cfg.ProjectID, cfg.VertexAIRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex provider: %w", err)
		}
		return p, nil
	default:
		return llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), nil
	}
}

// NewInvoker builds the retrying invoker described by cfg.
func NewInvoker(cfg config.Config) *llm.Invoker {
	return llm.NewInvoker(cfg.MaxRetries, cfg.RetryDelay, llm.WithRequestsPerMinute(cfg.RequestsPerMinute))
}
