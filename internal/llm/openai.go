package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider calls the Chat Completions API.
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider creates a provider for apiKey. An empty baseURL keeps the SDK default.
// The SDK's own retries are disabled; the Invoker owns the retry policy.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{client: openai.NewClient(opts...)}
}

// Invoke implements Provider.
func (p *OpenAIProvider) Invoke(ctx context.Context, req Request) (Reply, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.System)+1)
	for _, s := range req.System {
		messages = append(messages, openai.SystemMessage(s))
	}
	messages = append(messages, userMessage(req))

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: messages,
	})
	if err != nil {
		return Reply{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return Reply{NonText: "no choices"}, nil
	}

	msg := resp.Choices[0].Message
	switch {
	case msg.Refusal != "":
		return Reply{NonText: "refusal: " + msg.Refusal}, nil
	case len(msg.ToolCalls) > 0:
		return Reply{NonText: fmt.Sprintf("%d tool calls", len(msg.ToolCalls))}, nil
	}
	return Reply{Text: msg.Content}, nil
}

func userMessage(req Request) openai.ChatCompletionMessageParamUnion {
	if !req.HasImages() {
		return openai.UserMessage(req.UserText())
	}
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(req.Parts))
	for _, part := range req.Parts {
		if part.Text != "" {
			parts = append(parts, openai.TextContentPart(part.Text))
		}
		if part.JPEGBase64 != "" {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: "data:image/jpeg;base64," + part.JPEGBase64,
			}))
		}
	}
	return openai.UserMessage(parts)
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return err
}

var _ Provider = (*OpenAIProvider)(nil)
