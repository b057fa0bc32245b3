package gcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/pdf2md/internal/llm"
)

// VertexProvider answers llm requests with Gemini models on Vertex AI.
type VertexProvider struct {
	baseClient *genai.Client
}

// NewVertexProvider creates a Vertex AI client for the given project and region.
func NewVertexProvider(ctx context.Context, projectID, region string) (*VertexProvider, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexProvider: projectID and region cannot be empty")
	}
	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexProvider{baseClient: baseClient}, nil
}

// Invoke implements llm.Provider. A model handle is built per call because the
// system instruction differs between stages.
func (p *VertexProvider) Invoke(ctx context.Context, req llm.Request) (llm.Reply, error) {
	model := p.baseClient.GenerativeModel(req.Model)
	if len(req.System) > 0 {
		system := make([]genai.Part, len(req.System))
		for i, s := range req.System {
			system[i] = genai.Text(s)
		}
		model.SystemInstruction = &genai.Content{Parts: system}
	}
	// Lecture material regularly trips the default filters.
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	parts, err := vertexParts(req)
	if err != nil {
		return llm.Reply{}, err
	}
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return llm.Reply{}, classifyVertexError(err)
	}
	return vertexReply(resp), nil
}

func vertexParts(req llm.Request) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, len(req.Parts))
	for i, part := range req.Parts {
		if part.JPEGBase64 == "" {
			parts = append(parts, genai.Text(part.Text))
			continue
		}
		data, err := base64.StdEncoding.DecodeString(part.JPEGBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image part %d: %w", i, err)
		}
		parts = append(parts, genai.ImageData("jpeg", data))
	}
	return parts, nil
}

func vertexReply(resp *genai.GenerateContentResponse) llm.Reply {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil {
			return llm.Reply{NonText: fmt.Sprintf("prompt blocked: %v", resp.PromptFeedback.BlockReason)}
		}
		return llm.Reply{NonText: "no candidates"}
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return llm.Reply{NonText: fmt.Sprintf("empty candidate (finish reason %v)", cand.FinishReason)}
	}

	var sb strings.Builder
	var other []string
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
			continue
		}
		other = append(other, fmt.Sprintf("%T", part))
	}
	if len(other) > 0 {
		return llm.Reply{Text: sb.String(), NonText: "non-text parts: " + strings.Join(other, ", ")}
	}
	return llm.Reply{Text: sb.String()}
}

func classifyVertexError(err error) error {
	if status.Code(err) == codes.ResourceExhausted {
		return fmt.Errorf("%w: %w", llm.ErrRateLimited, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", llm.ErrRateLimited, err)
	}
	return fmt.Errorf("vertex generate content: %w", err)
}

// Close releases the underlying client.
func (p *VertexProvider) Close() error {
	if p.baseClient != nil {
		return p.baseClient.Close()
	}
	return nil
}
