// Package llm defines the model provider boundary and the retrying invoker
// that every network call of the transform chain goes through.
package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrRateLimited is the only transient error kind. Providers wrap it for
	// HTTP 429 and gRPC ResourceExhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrMaxRetriesExceeded is returned once every attempt failed with ErrRateLimited.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	// ErrUnexpectedResponse marks a reply whose shape breaks the text contract.
	ErrUnexpectedResponse = errors.New("unexpected provider response")
)

// Part is one piece of user content: a text block or a base64 JPEG image.
type Part struct {
	Text       string
	JPEGBase64 string
}

// Request is a single model call: system instructions followed by one user turn.
type Request struct {
	Model  string
	System []string
	Parts  []Part
}

// TextRequest builds a request whose user turn is plain text.
func TextRequest(model string, text string, system ...string) Request {
	return Request{Model: model, System: system, Parts: []Part{{Text: text}}}
}

// HasImages reports whether any part carries an image.
func (r Request) HasImages() bool {
	for _, p := range r.Parts {
		if p.JPEGBase64 != "" {
			return true
		}
	}
	return false
}

// UserText joins the text parts of the request.
func (r Request) UserText() string {
	texts := make([]string, 0, len(r.Parts))
	for _, p := range r.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}

// Reply is the raw content of one model response.
type Reply struct {
	Text string
	// NonText describes the payload when the provider answered with something
	// other than text (a refusal, a tool call, a blob). Empty for text replies.
	NonText string
}

// IsText reports whether the reply is plain text.
func (r Reply) IsText() bool { return r.NonText == "" }

// Provider is a model endpoint able to answer text and multi-image requests.
type Provider interface {
	Invoke(ctx context.Context, req Request) (Reply, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (Reply, error)

// Invoke calls f(ctx, req).
func (f ProviderFunc) Invoke(ctx context.Context, req Request) (Reply, error) { return f(ctx, req) }

// IsRetryable is the single retry predicate: only rate limiting is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
