// Package llmtest provides scripted llm.Provider implementations for tests.
package llmtest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Lllllllleong/pdf2md/internal/llm"
)

// Flaky fails with Err for the first Failures calls and then returns Reply.
type Flaky struct {
	Failures int
	Err      error
	Reply    llm.Reply

	calls atomic.Int32
}

// Invoke implements llm.Provider.
func (f *Flaky) Invoke(ctx context.Context, req llm.Request) (llm.Reply, error) {
	n := int(f.calls.Add(1))
	if n <= f.Failures {
		err := f.Err
		if err == nil {
			err = llm.ErrRateLimited
		}
		return llm.Reply{}, err
	}
	return f.Reply, nil
}

// Calls returns how many times Invoke ran.
func (f *Flaky) Calls() int { return int(f.calls.Load()) }

// Recorder answers every request with Respond and keeps the requests it saw.
type Recorder struct {
	Respond func(ctx context.Context, req llm.Request) (llm.Reply, error)

	mu       sync.Mutex
	requests []llm.Request
}

// Invoke implements llm.Provider.
func (r *Recorder) Invoke(ctx context.Context, req llm.Request) (llm.Reply, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.Respond == nil {
		return llm.Reply{Text: req.UserText()}, nil
	}
	return r.Respond(ctx, req)
}

// Requests returns a copy of the recorded requests.
func (r *Recorder) Requests() []llm.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]llm.Request(nil), r.requests...)
}

// Count returns the number of recorded requests.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}
