package llm_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdf2md/internal/llm"
	"github.com/Lllllllleong/pdf2md/internal/llm/llmtest"
)

type noteLog struct {
	mu    sync.Mutex
	notes []string
}

func (n *noteLog) AppendNote(note string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

func TestInvokerRetriesTransientFailures(t *testing.T) {
	const maxRetries = 5
	for k := 0; k < maxRetries; k++ {
		provider := &llmtest.Flaky{Failures: k, Reply: llm.Reply{Text: "ok"}}
		notes := &noteLog{}
		inv := llm.NewInvoker(maxRetries, time.Millisecond)

		reply, err := inv.Invoke(context.Background(), provider, llm.TextRequest("m", "hi"), notes)
		require.NoError(t, err, "k=%d", k)
		assert.Equal(t, "ok", reply.Text)
		assert.Len(t, notes.notes, k, "k=%d", k)
		assert.Equal(t, k+1, provider.Calls())
	}
}

func TestInvokerRetryLogsBelowWarn(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	provider := &llmtest.Flaky{Failures: 2, Reply: llm.Reply{Text: "ok"}}
	notes := &noteLog{}
	_, err := llm.NewInvoker(3, time.Millisecond).Invoke(context.Background(), provider, llm.TextRequest("m", "hi"), notes)
	require.NoError(t, err)
	assert.Len(t, notes.notes, 2)
	assert.Empty(t, logs.String())
}

func TestInvokerExhaustsRetries(t *testing.T) {
	provider := &llmtest.Flaky{Failures: 100}
	notes := &noteLog{}
	inv := llm.NewInvoker(5, time.Millisecond)

	_, err := inv.Invoke(context.Background(), provider, llm.TextRequest("m", "hi"), notes)
	require.ErrorIs(t, err, llm.ErrMaxRetriesExceeded)
	assert.ErrorIs(t, err, llm.ErrRateLimited)
	assert.Equal(t, 5, provider.Calls())
	assert.Len(t, notes.notes, 4)
}

func TestInvokerNoteDescribesRetry(t *testing.T) {
	provider := &llmtest.Flaky{Failures: 1, Reply: llm.Reply{Text: "ok"}}
	notes := &noteLog{}
	inv := llm.NewInvoker(5, 90*time.Millisecond)

	_, err := inv.Invoke(context.Background(), provider, llm.TextRequest("m", "hi"), notes)
	require.NoError(t, err)
	require.Len(t, notes.notes, 1)
	assert.Equal(t, "rate limited: retrying in 90ms (1/5)", notes.notes[0])
}

func TestInvokerDoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("bad request")
	provider := &llmtest.Flaky{Failures: 3, Err: boom}
	notes := &noteLog{}
	inv := llm.NewInvoker(5, time.Millisecond)

	_, err := inv.Invoke(context.Background(), provider, llm.TextRequest("m", "hi"), notes)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, llm.ErrMaxRetriesExceeded)
	assert.Equal(t, 1, provider.Calls())
	assert.Empty(t, notes.notes)
}

func TestInvokerNilNotes(t *testing.T) {
	provider := &llmtest.Flaky{Failures: 2, Reply: llm.Reply{Text: "ok"}}
	inv := llm.NewInvoker(3, 0)

	reply, err := inv.Invoke(context.Background(), provider, llm.TextRequest("m", "hi"), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Text)
}

func TestInvokerBackoffHonoursCancellation(t *testing.T) {
	provider := &llmtest.Flaky{Failures: 100}
	inv := llm.NewInvoker(5, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := inv.Invoke(ctx, provider, llm.TextRequest("m", "hi"), nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return provider.Calls() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("invoker did not stop after cancellation")
	}
}

func TestInvokerRateLimit(t *testing.T) {
	provider := &llmtest.Recorder{}
	inv := llm.NewInvoker(1, 0, llm.WithRequestsPerMinute(60*60*10))

	for i := 0; i < 3; i++ {
		_, err := inv.Invoke(context.Background(), provider, llm.TextRequest("m", "hi"), nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, provider.Count())
}

func TestRequestHelpers(t *testing.T) {
	req := llm.Request{Parts: []llm.Part{{Text: "Page 1"}, {JPEGBase64: "AAAA"}, {Text: "Page 2"}}}
	assert.True(t, req.HasImages())
	assert.Equal(t, "Page 1\n\nPage 2", req.UserText())

	text := llm.TextRequest("m", "body", "sys-a", "sys-b")
	assert.False(t, text.HasImages())
	assert.Equal(t, []string{"sys-a", "sys-b"}, text.System)
	assert.True(t, strings.EqualFold(text.UserText(), "body"))
}
