package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskWait(t *testing.T) {
	task := Go(func() (int, error) { return 42, nil })
	v, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	failed := Go(func() (int, error) { return 0, boom })
	_, err = failed.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestTaskRecoversPanic(t *testing.T) {
	task := Go(func() (string, error) { panic("bad") })
	_, err := task.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestTaskWaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	task := Go(func() (string, error) {
		<-release
		return "late", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := task.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-task.Done():
		t.Fatal("task should still be running")
	default:
	}
}

func TestStatusTransitions(t *testing.T) {
	s := NewStatus()
	assert.Equal(t, StageInvoking, s.String())

	s.Set(StageReading)
	s.AppendNote("rate limited: retrying in 90s (1/5)")
	assert.Equal(t, "reading pages | rate limited: retrying in 90s (1/5)", s.String())

	s.Set(StageGenerating)
	assert.Equal(t, StageGenerating, s.String())
	assert.False(t, s.Failed())

	s.Fail(errors.New("quota"))
	assert.True(t, s.Failed())
	assert.Equal(t, StageGenerating, s.Stage())
	assert.Equal(t, "failed during generating: quota", s.String())
}
