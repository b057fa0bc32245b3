package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/Lllllllleong/pdf2md/internal/config"
	"github.com/Lllllllleong/pdf2md/internal/llm"
	"github.com/Lllllllleong/pdf2md/internal/models"
)

// Partition splits pages into consecutive batches of at most size pages.
// Batch i covers pages [i*size, min((i+1)*size, n)). size < 1 is treated as 1.
func Partition(pages models.Pages, size int) []models.Batch {
	if size < 1 {
		size = 1
	}
	n := pages.Len()
	batches := make([]models.Batch, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		batches = append(batches, models.Batch{
			Index: len(batches),
			Kind:  pages.Kind,
			Pages: pages.Items[start:end:end],
		})
	}
	return batches
}

// Unit is one scheduled batch: its running chain and its live status.
type Unit struct {
	Batch  models.Batch
	task   *Task[string]
	status *Status
}

// Index is the batch position in document order.
func (u *Unit) Index() int { return u.Batch.Index }

// Status returns the live status record of the unit.
func (u *Unit) Status() *Status { return u.status }

// Done is closed once the unit has settled.
func (u *Unit) Done() <-chan struct{} { return u.task.Done() }

// Wait blocks until the unit settles and returns its fragment.
func (u *Unit) Wait(ctx context.Context) (string, error) { return u.task.Wait(ctx) }

// Scheduler starts one chain per batch, all at once, plus an independent title task.
type Scheduler struct {
	provider llm.Provider
	invoker  *llm.Invoker
	models   Models
	sem      *semaphore.Weighted
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithMaxConcurrent caps the number of batches running their chain at once.
// n <= 0 means no cap.
func WithMaxConcurrent(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewScheduler returns a scheduler sending every call through invoker.
func NewScheduler(provider llm.Provider, invoker *llm.Invoker, models Models, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{provider: provider, invoker: invoker, models: models}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule partitions pages and dispatches every batch without waiting for any
// of them. Units are returned in batch order. Units run independently: one
// failing does not cancel the others.
func (s *Scheduler) Schedule(ctx context.Context, pages models.Pages, prompts config.Prompts, batchSize int) (*Task[string], []*Unit) {
	chain := NewChain(s.provider, s.invoker, prompts, s.models)
	title := Go(func() (string, error) { return chain.Title(ctx) })

	batches := Partition(pages, batchSize)
	units := make([]*Unit, len(batches))
	for i, batch := range batches {
		units[i] = s.dispatch(ctx, chain, batch)
	}
	slog.Info("Scheduled batches", "batches", len(units), "pages", pages.Len(), "batchSize", batchSize)
	return title, units
}

func (s *Scheduler) dispatch(ctx context.Context, chain *Chain, batch models.Batch) *Unit {
	u := &Unit{Batch: batch, status: NewStatus()}
	u.task = Go(func() (string, error) {
		if s.sem != nil {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				u.status.Fail(err)
				return "", &BatchError{Index: batch.Index, Stage: StageInvoking, Err: err}
			}
			defer s.sem.Release(1)
		}
		fragment, err := chain.Run(ctx, batch, u.status)
		if err != nil {
			u.status.Fail(err)
			slog.Error("Batch failed", "batch", batch.Index, "error", err)
		}
		return fragment, err
	})
	return u
}

// Statuses returns the status record of each unit, in batch order.
func Statuses(units []*Unit) []*Status {
	out := make([]*Status, len(units))
	for i, u := range units {
		out[i] = u.status
	}
	return out
}
