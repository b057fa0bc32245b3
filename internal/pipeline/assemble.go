package pipeline

import (
	"context"
	"errors"
	"strings"
)

// Collect waits for every unit in dispatch order. Fragments are returned in
// batch order regardless of completion order. Every unit is awaited even after
// a failure, so the joined error lists all failed batches.
func Collect(ctx context.Context, units []*Unit) ([]string, error) {
	fragments := make([]string, len(units))
	var errs []error
	for i, u := range units {
		fragment, err := u.Wait(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fragments[i] = fragment
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return fragments, nil
}

// FailedBatches extracts every *BatchError from an error returned by Collect.
func FailedBatches(err error) []*BatchError {
	var out []*BatchError
	var walk func(error)
	walk = func(err error) {
		var be *BatchError
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				walk(e)
			}
			return
		}
		if errors.As(err, &be) {
			out = append(out, be)
		}
	}
	if err != nil {
		walk(err)
	}
	return out
}

// Assemble renders the final document: a level-one title heading followed by
// the non-empty fragments in order, separated by blank lines.
func Assemble(title string, fragments []string) string {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(title)
	sb.WriteString("\n\n")
	first := true
	for _, f := range fragments {
		if f == "" {
			continue
		}
		if !first {
			sb.WriteString("\n\n")
		}
		sb.WriteString(f)
		first = false
	}
	return sb.String()
}
