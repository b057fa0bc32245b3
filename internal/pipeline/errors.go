package pipeline

import "fmt"

// BatchError is a fatal failure of one unit of work.
type BatchError struct {
	Index int
	Stage string
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d failed during %q: %v", e.Index, e.Stage, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
