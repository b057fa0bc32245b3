package pipeline

import "sync"

// Stage names a unit of work moves through, in order.
const (
	StageInvoking   = "invoking"
	StageReading    = "reading pages"
	StageGenerating = "generating"
	StageDone       = "done"
)

// Status is the live, human-readable state of one unit of work. Only the owning
// unit (and the invoker acting for it) writes it; anyone may read it.
type Status struct {
	mu     sync.RWMutex
	stage  string
	status string
	failed bool
}

// NewStatus returns a status in the invoking stage.
func NewStatus() *Status {
	return &Status{stage: StageInvoking, status: StageInvoking}
}

// Set moves to stage, replacing any notes left by the previous stage.
func (s *Status) Set(stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
	s.status = stage
}

// AppendNote adds diagnostic text to the current status.
func (s *Status) AppendNote(note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status += " | " + note
}

// Fail records err as the terminal state. The stage is kept so callers know where it failed.
func (s *Status) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = true
	s.status = "failed during " + s.stage + ": " + err.Error()
}

// String returns the status line text.
func (s *Status) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Stage returns the current stage name.
func (s *Status) Stage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// Failed reports whether the unit ended in failure.
func (s *Status) Failed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed
}
