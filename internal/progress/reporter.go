// Package progress renders the live status of every batch as a block of lines
// that is redrawn in place.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/Lllllllleong/pdf2md/internal/pipeline"
)

const fallbackMessage = "Processing...\n"

// Reporter redraws one "Batch i: status" line per batch. When the output width
// is unknown it prints a single fallback message instead.
type Reporter struct {
	out     io.Writer
	width   func() (int, bool)
	noColor bool

	mu            sync.Mutex
	drawn         int
	fallbackShown bool
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithWidth fixes the output width. width <= 0 means unknown.
func WithWidth(width int) Option {
	return func(r *Reporter) {
		r.width = func() (int, bool) { return width, width > 0 }
	}
}

// WithoutColor disables the done and failed highlighting.
func WithoutColor() Option {
	return func(r *Reporter) { r.noColor = true }
}

// New returns a reporter writing to out. If out is a terminal its width is
// read on every redraw.
func New(out io.Writer, opts ...Option) *Reporter {
	r := &Reporter{out: out, width: terminalWidth(out)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func terminalWidth(out io.Writer) func() (int, bool) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func() (int, bool) { return 0, false }
	}
	return func() (int, bool) {
		w, _, err := term.GetSize(int(f.Fd()))
		if err != nil || w <= 0 {
			return 0, false
		}
		return w, true
	}
}

// Render draws the block once and leaves the cursor on its first line, so the
// next call overwrites it.
func (r *Reporter) Render(statuses []*pipeline.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	width, ok := r.width()
	if !ok {
		if !r.fallbackShown {
			fmt.Fprint(r.out, fallbackMessage)
			r.fallbackShown = true
		}
		return
	}
	if len(statuses) == 0 {
		return
	}

	lines := make([]string, len(statuses))
	for i, s := range statuses {
		lines[i] = r.line(i, s, width)
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(lines, "\n"))
	if n := len(lines); n > 1 {
		fmt.Fprintf(&sb, "\x1b[%dA", n-1)
	}
	sb.WriteString("\r")
	fmt.Fprint(r.out, sb.String())
	r.drawn = len(lines)
}

func (r *Reporter) line(i int, s *pipeline.Status, width int) string {
	text := fmt.Sprintf("Batch %d: %s", i, s.String())
	text = runewidth.FillRight(runewidth.Truncate(text, width, ""), width)
	if r.noColor {
		return text
	}
	switch {
	case s.Failed():
		return color.New(color.FgRed).Sprint(text)
	case s.Stage() == pipeline.StageDone:
		return color.New(color.FgGreen).Sprint(text)
	}
	return text
}

// Finish draws the final state and moves the cursor below the block.
func (r *Reporter) Finish(statuses []*pipeline.Status) {
	r.Render(statuses)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drawn > 0 {
		fmt.Fprint(r.out, strings.Repeat("\n", r.drawn))
		r.drawn = 0
	}
}

// Start redraws the block every interval until the returned stop function is
// called. stop draws the final state and is safe to call more than once.
func (r *Reporter) Start(statuses []*pipeline.Status, interval time.Duration) (stop func()) {
	quit := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		r.Render(statuses)
		for {
			select {
			case <-ticker.C:
				r.Render(statuses)
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			<-exited
			r.Finish(statuses)
		})
	}
}
