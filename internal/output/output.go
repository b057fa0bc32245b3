// Package output writes the assembled document without ever replacing an
// existing artifact.
package output

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrDestinationExists is returned when the target already holds a document.
var ErrDestinationExists = errors.New("destination already exists")

// Destination is where the final document goes.
type Destination interface {
	// Exists reports whether the destination is already taken.
	Exists(ctx context.Context) (bool, error)
	// Write stores doc, failing with ErrDestinationExists instead of overwriting.
	Write(ctx context.Context, doc string) error
	// String names the destination for humans.
	String() string
}

// OutputName reduces name to its base name and appends ".md" unless it
// already ends in ".md" or ".txt".
func OutputName(name string) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("invalid output name %q", name)
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext != ".md" && ext != ".txt" {
		base += ".md"
	}
	return base, nil
}

// FileDestination is a file on the local filesystem.
type FileDestination struct {
	Path string
}

// NewFileDestination places the output name inside dir.
func NewFileDestination(dir, name string) (*FileDestination, error) {
	base, err := OutputName(name)
	if err != nil {
		return nil, err
	}
	return &FileDestination{Path: filepath.Join(dir, base)}, nil
}

func (d *FileDestination) String() string { return d.Path }

// Exists implements Destination.
func (d *FileDestination) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(d.Path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat %s: %w", d.Path, err)
	}
}

// Write creates the parent directory if needed and writes doc with O_EXCL.
func (d *FileDestination) Write(_ context.Context, doc string) error {
	if err := os.MkdirAll(filepath.Dir(d.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	f, err := os.OpenFile(d.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrDestinationExists, d.Path)
		}
		return fmt.Errorf("failed to create %s: %w", d.Path, err)
	}
	if _, err := f.WriteString(doc); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", d.Path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", d.Path, err)
	}
	return nil
}

// Memory keeps the document in memory. It is used when the caller returns the
// document directly instead of storing it.
type Memory struct {
	Doc     string
	written bool
}

func (m *Memory) String() string { return "memory" }

// Exists implements Destination.
func (m *Memory) Exists(context.Context) (bool, error) { return m.written, nil }

// Write implements Destination.
func (m *Memory) Write(_ context.Context, doc string) error {
	if m.written {
		return ErrDestinationExists
	}
	m.Doc, m.written = doc, true
	return nil
}
