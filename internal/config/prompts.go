package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingPrompts is returned when the prompt configuration is absent or incomplete.
var ErrMissingPrompts = errors.New("missing prompt configuration")

// DefaultPageExtractionPrompt is used by the HTTP function when a request leaves the
// extraction prompt empty.
const DefaultPageExtractionPrompt = "Please format these lecture slides nicely. Do not exclude any content and write down everything you see."

// Prompts are the two templates driving the transform chain.
type Prompts struct {
	PageExtraction string `json:"page_extraction_prompt" yaml:"page_extraction_prompt"`
	Summarizer     string `json:"summarizer_prompt" yaml:"summarizer_prompt"`
}

// Validate reports ErrMissingPrompts when either prompt is blank.
func (p Prompts) Validate() error {
	var missing []string
	if strings.TrimSpace(p.PageExtraction) == "" {
		missing = append(missing, "page_extraction_prompt")
	}
	if strings.TrimSpace(p.Summarizer) == "" {
		missing = append(missing, "summarizer_prompt")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrMissingPrompts, strings.Join(missing, ", "))
	}
	return nil
}

// LoadPrompts reads a prompts file. JSON and YAML are both accepted.
func LoadPrompts(path string) (Prompts, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Prompts{}, fmt.Errorf("%w: please add a %s file", ErrMissingPrompts, path)
		}
		return Prompts{}, fmt.Errorf("failed to read prompts file %s: %w", path, err)
	}
	return ParsePrompts(raw)
}

// ParsePrompts decodes and validates prompt configuration.
func ParsePrompts(raw []byte) (Prompts, error) {
	var p Prompts
	// prompts.json is the canonical form; YAML is accepted for multi-line prompts.
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return Prompts{}, fmt.Errorf("failed to parse prompts: %w", err)
		}
	} else if err := yaml.Unmarshal(raw, &p); err != nil {
		return Prompts{}, fmt.Errorf("failed to parse prompts: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Prompts{}, err
	}
	return p, nil
}
