package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPromptsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	body := "{\n\t\"page_extraction_prompt\": \"format\",\n\t\"summarizer_prompt\": \"summarize\"\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	p, err := LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "format", p.PageExtraction)
	assert.Equal(t, "summarize", p.Summarizer)
}

func TestLoadPromptsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	body := "page_extraction_prompt: |\n  line one\n  line two\nsummarizer_prompt: only formulas\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	p, err := LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", p.PageExtraction)
	assert.Equal(t, "only formulas", p.Summarizer)
}

func TestLoadPromptsMissingFile(t *testing.T) {
	_, err := LoadPrompts(filepath.Join(t.TempDir(), "prompts.json"))
	assert.ErrorIs(t, err, ErrMissingPrompts)
}

func TestParsePromptsMissingKey(t *testing.T) {
	_, err := ParsePrompts([]byte(`{"page_extraction_prompt": "format"}`))
	require.ErrorIs(t, err, ErrMissingPrompts)
	assert.Contains(t, err.Error(), "summarizer_prompt")
}
