package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_RETRY_DELAY", "")
	t.Setenv("BATCH_SIZE", "0")

	cfg := Load()
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.ExtractionModel)
	assert.Equal(t, "gpt-4o", cfg.SummarizerModel)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay)
	assert.Equal(t, 1, cfg.BatchSize)
	require.NoError(t, cfg.Validate())
}

func TestLoadVertexModels(t *testing.T) {
	t.Setenv("LLM_PROVIDER", ProviderVertex)
	t.Setenv("PROJECT_ID", "proj")
	t.Setenv("LLM_RETRY_DELAY", "30")

	cfg := Load()
	assert.Equal(t, "gemini-1.5-flash", cfg.ExtractionModel)
	assert.Equal(t, "gemini-1.5-pro", cfg.SummarizerModel)
	assert.Equal(t, 30*time.Second, cfg.RetryDelay)
	require.NoError(t, cfg.Validate())
}

func TestValidateMissingCredentials(t *testing.T) {
	cfg := Config{Provider: ProviderOpenAI}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingCredentials)

	cfg = Config{Provider: ProviderVertex, VertexAIRegion: "us-central1"}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingCredentials)

	cfg = Config{Provider: "bedrock"}
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownProvider)
}

func TestWithOpenAIKey(t *testing.T) {
	base := Config{Provider: ProviderOpenAI, OpenAIAPIKey: "env-key"}
	assert.Equal(t, "env-key", base.WithOpenAIKey("").OpenAIAPIKey)
	assert.Equal(t, "req-key", base.WithOpenAIKey("req-key").OpenAIAPIKey)
	assert.Equal(t, "env-key", base.OpenAIAPIKey)
}

func TestLoadDotEnvMissingFileIsFine(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PDF2MD_TEST_A=file\nPDF2MD_TEST_B=file\n"), 0o644))
	t.Setenv("PDF2MD_TEST_A", "env")
	t.Cleanup(func() { os.Unsetenv("PDF2MD_TEST_B") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "env", os.Getenv("PDF2MD_TEST_A"))
	assert.Equal(t, "file", os.Getenv("PDF2MD_TEST_B"))
}
