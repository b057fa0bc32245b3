package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Providers understood by Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderVertex = "vertex"
)

// Defaults for the retry loop around every provider call and for batching.
const (
	DefaultMaxRetries = 5
	DefaultRetryDelay = 90 * time.Second
	DefaultBatchSize  = 15
)

var (
	// ErrMissingCredentials is returned when the selected provider cannot authenticate.
	ErrMissingCredentials = errors.New("missing model credentials")
	// ErrUnknownProvider is returned for an unsupported Config.Provider value.
	ErrUnknownProvider = errors.New("unknown model provider")
)

// Config holds everything a run needs. It is built once at startup and passed
// explicitly to the providers, the invoker and the scheduler.
type Config struct {
	Provider        string
	ExtractionModel string
	SummarizerModel string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	ProjectID      string
	VertexAIRegion string

	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerMinute int
	MaxConcurrent     int
	BatchSize         int

	FirestoreCollection string
}

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	// Bare numbers are seconds.
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// LoadDotEnv loads variables from the given .env files (default ".env").
// Missing files are not an error; variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration from the environment and applies defaults.
func Load() Config {
	cfg := Config{
		Provider:            GetEnv("LLM_PROVIDER", ProviderOpenAI),
		ExtractionModel:     GetEnv("EXTRACTION_MODEL", ""),
		SummarizerModel:     GetEnv("SUMMARIZER_MODEL", ""),
		OpenAIAPIKey:        GetEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       GetEnv("OPENAI_BASE_URL", ""),
		ProjectID:           GetEnv("PROJECT_ID", ""),
		VertexAIRegion:      GetEnv("VERTEX_AI_REGION", "us-central1"),
		MaxRetries:          getEnvInt("LLM_MAX_RETRIES", DefaultMaxRetries),
		RetryDelay:          getEnvDuration("LLM_RETRY_DELAY", DefaultRetryDelay),
		RequestsPerMinute:   getEnvInt("LLM_REQUESTS_PER_MINUTE", 0),
		MaxConcurrent:       getEnvInt("MAX_CONCURRENT_BATCHES", 0),
		BatchSize:           getEnvInt("BATCH_SIZE", DefaultBatchSize),
		FirestoreCollection: GetEnv("FIRESTORE_COLLECTION", ""),
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills model names for the selected provider and clamps numeric settings.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	switch c.Provider {
	case ProviderVertex:
		if c.ExtractionModel == "" {
			c.ExtractionModel = "gemini-1.5-flash"
		}
		if c.SummarizerModel == "" {
			c.SummarizerModel = "gemini-1.5-pro"
		}
	default:
		if c.ExtractionModel == "" {
			c.ExtractionModel = "gpt-4o-mini"
		}
		if c.SummarizerModel == "" {
			c.SummarizerModel = "gpt-4o"
		}
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.RequestsPerMinute < 0 {
		c.RequestsPerMinute = 0
	}
	if c.MaxConcurrent < 0 {
		c.MaxConcurrent = 0
	}
}

// Validate checks that the selected provider has the credentials it needs.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable must be set", ErrMissingCredentials)
		}
	case ProviderVertex:
		if c.ProjectID == "" || c.VertexAIRegion == "" {
			return fmt.Errorf("%w: PROJECT_ID and VERTEX_AI_REGION must be set", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}
	return nil
}

// WithOpenAIKey returns a copy of c that authenticates with key, if key is non-empty.
// Used for per-request credentials.
func (c Config) WithOpenAIKey(key string) Config {
	if key != "" {
		c.OpenAIAPIKey = key
	}
	return c
}
