package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Config is the top-level configuration struct for rulesmith.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Provider   ProviderConfig   `mapstructure:"provider"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Scan       ScanConfig       `mapstructure:"scan"`
	Output     OutputConfig     `mapstructure:"output"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Validation ValidationConfig `mapstructure:"validation"`
}

// ProviderConfig selects the LLM provider and completion parameters.
type ProviderConfig struct {
	Name        string  `mapstructure:"name"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// ChunkingConfig holds the token budget for codebase chunking.
type ChunkingConfig struct {
	MaxChunkTokens int `mapstructure:"max_chunk_tokens"`
	OverlapTokens  int `mapstructure:"overlap_tokens"`
}

// ScanConfig controls which files the scanner picks up.
type ScanConfig struct {
	Include        []string `mapstructure:"include"`
	Exclude        []string `mapstructure:"exclude"`
	MaxFileSize    int64    `mapstructure:"max_file_size"`
	RespectIgnore  bool     `mapstructure:"respect_gitignore"`
	IncludeHidden  bool     `mapstructure:"include_hidden"`
	FollowSymlinks bool     `mapstructure:"follow_symlinks"`
}

// OutputConfig selects rule output formats and destination.
type OutputConfig struct {
	Formats []string `mapstructure:"formats"`
	Dir     string   `mapstructure:"dir"`
}

// RetryConfig holds the provider retry policy knobs.
type RetryConfig struct {
	MaxRetries     int  `mapstructure:"max_retries"`
	InitialDelayMs int  `mapstructure:"initial_delay_ms"`
	MaxDelayMs     int  `mapstructure:"max_delay_ms"`
	Jitter         bool `mapstructure:"jitter"`
}

// CacheConfig controls the on-disk compression cache.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Dir      string `mapstructure:"dir"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// ValidationConfig controls output validation and the auto-fix loop.
type ValidationConfig struct {
	MaxFixAttempts int  `mapstructure:"max_fix_attempts"`
	AutoFix        bool `mapstructure:"auto_fix"`
}

// minChunkTokens is the smallest usable chunk budget.
const minChunkTokens = 1000

// temperatureMax is the upper bound for sampling temperature.
const temperatureMax = 2.0

// knownProviders are the provider names accepted in provider.name.
var knownProviders = []string{"anthropic", "openai", "openrouter", "ollama"}

// knownFormats are the rule output formats accepted in output.formats.
var knownFormats = []string{"cursor", "claude", "copilot", "windsurf", "aider", "generic", "json"}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidChunkTokens indicates the chunk budget is below the minimum.
	ErrInvalidChunkTokens = errors.New("chunking.max_chunk_tokens must be at least 1000")
	// ErrInvalidOverlap indicates the overlap is negative or not below the chunk budget.
	ErrInvalidOverlap = errors.New("chunking.overlap_tokens must be non-negative and less than max_chunk_tokens")
	// ErrInvalidMaxTokens indicates the completion token budget is not positive.
	ErrInvalidMaxTokens = errors.New("provider.max_tokens must be positive")
	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("provider.temperature must be between 0 and 2")
	// ErrUnknownProvider indicates the provider name is not recognized.
	ErrUnknownProvider = errors.New("provider.name must be one of anthropic, openai, openrouter, ollama")
	// ErrUnknownFormat indicates an output format is not recognized.
	ErrUnknownFormat = errors.New("unknown output format")
	// ErrInvalidMaxRetries indicates the retry count is negative.
	ErrInvalidMaxRetries = errors.New("retry.max_retries must be non-negative")
	// ErrInvalidRetryDelay indicates a retry delay is not positive.
	ErrInvalidRetryDelay = errors.New("retry delays must be positive and initial_delay_ms must not exceed max_delay_ms")
	// ErrInvalidMaxFileSize indicates the scanner file size cap is negative.
	ErrInvalidMaxFileSize = errors.New("scan.max_file_size must be non-negative")
	// ErrInvalidFixAttempts indicates the auto-fix attempt cap is negative.
	ErrInvalidFixAttempts = errors.New("validation.max_fix_attempts must be non-negative")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}

	if err := c.validateChunking(); err != nil {
		return err
	}

	if err := c.validateRetry(); err != nil {
		return err
	}

	return c.validateOutputAndScan()
}

func (c *Config) validateProvider() error {
	if !slices.Contains(knownProviders, c.Provider.Name) {
		if hint := suggest(c.Provider.Name, knownProviders); hint != "" {
			return fmt.Errorf("%w: got %q (did you mean %q?)", ErrUnknownProvider, c.Provider.Name, hint)
		}

		return fmt.Errorf("%w: got %q", ErrUnknownProvider, c.Provider.Name)
	}

	if c.Provider.MaxTokens <= 0 {
		return ErrInvalidMaxTokens
	}

	if c.Provider.Temperature < 0 || c.Provider.Temperature > temperatureMax {
		return ErrInvalidTemperature
	}

	return nil
}

func (c *Config) validateChunking() error {
	if c.Chunking.MaxChunkTokens < minChunkTokens {
		return ErrInvalidChunkTokens
	}

	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.MaxChunkTokens {
		return ErrInvalidOverlap
	}

	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}

	if c.Retry.InitialDelayMs <= 0 || c.Retry.MaxDelayMs <= 0 || c.Retry.InitialDelayMs > c.Retry.MaxDelayMs {
		return ErrInvalidRetryDelay
	}

	return nil
}

func (c *Config) validateOutputAndScan() error {
	for _, format := range c.Output.Formats {
		if !slices.Contains(knownFormats, format) {
			if hint := suggest(format, knownFormats); hint != "" {
				return fmt.Errorf("%w: %q (did you mean %q?)", ErrUnknownFormat, format, hint)
			}

			return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
		}
	}

	if c.Scan.MaxFileSize < 0 {
		return ErrInvalidMaxFileSize
	}

	if c.Validation.MaxFixAttempts < 0 {
		return ErrInvalidFixAttempts
	}

	return nil
}

// suggestMaxDistance is the largest edit distance still offered as a
// "did you mean" hint.
const suggestMaxDistance = 3

// suggest returns the candidate closest to name, or empty when nothing
// is within a plausible typo distance.
func suggest(name string, candidates []string) string {
	dmp := diffmatchpatch.New()
	best := ""
	bestDist := suggestMaxDistance + 1

	for _, candidate := range candidates {
		dist := dmp.DiffLevenshtein(dmp.DiffMain(name, candidate, false))
		if dist < bestDist {
			best, bestDist = candidate, dist
		}
	}

	return best
}
