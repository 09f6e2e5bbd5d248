// Package config loads and validates rulesmith configuration from file,
// environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".rulesmith"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for rulesmith settings.
const envPrefix = "RULESMITH"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Default values applied before file and env sources.
const (
	DefaultProviderName   = "anthropic"
	DefaultModel          = "claude-3-5-sonnet-20241022"
	DefaultMaxTokens      = 4096
	DefaultTemperature    = 0.3
	DefaultMaxChunkTokens = 100_000
	DefaultOverlapTokens  = 10_000
	DefaultMaxRetries     = 3
	DefaultInitialDelayMs = 1000
	DefaultMaxDelayMs     = 30_000
	DefaultMaxFileSize    = 1 << 20
	DefaultCacheDir       = ".rulesmith"
	DefaultCacheTTLHours  = 24
	DefaultOutputDir      = "."
	DefaultFixAttempts    = 3
)

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("provider.name", DefaultProviderName)
	viperCfg.SetDefault("provider.model", DefaultModel)
	viperCfg.SetDefault("provider.max_tokens", DefaultMaxTokens)
	viperCfg.SetDefault("provider.temperature", DefaultTemperature)

	viperCfg.SetDefault("chunking.max_chunk_tokens", DefaultMaxChunkTokens)
	viperCfg.SetDefault("chunking.overlap_tokens", DefaultOverlapTokens)

	viperCfg.SetDefault("scan.include", []string{})
	viperCfg.SetDefault("scan.exclude", []string{})
	viperCfg.SetDefault("scan.max_file_size", DefaultMaxFileSize)
	viperCfg.SetDefault("scan.respect_gitignore", true)
	viperCfg.SetDefault("scan.include_hidden", false)
	viperCfg.SetDefault("scan.follow_symlinks", false)

	viperCfg.SetDefault("output.formats", []string{"generic"})
	viperCfg.SetDefault("output.dir", DefaultOutputDir)

	viperCfg.SetDefault("retry.max_retries", DefaultMaxRetries)
	viperCfg.SetDefault("retry.initial_delay_ms", DefaultInitialDelayMs)
	viperCfg.SetDefault("retry.max_delay_ms", DefaultMaxDelayMs)
	viperCfg.SetDefault("retry.jitter", true)

	viperCfg.SetDefault("cache.enabled", true)
	viperCfg.SetDefault("cache.dir", DefaultCacheDir)
	viperCfg.SetDefault("cache.ttl_hours", DefaultCacheTTLHours)

	viperCfg.SetDefault("validation.max_fix_attempts", DefaultFixAttempts)
	viperCfg.SetDefault("validation.auto_fix", true)
}
