package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every configuration environment variable.
const EnvPrefix = "CADERNO"

// setDefaults registers a default for every key so that environment variables
// are picked up by Unmarshal even when no config file mentions the key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.persist_error_logs", true)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.quota_bytes", 5*1024*1024)
	v.SetDefault("storage.retained_notebooks", 10)

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("llm.model_name", "gemini-1.5-flash-latest")
	v.SetDefault("llm.transport", "rest")
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.initial_retry_delay", "1s")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.language", "Portuguese")
	v.SetDefault("llm.prompt_template_path", "")
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
