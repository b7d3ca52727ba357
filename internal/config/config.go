package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" validate:"required"`
	Storage StorageConfig `mapstructure:"storage" validate:"required"`
	LLM     LLMConfig     `mapstructure:"llm" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// PersistErrorLogs copies error-level log records into the storage medium.
	PersistErrorLogs bool          `mapstructure:"persist_error_logs"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// StorageConfig selects and sizes the key-value storage medium.
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory jsonfile sqlite postgres"`
	// Path is the file used by the jsonfile and sqlite backends.
	Path        string `mapstructure:"path"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Backend postgres"`
	// QuotaBytes caps the total size of keys and values. 0 means unlimited.
	QuotaBytes        int64 `mapstructure:"quota_bytes" validate:"gte=0"`
	RetainedNotebooks int   `mapstructure:"retained_notebooks" validate:"gte=1"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	// GeminiAPIKey seeds the stored credential when none is stored yet.
	GeminiAPIKey      string        `mapstructure:"gemini_api_key"`
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	ModelName         string        `mapstructure:"model_name" validate:"required"`
	Transport         string        `mapstructure:"transport" validate:"required,oneof=rest sdk"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"required,gte=1,lte=10"`
	InitialRetryDelay time.Duration `mapstructure:"initial_retry_delay" validate:"gte=0"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"required,gt=0"`
	// Language is the language the continuation is written in.
	Language           string `mapstructure:"language"`
	PromptTemplatePath string `mapstructure:"prompt_template_path" validate:"omitempty,file"`
}
