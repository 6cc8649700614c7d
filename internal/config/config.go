package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Batch     BatchConfig     `mapstructure:"batch"     validate:"required"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Redis     RedisConfig     `mapstructure:"redis"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// CORSAllowedOrigins lists browser origins allowed to call the API.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string `mapstructure:"url"               validate:"required,url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"    validate:"gte=1"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0,lt=44640"`
}

// BatchConfig tunes the batch runner.
type BatchConfig struct {
	StaleAfterMinutes int `mapstructure:"stale_after_minutes" validate:"required,gt=0"`
	// MaxAttempts caps stale reclamation. Zero leaves it unbounded.
	MaxAttempts    int  `mapstructure:"max_attempts"    validate:"gte=0"`
	ClaimRetries   int  `mapstructure:"claim_retries"   validate:"required,gt=0,lte=50"`
	ExecuteEnabled bool `mapstructure:"execute_enabled"`
	// WorkerSecret guards the worker route. Either the plain secret or its bcrypt hash.
	WorkerSecret string `mapstructure:"worker_secret"`
}

// StaleAfter returns the staleness threshold as a duration.
func (c BatchConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// WorkerConfig controls background dispatch, both in-process and from cmd/batch-worker.
type WorkerConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	Count                int    `mapstructure:"count"                  validate:"gte=1,lte=32"`
	PollIntervalSeconds  int    `mapstructure:"poll_interval_seconds"  validate:"gte=1"`
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds" validate:"gte=1"`
	MaxStepsPerPoll      int    `mapstructure:"max_steps_per_poll"     validate:"gte=1,lte=20"`
	Endpoint             string `mapstructure:"endpoint"               validate:"omitempty,url"`
}

// PollInterval returns how long an idle worker waits before polling again.
func (c WorkerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// SweepInterval returns the period of the global stale sweep.
func (c WorkerConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// RedisConfig points at the optional wake-up queue. An empty URL disables it.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
	Key string `mapstructure:"key"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	// GeminiAPIKey is optional; without it artifact building fails every task.
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name"          validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
}

// ArtifactsConfig configures the PDF rendering service.
type ArtifactsConfig struct {
	LatexURL              string `mapstructure:"latex_url"               validate:"omitempty,url"`
	LatexToken            string `mapstructure:"latex_token"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" validate:"gte=1"`
}

// RequestTimeout returns the per-request timeout of the rendering service.
func (c ArtifactsConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
