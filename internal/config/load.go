package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "JOBTRAIL"

// keys lists every configuration key so each can be bound to its environment
// variable; viper's AutomaticEnv alone does not see keys absent from defaults
// and files during Unmarshal.
var keys = []string{
	"server.port",
	"server.log_level",
	"server.cors_allowed_origins",
	"database.url",
	"database.max_open_conns",
	"database.max_idle_conns",
	"database.conn_max_lifetime_minutes",
	"auth.jwt_secret",
	"auth.token_lifetime_minutes",
	"batch.stale_after_minutes",
	"batch.max_attempts",
	"batch.claim_retries",
	"batch.execute_enabled",
	"batch.worker_secret",
	"worker.enabled",
	"worker.count",
	"worker.poll_interval_seconds",
	"worker.sweep_interval_seconds",
	"worker.max_steps_per_poll",
	"worker.endpoint",
	"redis.url",
	"redis.key",
	"llm.gemini_api_key",
	"llm.model_name",
	"llm.max_retries",
	"llm.retry_delay_seconds",
	"artifacts.latex_url",
	"artifacts.latex_token",
	"artifacts.request_timeout_seconds",
}

// legacyEnv maps keys to unprefixed variable names still honoured by deployments.
var legacyEnv = map[string]string{
	"batch.worker_secret":   "APPLICATION_BATCH_SECRET",
	"batch.execute_enabled": "ENABLE_BATCH_EXECUTE_AUTOGEN",
	"database.url":          "DATABASE_URL",
	"artifacts.latex_url":   "LATEX_RENDER_URL",
	"artifacts.latex_token": "LATEX_RENDER_TOKEN",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cors_allowed_origins", []string{})

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime_minutes", 5)

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("batch.stale_after_minutes", 15)
	v.SetDefault("batch.max_attempts", 0)
	v.SetDefault("batch.claim_retries", 5)
	v.SetDefault("batch.execute_enabled", false)

	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.count", 1)
	v.SetDefault("worker.poll_interval_seconds", 5)
	v.SetDefault("worker.sweep_interval_seconds", 60)
	v.SetDefault("worker.max_steps_per_poll", 1)

	v.SetDefault("redis.key", "jobtrail:batch:wake")

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)

	v.SetDefault("artifacts.request_timeout_seconds", 60)
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// newViper reads defaults, the optional config file and the environment.
func newViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		envVars := []string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		if legacy, ok := legacyEnv[key]; ok {
			envVars = append(envVars, legacy)
		}
		args := append([]string{key}, envVars...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}
	return v, nil
}

// WorkerClientConfig is the subset of Config used by the standalone batch
// worker, which talks to the server over HTTP and needs no database.
type WorkerClientConfig struct {
	Server ServerConfig
	Worker WorkerConfig
	// Secret is the plain worker secret sent on every call.
	Secret string
}

// LoadWorkerClient loads the configuration of the standalone batch worker.
func LoadWorkerClient() (*WorkerClientConfig, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg.Server); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := validate.Struct(&cfg.Worker); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Worker.Endpoint == "" {
		return nil, errors.New("config validation failed: worker.endpoint is required")
	}
	if cfg.Batch.WorkerSecret == "" {
		return nil, errors.New("config validation failed: batch.worker_secret is required")
	}
	if strings.HasPrefix(cfg.Batch.WorkerSecret, "$2") {
		return nil, errors.New("config validation failed: batch.worker_secret must be the plain secret, not its hash")
	}

	return &WorkerClientConfig{
		Server: cfg.Server,
		Worker: cfg.Worker,
		Secret: cfg.Batch.WorkerSecret,
	}, nil
}
