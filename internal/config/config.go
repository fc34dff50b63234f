package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Callback  CallbackConfig  `yaml:"callback" mapstructure:"callback"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// MatchConfig configures evaluation and batching.
type MatchConfig struct {
	// MinConfidence is accepted for compatibility and not applied.
	MinConfidence    float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BatchSize        int     `yaml:"batch_size" mapstructure:"batch_size"`
	MaxConcurrent    int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RetryBudgetSecs  int     `yaml:"retry_budget_secs" mapstructure:"retry_budget_secs"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// RegistryConfig configures the company data provider. FixturePath, when
// set, replaces the registry API with a local fixture file.
type RegistryConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	FixturePath string  `yaml:"fixture_path" mapstructure:"fixture_path"`
}

// CallbackConfig configures batch result delivery.
type CallbackConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("QUALIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 500)
	v.SetDefault("anthropic.temperature", 0.1)
	v.SetDefault("match.min_confidence", 0.7)
	v.SetDefault("match.max_retries", 3)
	v.SetDefault("match.timeout_secs", 30)
	v.SetDefault("match.batch_size", 5)
	v.SetDefault("match.max_concurrent", 10)
	v.SetDefault("match.retry_budget_secs", 30)
	v.SetDefault("match.initial_backoff_ms", 500)
	v.SetDefault("registry.base_url", "https://api.allabolag.se")
	v.SetDefault("registry.timeout_secs", 30)
	v.SetDefault("registry.rate_per_sec", 5.0)
	v.SetDefault("registry.user_agent", "company-qualifier/1.0")
	v.SetDefault("callback.timeout_secs", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by mode: "serve", "evaluate",
// "batch" or "criteria". All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "evaluate", "batch", "criteria":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Anthropic.Key == "" {
		errs = append(errs, "anthropic.key is required")
	}
	if c.Anthropic.MaxTokens <= 0 {
		errs = append(errs, "anthropic.max_tokens must be > 0")
	}
	if c.Anthropic.Temperature < 0 || c.Anthropic.Temperature > 1 {
		errs = append(errs, "anthropic.temperature must be between 0 and 1")
	}

	if mode != "criteria" && c.Registry.BaseURL == "" && c.Registry.FixturePath == "" {
		errs = append(errs, "registry.base_url or registry.fixture_path is required")
	}
	if c.Registry.RatePerSec < 0 {
		errs = append(errs, "registry.rate_per_sec must be >= 0")
	}

	if c.Match.MaxRetries < 1 || c.Match.MaxRetries > 10 {
		errs = append(errs, "match.max_retries must be between 1 and 10")
	}
	if c.Match.MaxConcurrent < 1 || c.Match.MaxConcurrent > 50 {
		errs = append(errs, "match.max_concurrent must be between 1 and 50")
	}
	if c.Match.BatchSize < 1 {
		errs = append(errs, "match.batch_size must be > 0")
	}
	if c.Match.MinConfidence < 0 || c.Match.MinConfidence > 1 {
		errs = append(errs, fmt.Sprintf("match.min_confidence must be between 0 and 1, got %g", c.Match.MinConfidence))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
