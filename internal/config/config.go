package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
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

// GenerationConfig selects the text-generation provider and its retry schedule.
type GenerationConfig struct {
	Provider             string  `yaml:"provider" mapstructure:"provider"`
	MaxAttempts          int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	ServerErrorBackoffMS int     `yaml:"server_error_backoff_ms" mapstructure:"server_error_backoff_ms"`
	ServerErrorStepMS    int     `yaml:"server_error_step_ms" mapstructure:"server_error_step_ms"`
	RateLimitBackoffMS   int     `yaml:"rate_limit_backoff_ms" mapstructure:"rate_limit_backoff_ms"`
	RateLimitStepMS      int     `yaml:"rate_limit_step_ms" mapstructure:"rate_limit_step_ms"`
	RequestsPerSecond    float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	ResultsPerQuery      int     `yaml:"results_per_query" mapstructure:"results_per_query"`
}

// ServerErrorBackoff returns the first 5xx wait.
func (g GenerationConfig) ServerErrorBackoff() time.Duration {
	return time.Duration(g.ServerErrorBackoffMS) * time.Millisecond
}

// ServerErrorStep returns the per-attempt 5xx increment.
func (g GenerationConfig) ServerErrorStep() time.Duration {
	return time.Duration(g.ServerErrorStepMS) * time.Millisecond
}

// RateLimitBackoff returns the first 429 wait.
func (g GenerationConfig) RateLimitBackoff() time.Duration {
	return time.Duration(g.RateLimitBackoffMS) * time.Millisecond
}

// RateLimitStep returns the per-attempt 429 increment.
func (g GenerationConfig) RateLimitStep() time.Duration {
	return time.Duration(g.RateLimitStepMS) * time.Millisecond
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GoogleConfig holds Custom Search settings used for contact evidence.
// Search is skipped when Key or CSEID is empty.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	CSEID   string `yaml:"cse_id" mapstructure:"cse_id"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Results int    `yaml:"results" mapstructure:"results"`
}

// Enabled reports whether search credentials are present.
func (g GoogleConfig) Enabled() bool {
	return g.Key != "" && g.CSEID != ""
}

// EnrichConfig configures result validation.
type EnrichConfig struct {
	Strictness      string `yaml:"strictness" mapstructure:"strictness"`
	ContactsPerFirm int    `yaml:"contacts_per_firm" mapstructure:"contacts_per_firm"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INVESTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "investors.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("generation.provider", "gemini")
	v.SetDefault("generation.max_attempts", 3)
	v.SetDefault("generation.server_error_backoff_ms", 300)
	v.SetDefault("generation.server_error_step_ms", 500)
	v.SetDefault("generation.rate_limit_backoff_ms", 2000)
	v.SetDefault("generation.rate_limit_step_ms", 2000)
	v.SetDefault("generation.requests_per_second", 0)
	v.SetDefault("generation.results_per_query", 5)
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("google.key", "")
	v.SetDefault("google.cse_id", "")
	v.SetDefault("google.base_url", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("google.results", 5)
	v.SetDefault("enrich.strictness", "strict")
	v.SetDefault("enrich.contacts_per_firm", 2)

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

// Validate checks the settings a command needs. mode is the command name:
// serve and find need generation credentials, import, migrate and firms only
// the store. All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "find", "import", "migrate", "firms":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if mode == "serve" || mode == "find" {
		switch strings.ToLower(c.Generation.Provider) {
		case "gemini":
			if c.Gemini.Key == "" {
				errs = append(errs, "gemini.key is required")
			}
		case "anthropic":
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("generation.provider must be gemini or anthropic, got %q", c.Generation.Provider))
		}
		if c.Generation.MaxAttempts < 1 || c.Generation.MaxAttempts > 10 {
			errs = append(errs, "generation.max_attempts must be between 1 and 10")
		}
		if c.Generation.RequestsPerSecond < 0 {
			errs = append(errs, "generation.requests_per_second must be >= 0")
		}
		if c.Generation.ResultsPerQuery < 1 {
			errs = append(errs, "generation.results_per_query must be > 0")
		}
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
