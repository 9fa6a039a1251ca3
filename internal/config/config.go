package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Oracle     OracleConfig     `yaml:"oracle" mapstructure:"oracle"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Verify     VerifyConfig     `yaml:"verify" mapstructure:"verify"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// OracleConfig selects and tunes the verification oracle.
type OracleConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"`
	Key         string        `yaml:"key" mapstructure:"key"`
	Endpoint    string        `yaml:"endpoint" mapstructure:"endpoint"`
	Model       string        `yaml:"model" mapstructure:"model"`
	Grounding   bool          `yaml:"grounding" mapstructure:"grounding"`
	Language    string        `yaml:"language" mapstructure:"language"`
	TimeoutSecs int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Retry       RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit     CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// Timeout returns the per-call oracle deadline.
func (c OracleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// RetryConfig configures transient retries of a single oracle call.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig configures the oracle circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// PerplexityConfig holds Perplexity-specific settings.
type PerplexityConfig struct {
	Model string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	Model string `yaml:"model" mapstructure:"model"`
}

// VerifyConfig tunes verification runs.
type VerifyConfig struct {
	BatchSize  int           `yaml:"batch_size" mapstructure:"batch_size"`
	Unmatched  string        `yaml:"unmatched" mapstructure:"unmatched"`
	StaleAfter time.Duration `yaml:"stale_after" mapstructure:"stale_after"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// NotionConfig holds the Notion token used for name intake.
type NotionConfig struct {
	Token         string `yaml:"token" mapstructure:"token"`
	TitleProperty string `yaml:"title_property" mapstructure:"title_property"`
}

// ServerConfig configures the HTTP API.
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
	v.SetEnvPrefix("PORTVERIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("oracle.provider", "gemini")
	v.SetDefault("oracle.key", "")
	v.SetDefault("oracle.endpoint", "")
	v.SetDefault("oracle.model", "gemini-2.5-flash")
	v.SetDefault("oracle.grounding", true)
	v.SetDefault("oracle.language", "Simplified Chinese")
	v.SetDefault("oracle.timeout_secs", 120)
	v.SetDefault("oracle.rate_per_sec", 2)
	v.SetDefault("oracle.retry.max_attempts", 1)
	v.SetDefault("oracle.retry.initial_backoff_ms", 500)
	v.SetDefault("oracle.retry.max_backoff_ms", 30000)
	v.SetDefault("oracle.circuit.failure_threshold", 5)
	v.SetDefault("oracle.circuit.reset_timeout_secs", 30)
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("verify.batch_size", 5)
	v.SetDefault("verify.unmatched", "keep")
	v.SetDefault("verify.stale_after", "15m")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.title_property", "")
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

// Validate checks the settings a command needs. Mode is "store" (any command
// touching the ledger), "run" (store plus a live oracle) or "serve" (run plus
// the HTTP listener). Offline runs skip the oracle credential check.
func (c *Config) Validate(mode string, offline bool) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for postgres")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	switch mode {
	case "store":
	case "run", "serve":
		problems = append(problems, c.validateVerify(offline)...)
		if mode == "serve" && c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateVerify(offline bool) []string {
	var problems []string
	switch strings.ToLower(c.Verify.Unmatched) {
	case "", "keep", "fail":
	default:
		problems = append(problems, "verify.unmatched must be keep or fail")
	}
	if c.Verify.StaleAfter < 0 {
		problems = append(problems, "verify.stale_after must be >= 0")
	}
	if c.Oracle.TimeoutSecs <= 0 {
		problems = append(problems, "oracle.timeout_secs must be > 0")
	}
	if offline || c.Oracle.Provider == "stub" {
		return problems
	}
	switch c.Oracle.Provider {
	case "gemini", "perplexity", "anthropic":
	default:
		problems = append(problems, "oracle.provider must be gemini, perplexity, anthropic or stub")
	}
	if c.Oracle.Key == "" {
		problems = append(problems, "oracle.key is required")
	}
	return problems
}

// ModelFor returns the model configured for the selected provider.
func (c *Config) ModelFor(provider string) string {
	switch provider {
	case "perplexity":
		return c.Perplexity.Model
	case "anthropic":
		return c.Anthropic.Model
	default:
		return c.Oracle.Model
	}
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
