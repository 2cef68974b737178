// Package config loads settings from config.yaml, the environment and
// defaults, and builds the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Clean  CleanConfig  `yaml:"clean" mapstructure:"clean"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Atlus  AtlusConfig  `yaml:"atlus" mapstructure:"atlus"`
	NSI    NSIConfig    `yaml:"nsi" mapstructure:"nsi"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
}

// CleanConfig configures the cleaning pipeline.
type CleanConfig struct {
	SaintMode     string   `yaml:"saint_mode" mapstructure:"saint_mode"`
	HoursSeverity string   `yaml:"hours_severity" mapstructure:"hours_severity"`
	Concurrency   int      `yaml:"concurrency" mapstructure:"concurrency"`
	OutputSuffix  string   `yaml:"output_suffix" mapstructure:"output_suffix"`
	NecessaryTags []string `yaml:"necessary_tags" mapstructure:"necessary_tags"`
	RulesPath     string   `yaml:"rules_path" mapstructure:"rules_path"`
	// BrandCheck compares brand tags with the NSI index at nsi.path.
	BrandCheck bool `yaml:"brand_check" mapstructure:"brand_check"`
}

// StoreConfig configures run history persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AtlusConfig configures the address parsing service client.
type AtlusConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	BatchSize   int     `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// NSIConfig locates the Name Suggestion Index.
type NSIConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	URL  string `yaml:"url" mapstructure:"url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("ATP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("clean.saint_mode", "lenient")
	v.SetDefault("clean.hours_severity", "warn")
	v.SetDefault("clean.concurrency", 4)
	v.SetDefault("clean.output_suffix", "_processed")
	v.SetDefault("clean.necessary_tags", []string{})
	v.SetDefault("clean.rules_path", "")
	v.SetDefault("clean.brand_check", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/runs.db")
	v.SetDefault("atlus.base_url", "https://atlus.dev/api/")
	v.SetDefault("atlus.batch_size", 10000)
	v.SetDefault("atlus.timeout_secs", 10)
	v.SetDefault("atlus.rate_limit", 4.0)
	v.SetDefault("atlus.max_attempts", 3)
	v.SetDefault("nsi.path", "data/nsi.json")
	v.SetDefault("nsi.url", "https://raw.githubusercontent.com/osmlab/name-suggestion-index/main/dist/nsi.json")
	v.SetDefault("server.port", 8080)

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
// clean, atlus, nsi, runs or serve.
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(msg string) { problems = append(problems, msg) }

	switch c.Store.Driver {
	case "none":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required for driver " + c.Store.Driver)
		}
	default:
		add("store.driver must be sqlite, postgres or none")
	}

	switch mode {
	case "clean", "serve":
		switch strings.ToLower(c.Clean.SaintMode) {
		case "", "lenient", "strict":
		default:
			add("clean.saint_mode must be lenient or strict")
		}
		switch strings.ToLower(c.Clean.HoursSeverity) {
		case "", "warn", "error":
		default:
			add("clean.hours_severity must be warn or error")
		}
		if c.Clean.Concurrency < 1 || c.Clean.Concurrency > 64 {
			add("clean.concurrency must be between 1 and 64")
		}
		if c.Clean.BrandCheck && c.NSI.Path == "" {
			add("nsi.path is required when clean.brand_check is set")
		}
		if mode == "serve" && (c.Server.Port < 1 || c.Server.Port > 65535) {
			add("server.port must be between 1 and 65535")
		}
	case "atlus":
		if c.Atlus.BaseURL == "" {
			add("atlus.base_url is required")
		}
		if c.Atlus.BatchSize < 1 {
			add("atlus.batch_size must be positive")
		}
		if c.Atlus.TimeoutSecs < 1 {
			add("atlus.timeout_secs must be positive")
		}
		if c.Atlus.RateLimit <= 0 {
			add("atlus.rate_limit must be positive")
		}
	case "nsi":
		if c.NSI.URL == "" {
			add("nsi.url is required")
		}
		if c.NSI.Path == "" {
			add("nsi.path is required")
		}
	case "runs":
		if c.Store.Driver == "none" {
			add("store.driver none keeps no run history")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
