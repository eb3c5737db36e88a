package config

import (
	"fmt"
	"os"
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
	Solar      SolarConfig      `yaml:"solar" mapstructure:"solar"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	CommitEvery int    `yaml:"commit_every" mapstructure:"commit_every"`
}

// SolarConfig holds Google Solar API settings.
type SolarConfig struct {
	APIKey             string        `yaml:"api_key" mapstructure:"api_key"`
	APIKeyFile         string        `yaml:"api_key_file" mapstructure:"api_key_file"`
	BaseURL            string        `yaml:"base_url" mapstructure:"base_url"`
	RequiredQuality    string        `yaml:"required_quality" mapstructure:"required_quality"`
	MinInterval        time.Duration `yaml:"min_interval" mapstructure:"min_interval"`
	ThrottleCooldown   time.Duration `yaml:"throttle_cooldown" mapstructure:"throttle_cooldown"`
	Timeout            time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxThrottleRetries int           `yaml:"max_throttle_retries" mapstructure:"max_throttle_retries"`
}

// SourcesConfig locates the upstream datasets. Each source may be a local
// path or an http(s) URL.
type SourcesConfig struct {
	LocationsURL  string        `yaml:"locations_url" mapstructure:"locations_url"`
	CEJST         string        `yaml:"cejst" mapstructure:"cejst"`
	PropertyCodes string        `yaml:"property_codes" mapstructure:"property_codes"`
	Encoding      string        `yaml:"encoding" mapstructure:"encoding"`
	PollInterval  time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	WorkDir       string        `yaml:"work_dir" mapstructure:"work_dir"`
}

// EnrichConfig configures candidate selection for the enrichment run.
type EnrichConfig struct {
	Limit            int    `yaml:"limit" mapstructure:"limit"`
	ClassPrefix      string `yaml:"class_prefix" mapstructure:"class_prefix"`
	IncludeUnchecked bool   `yaml:"include_unchecked" mapstructure:"include_unchecked"`
}

// ServerConfig configures the read-only reporting server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures load-health alerting in serve mode.
type MonitoringConfig struct {
	WebhookURL          string        `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckInterval       time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
	RowFailureThreshold float64       `yaml:"row_failure_threshold" mapstructure:"row_failure_threshold"`
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
	v.SetEnvPrefix("SOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "community_solar.db")
	v.SetDefault("store.commit_every", 1000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("solar.api_key", "")
	v.SetDefault("solar.api_key_file", "google_api_key.txt")
	v.SetDefault("solar.base_url", "https://solar.googleapis.com/v1")
	v.SetDefault("solar.required_quality", "HIGH")
	v.SetDefault("solar.min_interval", "200ms")
	v.SetDefault("solar.throttle_cooldown", "90s")
	v.SetDefault("solar.timeout", "30s")
	v.SetDefault("solar.max_throttle_retries", 0)
	v.SetDefault("sources.locations_url", "https://hub.arcgis.com/api/download/v1/items/9b222d07cc164eb384a24742cbf1d274/csv?redirect=false&layers=0")
	v.SetDefault("sources.cejst", "cejst_data.csv")
	v.SetDefault("sources.property_codes", "property_codes.csv")
	v.SetDefault("sources.encoding", "")
	v.SetDefault("sources.poll_interval", "5s")
	v.SetDefault("sources.work_dir", "data")
	v.SetDefault("enrich.limit", 100)
	v.SetDefault("enrich.class_prefix", "6")
	v.SetDefault("enrich.include_unchecked", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval", "5m")
	v.SetDefault("monitoring.row_failure_threshold", 0.05)

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

// ResolveAPIKey returns the Solar API key, reading solar.api_key_file when
// no key is set directly.
func (c *Config) ResolveAPIKey() (string, error) {
	if c.Solar.APIKey != "" {
		return c.Solar.APIKey, nil
	}
	if c.Solar.APIKeyFile == "" {
		return "", eris.New("config: solar.api_key is required")
	}
	data, err := os.ReadFile(c.Solar.APIKeyFile)
	if err != nil {
		return "", eris.Wrapf(err, "config: read api key file %s", c.Solar.APIKeyFile)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", eris.Errorf("config: api key file %s is empty", c.Solar.APIKeyFile)
	}
	return key, nil
}

// Validate checks the settings a command mode depends on.
// Modes: "enrich", "load", "serve", "db".
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Store.Path == "" {
		errs = append(errs, "store.path is required")
	}
	if c.Store.CommitEvery < 1 {
		errs = append(errs, "store.commit_every must be >= 1")
	}

	switch mode {
	case "enrich":
		if c.Solar.APIKey == "" && c.Solar.APIKeyFile == "" {
			errs = append(errs, "solar.api_key or solar.api_key_file is required")
		}
		if c.Solar.BaseURL == "" {
			errs = append(errs, "solar.base_url is required")
		}
		if c.Solar.MinInterval < 0 || c.Solar.ThrottleCooldown < 0 {
			errs = append(errs, "solar intervals must be >= 0")
		}
		if c.Solar.MaxThrottleRetries < 0 {
			errs = append(errs, "solar.max_throttle_retries must be >= 0")
		}
		if c.Enrich.Limit < 1 {
			errs = append(errs, "enrich.limit must be >= 1")
		}
	case "load":
		if c.Sources.PollInterval <= 0 {
			errs = append(errs, "sources.poll_interval must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Monitoring.RowFailureThreshold < 0 || c.Monitoring.RowFailureThreshold > 1 {
			errs = append(errs, "monitoring.row_failure_threshold must be between 0 and 1")
		}
	case "db":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: %s", strings.Join(errs, "; ")))
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
