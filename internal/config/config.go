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
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	DocIntel  DocIntelConfig  `yaml:"docintel" mapstructure:"docintel"`
	DocSource DocSourceConfig `yaml:"docsource" mapstructure:"docsource"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// RedisConfig configures the shared Redis backend (cache + task queue).
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// CacheConfig configures cache TTLs in seconds.
type CacheConfig struct {
	ListingTTLSecs int `yaml:"listing_ttl_secs" mapstructure:"listing_ttl_secs"`
	ResultTTLSecs  int `yaml:"result_ttl_secs" mapstructure:"result_ttl_secs"`
	JobTTLSecs     int `yaml:"job_ttl_secs" mapstructure:"job_ttl_secs"`
}

// DocIntelConfig holds document intelligence API settings.
type DocIntelConfig struct {
	Key             string  `yaml:"key" mapstructure:"key"`
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	ClassifierModel string  `yaml:"classifier_model" mapstructure:"classifier_model"`
	RequestsPerSec  float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	PollIntervalMS  int     `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
}

// DocSourceConfig holds document source API settings.
type DocSourceConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MaxRetries int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// PipelineConfig configures classification and extraction behavior.
type PipelineConfig struct {
	DefaultType        string            `yaml:"default_type" mapstructure:"default_type"`
	FallbackConfidence float64           `yaml:"fallback_confidence" mapstructure:"fallback_confidence"`
	Profiles           map[string]string `yaml:"profiles" mapstructure:"profiles"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency      int      `yaml:"concurrency" mapstructure:"concurrency"`
	ContentFields    []string `yaml:"content_fields" mapstructure:"content_fields"`
	MaxDocumentBytes int64    `yaml:"max_document_bytes" mapstructure:"max_document_bytes"`
}

// AuthConfig configures JWT token issuance and validation.
type AuthConfig struct {
	Secret         string  `yaml:"secret" mapstructure:"secret"`
	TokenTTLSecs   int     `yaml:"token_ttl_secs" mapstructure:"token_ttl_secs"`
	Username       string  `yaml:"username" mapstructure:"username"`
	Password       string  `yaml:"password" mapstructure:"password"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
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

// Validate checks the fields required for the given run mode.
func (c *Config) Validate(mode string) error {
	var problems []string
	require := func(name, val string) {
		if val == "" {
			problems = append(problems, name+" is required")
		}
	}

	switch mode {
	case "serve":
		require("auth.secret", c.Auth.Secret)
		require("docintel.key", c.DocIntel.Key)
		require("docintel.base_url", c.DocIntel.BaseURL)
		require("docsource.token", c.DocSource.Token)
		require("docsource.base_url", c.DocSource.BaseURL)
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "worker":
		require("docintel.key", c.DocIntel.Key)
		require("docintel.base_url", c.DocIntel.BaseURL)
		require("docsource.token", c.DocSource.Token)
		require("docsource.base_url", c.DocSource.BaseURL)
		require("redis.addr", c.Redis.Addr)
	case "process":
		require("docintel.key", c.DocIntel.Key)
		require("docintel.base_url", c.DocIntel.BaseURL)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
		problems = append(problems, "batch.concurrency must be between 1 and 50")
	}
	if c.Pipeline.FallbackConfidence < 0 || c.Pipeline.FallbackConfidence > 1 {
		problems = append(problems, "pipeline.fallback_confidence must be in [0, 1]")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DOCFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.listing_ttl_secs", 300)
	v.SetDefault("cache.result_ttl_secs", 3600)
	v.SetDefault("cache.job_ttl_secs", 3600)
	v.SetDefault("docintel.classifier_model", "doctype_01")
	v.SetDefault("docintel.requests_per_sec", 10.0)
	v.SetDefault("docintel.poll_interval_ms", 500)
	v.SetDefault("docsource.max_retries", 3)
	v.SetDefault("pipeline.default_type", "invoice")
	v.SetDefault("pipeline.fallback_confidence", 0.10)
	v.SetDefault("pipeline.profiles", map[string]string{
		"invoice":   "inovice_01",
		"packlist":  "inovice_01",
		"transport": "transport_01",
	})
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.content_fields", []string{"content", "contenido", "file"})
	v.SetDefault("batch.max_document_bytes", 20<<20)
	v.SetDefault("auth.token_ttl_secs", 3600)
	v.SetDefault("auth.requests_per_sec", 10.0)
	v.SetDefault("server.port", 8080)
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
