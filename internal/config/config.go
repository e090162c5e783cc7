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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Tavily    TavilyConfig    `yaml:"tavily" mapstructure:"tavily"`
	Nimble    NimbleConfig    `yaml:"nimble" mapstructure:"nimble"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Slack     SlackConfig     `yaml:"slack" mapstructure:"slack"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// TavilyConfig holds Tavily search API settings.
type TavilyConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NimbleConfig holds Nimble AI parsing API settings.
type NimbleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings for signal scoring.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// SlackConfig holds the alert webhook settings.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// PipelineConfig configures detection pipeline behavior.
type PipelineConfig struct {
	MaxCandidates   int      `yaml:"max_candidates" mapstructure:"max_candidates"`
	ExcerptChars    int      `yaml:"excerpt_chars" mapstructure:"excerpt_chars"`
	AlertThreshold  float64  `yaml:"alert_threshold" mapstructure:"alert_threshold"`
	HighLikelihood  float64  `yaml:"high_likelihood" mapstructure:"high_likelihood"`
	FetchRatePerSec float64  `yaml:"fetch_rate_per_sec" mapstructure:"fetch_rate_per_sec"`
	AllowedDomains  []string `yaml:"allowed_domains" mapstructure:"allowed_domains"`
	SearchDomains   []string `yaml:"search_domains" mapstructure:"search_domains"`
	DefaultResults  int      `yaml:"default_results" mapstructure:"default_results"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port              int `yaml:"port" mapstructure:"port"`
	MaxConcurrentRuns int `yaml:"max_concurrent_runs" mapstructure:"max_concurrent_runs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// allowedDomains is the fixed allow-list of recognized tech publication
// domains used to filter candidate URLs out of search results.
var allowedDomains = []string{
	"techcrunch.com",
	"theverge.com",
	"wired.com",
	"arstechnica.com",
	"ycombinator.com",
	"betalist.com",
	"venturebeat.com",
	"engadget.com",
	"gizmodo.com",
	"techradar.com",
	"zdnet.com",
	"cnet.com",
	"producthunt.com",
}

// searchDomains is the include_domains list sent to the search API. A
// superset of allowedDomains: two sites are searched but their URL formats
// are not recognized by the candidate extractor.
var searchDomains = append([]string{
	"recode.net",
	"mashable.com",
}, allowedDomains...)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "data/signals.db")
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("nimble.base_url", "https://api.nimble.com")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("pipeline.max_candidates", 10)
	v.SetDefault("pipeline.excerpt_chars", 500)
	v.SetDefault("pipeline.alert_threshold", 0.75)
	v.SetDefault("pipeline.high_likelihood", 0.70)
	v.SetDefault("pipeline.fetch_rate_per_sec", 1.0)
	v.SetDefault("pipeline.allowed_domains", allowedDomains)
	v.SetDefault("pipeline.search_domains", searchDomains)
	v.SetDefault("pipeline.default_results", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_concurrent_runs", 4)
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
