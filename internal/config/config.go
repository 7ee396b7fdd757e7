package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service settings. Values come from defaults, an optional
// YAML file, and environment variables with the SITMON_ prefix, in that
// order of precedence (environment wins).
type Config struct {
	Addr     string `mapstructure:"addr"`
	LogLevel string `mapstructure:"log_level"`

	NewsAPIKey  string `mapstructure:"newsapi_key"`
	GNewsAPIKey string `mapstructure:"gnews_key"`

	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxArticles  int           `mapstructure:"max_articles"`

	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	CacheSweepInterval time.Duration `mapstructure:"cache_sweep_interval"`

	FeedsFile    string `mapstructure:"feeds_file"`
	SinksFile    string `mapstructure:"sinks_file"`
	SnapshotPath string `mapstructure:"snapshot_path"`

	EnrichEnabled bool `mapstructure:"enrich_enabled"`
	EnrichTopN    int  `mapstructure:"enrich_top_n"`
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("fetch_timeout", 10*time.Second)
	v.SetDefault("max_articles", 50)
	v.SetDefault("cache_ttl", 90*time.Second)
	v.SetDefault("cache_sweep_interval", 5*time.Minute)
	v.SetDefault("snapshot_path", "situation-monitor.db")
	v.SetDefault("enrich_enabled", false)
	v.SetDefault("enrich_top_n", 12)

	v.SetEnvPrefix("SITMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// API keys follow the upstream provider naming, without the prefix.
	v.BindEnv("newsapi_key", "SITMON_NEWSAPI_KEY", "NEWSAPI_KEY")
	v.BindEnv("gnews_key", "SITMON_GNEWS_KEY", "GNEWS_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.MaxArticles <= 0 {
		return fmt.Errorf("max_articles must be positive, got %d", c.MaxArticles)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive, got %s", c.CacheTTL)
	}
	if c.CacheSweepInterval <= 0 {
		return fmt.Errorf("cache_sweep_interval must be positive, got %s", c.CacheSweepInterval)
	}
	if c.EnrichTopN < 0 {
		return fmt.Errorf("enrich_top_n must not be negative, got %d", c.EnrichTopN)
	}
	return nil
}
