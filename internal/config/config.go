// Package config loads and validates the collection run configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/naka-gawa/contrib-stats/internal/domain"
	"github.com/naka-gawa/contrib-stats/internal/usecase"
)

const (
	DefaultMaxWorkers = 3
	DefaultDays       = 365
	DefaultCacheDir   = "data/cache"
	DefaultOutput     = "data/collected_data.json"
)

// Config is the resolved configuration for one collection run.
type Config struct {
	Repositories       []string `mapstructure:"repositories"`
	StartDate          string   `mapstructure:"start_date"`
	Days               int      `mapstructure:"days"`
	MaxWorkers         int      `mapstructure:"max_workers"`
	CollectReviews     bool     `mapstructure:"collect_reviews"`
	CollectCommitStats bool     `mapstructure:"collect_commit_stats"`
	UseCache           bool     `mapstructure:"use_cache"`
	BotLogin           string   `mapstructure:"bot_login"`
	CacheDir           string   `mapstructure:"cache_dir"`
	Output             string   `mapstructure:"output"`
}

// Load reads the configuration from path, or from ./contrib-stats.yaml
// when path is empty. Missing file is only an error when a path was
// given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("contrib-stats")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix("CONTRIB_STATS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("days", DefaultDays)
	v.SetDefault("max_workers", DefaultMaxWorkers)
	v.SetDefault("collect_reviews", false)
	v.SetDefault("collect_commit_stats", true)
	v.SetDefault("use_cache", true)
	v.SetDefault("bot_login", usecase.DefaultBotLogin)
	v.SetDefault("cache_dir", DefaultCacheDir)
	v.SetDefault("output", DefaultOutput)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no run can proceed with.
func (c *Config) Validate() error {
	if len(c.Repositories) == 0 {
		return fmt.Errorf("no repositories configured")
	}
	if _, err := c.RepoRefs(); err != nil {
		return err
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1, got %d", c.MaxWorkers)
	}
	if c.Days < 1 {
		return fmt.Errorf("days must be at least 1, got %d", c.Days)
	}
	if c.StartDate != "" {
		if _, err := time.Parse("2006-01-02", c.StartDate); err != nil {
			return fmt.Errorf("invalid start_date %q: %w", c.StartDate, err)
		}
	}
	return nil
}

// RepoRefs parses the configured "owner/name" strings.
func (c *Config) RepoRefs() ([]domain.RepoRef, error) {
	refs := make([]domain.RepoRef, 0, len(c.Repositories))
	for _, full := range c.Repositories {
		owner, name, ok := strings.Cut(full, "/")
		if !ok || owner == "" || name == "" {
			return nil, fmt.Errorf("invalid repository %q: expected owner/name", full)
		}
		refs = append(refs, domain.RepoRef{Owner: owner, Name: name})
	}
	return refs, nil
}

// ResolveStartDate returns the beginning of the collection window. An
// explicit start_date wins over the rolling days window.
func (c *Config) ResolveStartDate(now time.Time) time.Time {
	if c.StartDate != "" {
		t, _ := time.Parse("2006-01-02", c.StartDate)
		return t
	}
	return now.UTC().AddDate(0, 0, -c.Days)
}

// CollectorOptions maps the configuration onto collection run options.
func (c *Config) CollectorOptions() usecase.Options {
	return usecase.Options{
		MaxWorkers:         c.MaxWorkers,
		CollectReviews:     c.CollectReviews,
		CollectCommitStats: c.CollectCommitStats,
		UseCache:           c.UseCache,
		BotLogin:           c.BotLogin,
	}
}
