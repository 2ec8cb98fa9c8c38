package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/contrib-stats/internal/domain"
	"github.com/naka-gawa/contrib-stats/internal/usecase"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contrib-stats.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
repositories:
  - acme/widgets
  - acme/gadgets
start_date: "2024-01-01"
max_workers: 5
collect_reviews: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"acme/widgets", "acme/gadgets"}, cfg.Repositories)
	assert.Equal(t, 5, cfg.MaxWorkers)
	assert.True(t, cfg.CollectReviews)

	// Unset keys fall back to defaults.
	assert.Equal(t, DefaultDays, cfg.Days)
	assert.True(t, cfg.UseCache)
	assert.True(t, cfg.CollectCommitStats)
	assert.Equal(t, usecase.DefaultBotLogin, cfg.BotLogin)
	assert.Equal(t, DefaultCacheDir, cfg.CacheDir)
	assert.Equal(t, DefaultOutput, cfg.Output)

	refs, err := cfg.RepoRefs()
	require.NoError(t, err)
	assert.Equal(t, []domain.RepoRef{
		{Owner: "acme", Name: "widgets"},
		{Owner: "acme", Name: "gadgets"},
	}, refs)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Repositories: []string{"acme/widgets"},
			Days:         DefaultDays,
			MaxWorkers:   DefaultMaxWorkers,
		}
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "no repositories",
			mutate:  func(c *Config) { c.Repositories = nil },
			wantErr: "no repositories",
		},
		{
			name:    "malformed repository",
			mutate:  func(c *Config) { c.Repositories = []string{"widgets"} },
			wantErr: "expected owner/name",
		},
		{
			name:    "empty owner",
			mutate:  func(c *Config) { c.Repositories = []string{"/widgets"} },
			wantErr: "expected owner/name",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.MaxWorkers = 0 },
			wantErr: "max_workers",
		},
		{
			name:    "zero days",
			mutate:  func(c *Config) { c.Days = 0 },
			wantErr: "days",
		},
		{
			name:    "unparseable start date",
			mutate:  func(c *Config) { c.StartDate = "January 1st" },
			wantErr: "invalid start_date",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestResolveStartDate(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	explicit := &Config{StartDate: "2024-01-01"}
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), explicit.ResolveStartDate(now))

	rolling := &Config{Days: 30}
	assert.Equal(t, time.Date(2024, 2, 14, 10, 0, 0, 0, time.UTC), rolling.ResolveStartDate(now))
}

func TestCollectorOptions(t *testing.T) {
	cfg := &Config{
		MaxWorkers:         4,
		CollectReviews:     true,
		CollectCommitStats: true,
		UseCache:           true,
		BotLogin:           "some-bot[bot]",
	}
	opts := cfg.CollectorOptions()
	assert.Equal(t, 4, opts.MaxWorkers)
	assert.True(t, opts.CollectReviews)
	assert.True(t, opts.CollectCommitStats)
	assert.True(t, opts.UseCache)
	assert.Equal(t, "some-bot[bot]", opts.BotLogin)
}
