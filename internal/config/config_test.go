package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prsentry/prsentry/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PRSENTRY_GITHUB_TOKEN", "ghp_test")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "ghp_test", cfg.GitHubToken)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "prsentry.db", cfg.DBPath)
	assert.Empty(t, cfg.Repos)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PRSENTRY_GITHUB_TOKEN", "ghp_test")
	t.Setenv("PRSENTRY_POLL_INTERVAL", "30s")
	t.Setenv("PRSENTRY_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("PRSENTRY_DB_PATH", "/tmp/data.db")
	t.Setenv("PRSENTRY_REPOS", "acme/widgets, acme/gadgets ,")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/data.db", cfg.DBPath)
	assert.Equal(t, []string{"acme/widgets", "acme/gadgets"}, cfg.Repos)
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("PRSENTRY_GITHUB_TOKEN", "")

	_, err := config.Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRSENTRY_GITHUB_TOKEN")
}

func TestLoadInvalidPollInterval(t *testing.T) {
	t.Setenv("PRSENTRY_GITHUB_TOKEN", "ghp_test")
	t.Setenv("PRSENTRY_POLL_INTERVAL", "soon")

	_, err := config.Load()

	assert.Error(t, err)
}
