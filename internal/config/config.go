// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken  string
	Repos        []string // Repository full names ("owner/name") registered at startup.
	PollInterval time.Duration
	ListenAddr   string
	DBPath       string
}

// Load reads configuration from environment variables and returns a validated
// Config. PRSENTRY_GITHUB_TOKEN is required. Optional variables with
// defaults: PRSENTRY_POLL_INTERVAL (5m), PRSENTRY_LISTEN_ADDR
// (127.0.0.1:8080), PRSENTRY_DB_PATH (prsentry.db), PRSENTRY_REPOS
// (comma-separated owner/name list, may be empty).
func Load() (*Config, error) {
	token := os.Getenv("PRSENTRY_GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("PRSENTRY_GITHUB_TOKEN is required")
	}

	pollInterval := 5 * time.Minute
	if v, ok := os.LookupEnv("PRSENTRY_POLL_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PRSENTRY_POLL_INTERVAL has invalid duration %q: %w", v, err)
		}
		pollInterval = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("PRSENTRY_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "prsentry.db"
	if v, ok := os.LookupEnv("PRSENTRY_DB_PATH"); ok {
		dbPath = v
	}

	var repos []string
	if v, ok := os.LookupEnv("PRSENTRY_REPOS"); ok && v != "" {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				repos = append(repos, name)
			}
		}
	}
	if repos == nil {
		repos = []string{}
	}

	return &Config{
		GitHubToken:  token,
		Repos:        repos,
		PollInterval: pollInterval,
		ListenAddr:   listenAddr,
		DBPath:       dbPath,
	}, nil
}
