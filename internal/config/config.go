// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	LogFormat      string `mapstructure:"LOG_FORMAT"`
	HTTPAddr       string `mapstructure:"HTTP_ADDR"`
	DBURL          string `mapstructure:"DB_URL"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`

	GithubAPIURL          string `mapstructure:"GITHUB_API_URL"`
	GithubRepoPageSize    int    `mapstructure:"GITHUB_REPO_PAGE_SIZE"`
	GithubCommitRepoLimit int    `mapstructure:"GITHUB_COMMIT_REPO_LIMIT"`
	GithubCommitsPerRepo  int    `mapstructure:"GITHUB_COMMITS_PER_REPO"`
	GithubPRPageSize      int    `mapstructure:"GITHUB_PR_PAGE_SIZE"`
	GithubWebhookSecret   string `mapstructure:"GITHUB_WEBHOOK_SECRET"`

	SyncMaxStoredCommits int           `mapstructure:"SYNC_MAX_STORED_COMMITS"`
	SyncInterval         time.Duration `mapstructure:"SYNC_INTERVAL"`
	SyncConcurrency      int           `mapstructure:"SYNC_CONCURRENCY"`

	AIAPIURL           string `mapstructure:"AI_API_URL"`
	AIAPIKey           string `mapstructure:"AI_API_KEY"`
	AIModel            string `mapstructure:"AI_MODEL"`
	AnalysisMarkFailed bool   `mapstructure:"ANALYSIS_MARK_FAILED"`

	DispatchWorkers       int           `mapstructure:"DISPATCH_WORKERS"`
	DispatchQueueSize     int           `mapstructure:"DISPATCH_QUEUE_SIZE"`
	DispatchMaxRetries    int           `mapstructure:"DISPATCH_MAX_RETRIES"`
	DispatchRetryInterval time.Duration `mapstructure:"DISPATCH_RETRY_INTERVAL"`
	DispatchTaskTimeout   time.Duration `mapstructure:"DISPATCH_TASK_TIMEOUT"`
}

var defaults = map[string]any{
	"LOG_LEVEL":       "info",
	"LOG_FORMAT":      "json",
	"HTTP_ADDR":       ":8080",
	"DB_URL":          "",
	"MIGRATIONS_PATH": "file://migrations",
	"JWT_SECRET":      "",

	"GITHUB_API_URL":           "",
	"GITHUB_REPO_PAGE_SIZE":    100,
	"GITHUB_COMMIT_REPO_LIMIT": 10,
	"GITHUB_COMMITS_PER_REPO":  10,
	"GITHUB_PR_PAGE_SIZE":      50,
	"GITHUB_WEBHOOK_SECRET":    "",

	"SYNC_MAX_STORED_COMMITS": 50,
	"SYNC_INTERVAL":           "0s",
	"SYNC_CONCURRENCY":        5,

	"AI_API_URL":           "https://ai.gateway.lovable.dev/v1",
	"AI_API_KEY":           "",
	"AI_MODEL":             "google/gemini-2.5-flash",
	"ANALYSIS_MARK_FAILED": false,

	"DISPATCH_WORKERS":        2,
	"DISPATCH_QUEUE_SIZE":     100,
	"DISPATCH_MAX_RETRIES":    0,
	"DISPATCH_RETRY_INTERVAL": "5s",
	"DISPATCH_TASK_TIMEOUT":   "0s",
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Every key gets a default so AutomaticEnv values are seen by Unmarshal.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DBURL == "" {
		return errors.New("DB_URL is a required configuration field")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is a required configuration field")
	}
	if c.GithubRepoPageSize <= 0 || c.GithubRepoPageSize > 100 {
		return errors.New("GITHUB_REPO_PAGE_SIZE must be between 1 and 100")
	}
	if c.GithubCommitRepoLimit < 0 {
		return errors.New("GITHUB_COMMIT_REPO_LIMIT must not be negative")
	}
	if c.GithubCommitsPerRepo <= 0 || c.GithubCommitsPerRepo > 100 {
		return errors.New("GITHUB_COMMITS_PER_REPO must be between 1 and 100")
	}
	if c.GithubPRPageSize <= 0 || c.GithubPRPageSize > 100 {
		return errors.New("GITHUB_PR_PAGE_SIZE must be between 1 and 100")
	}
	if c.SyncMaxStoredCommits < 0 {
		return errors.New("SYNC_MAX_STORED_COMMITS must not be negative")
	}
	if c.SyncConcurrency <= 0 {
		return errors.New("SYNC_CONCURRENCY must be positive")
	}
	if c.SyncInterval < 0 {
		return errors.New("SYNC_INTERVAL must not be negative")
	}
	if c.DispatchWorkers <= 0 || c.DispatchQueueSize <= 0 {
		return errors.New("DISPATCH_WORKERS and DISPATCH_QUEUE_SIZE must be positive")
	}
	if c.DispatchMaxRetries < 0 || c.DispatchRetryInterval < 0 || c.DispatchTaskTimeout < 0 {
		return errors.New("DISPATCH_MAX_RETRIES, DISPATCH_RETRY_INTERVAL and DISPATCH_TASK_TIMEOUT must not be negative")
	}
	if c.LogFormat != "json" && c.LogFormat != "pretty" {
		return errors.New("LOG_FORMAT must be either 'json' or 'pretty'")
	}
	return nil
}
