// Package config provides centralized configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/danielolaszy/issuebot/internal/logging"
	"github.com/danielolaszy/issuebot/pkg/models"
	"github.com/spf13/viper"
)

// ErrMissingCredentials is returned when the token or username is not configured.
var ErrMissingCredentials = errors.New("missing credentials")

// Default values mirror what a config file may omit.
const (
	DefaultPollIntervalSecs = 45
	DefaultMaxJitterSecs    = 30
	DefaultCooldownHours    = 24
	DefaultRateLimitFloor   = 50
	DefaultMaxPages         = 10
	DefaultMaxRetries       = 3
	DefaultGitHubDomain     = "github.com"

	envPrefix = "ISSUEBOT"
)

// DefaultCommentTemplates are used when a config file lists none.
var DefaultCommentTemplates = []string{
	"Hi, I'd love to take this one!",
	"This looks interesting, may I work on it?",
	"I'd like to contribute to this issue, thanks!",
}

// Config holds all configuration parameters for the application.
type Config struct {
	AuthToken        string                  `mapstructure:"auth_token" toml:"auth_token" yaml:"auth_token"`
	UserLogin        string                  `mapstructure:"user_login" toml:"user_login" yaml:"user_login"`
	GitHubDomain     string                  `mapstructure:"github_domain" toml:"github_domain" yaml:"github_domain"`
	PollIntervalSecs int                     `mapstructure:"poll_interval_secs" toml:"poll_interval_secs" yaml:"poll_interval_secs"`
	MaxJitterSecs    int                     `mapstructure:"max_jitter_secs" toml:"max_jitter_secs" yaml:"max_jitter_secs"`
	CooldownHours    int                     `mapstructure:"cooldown_hours" toml:"cooldown_hours" yaml:"cooldown_hours"`
	RateLimitFloor   int                     `mapstructure:"rate_limit_floor" toml:"rate_limit_floor" yaml:"rate_limit_floor"`
	MaxPages         int                     `mapstructure:"max_pages" toml:"max_pages" yaml:"max_pages"`
	MaxRetries       int                     `mapstructure:"max_retries" toml:"max_retries" yaml:"max_retries"`
	CommentTemplates []string                `mapstructure:"comment_templates" toml:"comment_templates" yaml:"comment_templates"`
	Repositories     []models.RepositoryRule `mapstructure:"repositories" toml:"repositories" yaml:"repositories"`
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// MaxJitter returns the upper bound of the per-tick random delay.
func (c *Config) MaxJitter() time.Duration {
	return time.Duration(c.MaxJitterSecs) * time.Second
}

// Cooldown returns how long an outstanding request blocks new ones.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours) * time.Hour
}

// Load reads the config file at path, or the environment when path is empty.
func Load(path string) (*Config, error) {
	loadDotEnv(".env")

	if path == "" {
		return FromEnv()
	}
	return FromFile(path)
}

// FromFile loads a TOML, YAML or JSON config file. Environment variables
// take precedence over values in the file.
func FromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if len(cfg.CommentTemplates) == 0 {
		cfg.CommentTemplates = append([]string(nil), DefaultCommentTemplates...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Debug("loaded config file",
		"path", path,
		"repositories", len(cfg.Repositories),
		"token", logging.MaskSensitive(cfg.AuthToken))

	return &cfg, nil
}

// FromEnv builds a minimal configuration with credentials only and no
// repository rules.
func FromEnv() (*Config, error) {
	v := newViper()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment configuration: %w", err)
	}
	cfg.CommentTemplates = append([]string(nil), DefaultCommentTemplates...)
	cfg.Repositories = nil

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("github_domain", DefaultGitHubDomain)
	v.SetDefault("poll_interval_secs", DefaultPollIntervalSecs)
	v.SetDefault("max_jitter_secs", DefaultMaxJitterSecs)
	v.SetDefault("cooldown_hours", DefaultCooldownHours)
	v.SetDefault("rate_limit_floor", DefaultRateLimitFloor)
	v.SetDefault("max_pages", DefaultMaxPages)
	v.SetDefault("max_retries", DefaultMaxRetries)

	// Map specific environment variables
	v.BindEnv("auth_token", "ISSUEBOT_AUTH_TOKEN", "GITHUB_TOKEN")
	v.BindEnv("user_login", "ISSUEBOT_USER_LOGIN", "GITHUB_USERNAME")
	v.BindEnv("github_domain", "ISSUEBOT_GITHUB_DOMAIN", "GITHUB_DOMAIN")

	return v
}

// loadDotEnv copies KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is ignored.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		logging.Warn("ignoring unreadable .env file", "path", path, "error", err)
		return
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		_ = os.Setenv(name, v.GetString(key))
	}
}

// Validate ensures that all required configuration values are provided.
func (c *Config) Validate() error {
	var missingVars []string

	if c.AuthToken == "" {
		missingVars = append(missingVars, "GITHUB_TOKEN")
	}
	if c.UserLogin == "" {
		missingVars = append(missingVars, "GITHUB_USERNAME")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("%w: missing required environment variables: %v", ErrMissingCredentials, missingVars)
	}

	if c.PollIntervalSecs <= 0 {
		return fmt.Errorf("poll_interval_secs must be positive, got %d", c.PollIntervalSecs)
	}
	if c.CooldownHours <= 0 {
		return fmt.Errorf("cooldown_hours must be positive, got %d", c.CooldownHours)
	}
	if c.MaxJitterSecs < 0 {
		return fmt.Errorf("max_jitter_secs must not be negative, got %d", c.MaxJitterSecs)
	}
	if c.RateLimitFloor < 0 {
		return fmt.Errorf("rate_limit_floor must not be negative, got %d", c.RateLimitFloor)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max_pages must be positive, got %d", c.MaxPages)
	}

	for i, repo := range c.Repositories {
		if repo.Owner == "" || repo.Name == "" {
			return fmt.Errorf("repositories[%d]: owner and repo are required", i)
		}
	}

	return nil
}

// Warnings lists tolerated misconfigurations that do not stop the bot.
func (c *Config) Warnings() []string {
	var warnings []string

	if len(c.Repositories) == 0 {
		warnings = append(warnings, "no repositories configured; the bot will only idle")
	}

	for _, repo := range c.Repositories {
		if repo.TitlePattern == "" {
			continue
		}
		if _, err := regexp.Compile(repo.TitlePattern); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: title_regex %q is invalid and will be ignored: %v",
				repo.FullName(), repo.TitlePattern, err))
		}
	}

	return warnings
}

// Example returns a complete configuration with placeholder credentials,
// suitable as a starting point for a config file.
func Example() Config {
	return Config{
		AuthToken:        "ghp_your_token_here",
		UserLogin:        "your-github-login",
		GitHubDomain:     DefaultGitHubDomain,
		PollIntervalSecs: DefaultPollIntervalSecs,
		MaxJitterSecs:    DefaultMaxJitterSecs,
		CooldownHours:    DefaultCooldownHours,
		RateLimitFloor:   DefaultRateLimitFloor,
		MaxPages:         DefaultMaxPages,
		MaxRetries:       DefaultMaxRetries,
		CommentTemplates: append([]string(nil), DefaultCommentTemplates...),
		Repositories: []models.RepositoryRule{
			{
				Owner:  "rust-lang",
				Name:   "rust",
				Labels: []string{"E-easy"},
			},
			{
				Owner:         "golang",
				Name:          "go",
				Labels:        []string{"help wanted"},
				ExcludeLabels: []string{"NeedsDecision"},
				TitlePattern:  `^(cmd|x)/`,
			},
		},
	}
}
