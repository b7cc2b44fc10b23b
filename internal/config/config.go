// Package config loads the leadscout daemon configuration from a YAML file
// and environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/leadscout/internal/safe"
)

// Config is the top-level leadscout configuration.
type Config struct {
	DBPath          string `yaml:"db_path"`
	Listen          string `yaml:"listen"`
	Token           string `yaml:"token"`
	MaxActiveGroups int    `yaml:"max_active_groups"`
	Origin          string `yaml:"origin"`
	LogLevel        string `yaml:"log_level"`

	Scraper ScraperConfig `yaml:"scraper"`
	Widget  WidgetConfig  `yaml:"widget"`
	Autorun AutorunConfig `yaml:"autorun"`
	Browser BrowserConfig `yaml:"browser"`
	Auth    AuthConfig    `yaml:"auth"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// ScraperConfig tunes a scan run.
type ScraperConfig struct {
	SendTimeout        time.Duration `yaml:"send_timeout"`
	MaxRounds          int           `yaml:"max_rounds"`
	PostsPerRound      int           `yaml:"posts_per_round"`
	MinPosts           int           `yaml:"min_posts"`
	FeedWait           time.Duration `yaml:"feed_wait"`
	FeedRetryWait      time.Duration `yaml:"feed_retry_wait"`
	MaterializeTimeout time.Duration `yaml:"materialize_timeout"`
}

// WidgetConfig tunes the in-page card.
type WidgetConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Poll     time.Duration `yaml:"poll"`
}

// AutorunConfig controls the background rotation.
type AutorunConfig struct {
	Heartbeat       string        `yaml:"heartbeat"` // cron spec
	DefaultInterval time.Duration `yaml:"default_interval"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Bin              string        `yaml:"bin"`
	UserDataDir      string        `yaml:"user_data_dir"`
	Mode             string        `yaml:"mode"` // headless | headful
	ResourceBlocking []string      `yaml:"resource_blocking"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
}

// AuthConfig configures the session gate.
type AuthConfig struct {
	Secret            string        `yaml:"secret"`
	AdminEmail        string        `yaml:"admin_email"`
	AdminPasswordHash string        `yaml:"admin_password_hash"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	RefreshURL        string        `yaml:"refresh_url"`
	AnonKey           string        `yaml:"anon_key"`

	// Disabled turns the gate off for single-user local runs.
	Disabled bool `yaml:"disabled"`
}

// NotifyConfig lists alert sinks.
type NotifyConfig struct {
	Log            bool   `yaml:"log"`
	WebhookURL     string `yaml:"webhook_url"`
	WebhookSecret  string `yaml:"webhook_secret"`
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`

	// WebhookAllowPrivate permits webhook targets on private networks.
	WebhookAllowPrivate bool `yaml:"webhook_allow_private"`
}

// LoadFile reads a YAML configuration file, then applies environment
// overrides and defaults. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, cfg.validate()
}

// applyEnv lets deployment knobs override the file.
func (c *Config) applyEnv() error {
	c.DBPath = env("LEADSCOUT_DB", c.DBPath)
	c.Listen = env("LEADSCOUT_LISTEN", c.Listen)
	c.Token = env("LEADSCOUT_TOKEN", c.Token)
	c.Origin = env("LEADSCOUT_ORIGIN", c.Origin)
	c.LogLevel = env("LOG_LEVEL", c.LogLevel)
	c.Browser.Remote = env("LEADSCOUT_CHROME_URL", c.Browser.Remote)
	c.Auth.Secret = env("LEADSCOUT_SECRET", c.Auth.Secret)
	c.Auth.AnonKey = env("LEADSCOUT_ANON_KEY", c.Auth.AnonKey)
	c.Notify.WebhookURL = env("LEADSCOUT_WEBHOOK_URL", c.Notify.WebhookURL)
	c.Notify.WebhookSecret = env("LEADSCOUT_WEBHOOK_SECRET", c.Notify.WebhookSecret)
	c.Notify.TelegramToken = env("TELEGRAM_BOT_TOKEN", c.Notify.TelegramToken)
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: TELEGRAM_CHAT_ID: %w", err)
		}
		c.Notify.TelegramChatID = id
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "leadscout.db"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8427"
	}
	if c.MaxActiveGroups <= 0 {
		c.MaxActiveGroups = 5
	}
	if c.Origin == "" {
		c.Origin = "https://www.facebook.com"
	}
	c.Origin = strings.TrimRight(c.Origin, "/")
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	s := &c.Scraper
	if s.SendTimeout <= 0 {
		s.SendTimeout = 8 * time.Second
	}
	if s.MaxRounds <= 0 {
		s.MaxRounds = 3
	}
	if s.PostsPerRound <= 0 {
		s.PostsPerRound = 40
	}
	if s.MinPosts <= 0 {
		s.MinPosts = 3
	}
	if s.FeedWait <= 0 {
		s.FeedWait = 25 * time.Second
	}
	if s.FeedRetryWait <= 0 {
		s.FeedRetryWait = 20 * time.Second
	}
	if s.MaterializeTimeout <= 0 {
		s.MaterializeTimeout = 1500 * time.Millisecond
	}

	if c.Widget.Debounce <= 0 {
		c.Widget.Debounce = 250 * time.Millisecond
	}
	if c.Widget.Poll <= 0 {
		c.Widget.Poll = 800 * time.Millisecond
	}

	if c.Autorun.Heartbeat == "" {
		c.Autorun.Heartbeat = "@every 1m"
	}
	if c.Autorun.DefaultInterval <= 0 {
		c.Autorun.DefaultInterval = 5 * time.Minute
	}

	if c.Browser.Mode == "" {
		c.Browser.Mode = "headless"
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}

	if c.Auth.SessionTTL <= 0 {
		c.Auth.SessionTTL = 24 * time.Hour
	}
}

func (c *Config) validate() error {
	switch c.Browser.Mode {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: browser.mode %q: want headless or headful", c.Browser.Mode)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	if !c.Auth.Disabled && c.Auth.AdminEmail != "" {
		if err := safe.ValidateSecret([]byte(c.Auth.Secret)); err != nil {
			return fmt.Errorf("config: auth.secret: %w", err)
		}
	}
	if c.Notify.WebhookURL != "" {
		if err := safe.ValidateURL(c.Notify.WebhookURL, c.Notify.WebhookAllowPrivate); err != nil {
			return fmt.Errorf("config: notify.webhook_url: %w", err)
		}
	}
	return nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
