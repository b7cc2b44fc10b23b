package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/hazyhaar/leadscout/auth"
	"github.com/hazyhaar/leadscout/browser"
	"github.com/hazyhaar/leadscout/coordinator"
	"github.com/hazyhaar/leadscout/internal/config"
	"github.com/hazyhaar/leadscout/notify"
	"github.com/hazyhaar/leadscout/scraper"
	"github.com/hazyhaar/leadscout/store"
	"github.com/hazyhaar/leadscout/widget"
)

// app holds the components every command shares.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	auth   *auth.Manager
	gate   coordinator.Authenticator
	coord  *coordinator.Coordinator
	disp   *coordinator.Dispatcher
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openApp loads the configuration and opens the store.
func openApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, logger)
}

// newApp opens the store and builds the coordinator. opts are applied to
// the coordinator.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...coordinator.Option) (*app, error) {
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: st}

	authCfg := auth.Config{
		Secret:            []byte(cfg.Auth.Secret),
		AdminEmail:        cfg.Auth.AdminEmail,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
		AdminTTL:          cfg.Auth.SessionTTL,
		Logger:            logger,
	}
	if cfg.Auth.RefreshURL != "" {
		authCfg.Provider = &auth.HTTPProvider{BaseURL: cfg.Auth.RefreshURL, APIKey: cfg.Auth.AnonKey}
	}
	a.auth = auth.NewManager(st, authCfg)
	if !cfg.Auth.Disabled {
		a.gate = a.auth
	}

	notifier, err := newNotifier(cfg.Notify, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	opts = append([]coordinator.Option{coordinator.WithNotifier(notifier)}, opts...)

	a.coord = coordinator.New(st, coordinator.Config{
		MaxActiveGroups:        cfg.MaxActiveGroups,
		Origin:                 cfg.Origin,
		DefaultAutorunInterval: cfg.Autorun.DefaultInterval,
		Logger:                 logger,
	}, opts...)
	a.disp = coordinator.NewDispatcher(a.coord, a.gate)
	return a, nil
}

func (a *app) Close() error { return a.store.Close() }

func (a *app) scraperConfig(groupURL string) scraper.Config {
	s := a.cfg.Scraper
	return scraper.Config{
		GroupURL:           groupURL,
		Origin:             a.cfg.Origin,
		SendTimeout:        s.SendTimeout,
		MaxRounds:          s.MaxRounds,
		PostsPerRound:      s.PostsPerRound,
		MinPosts:           s.MinPosts,
		FeedWait:           s.FeedWait,
		FeedRetryWait:      s.FeedRetryWait,
		MaterializeTimeout: s.MaterializeTimeout,
		Logger:             a.logger,
	}
}

func (a *app) widgetOptions() widget.Options {
	return widget.Options{
		Controller: widget.Config{
			Origin:      a.cfg.Origin,
			SendTimeout: a.cfg.Scraper.SendTimeout,
			Logger:      a.logger,
		},
		Watch: widget.WatchConfig{
			Debounce: a.cfg.Widget.Debounce,
			Poll:     a.cfg.Widget.Poll,
		},
	}
}

func (a *app) browserConfig(forceHeadful bool) browser.Config {
	return browserConfig(a.cfg, a.logger, forceHeadful)
}

func browserConfig(cfg *config.Config, logger *slog.Logger, forceHeadful bool) browser.Config {
	b := cfg.Browser
	mode := browser.ModeHeadless
	if forceHeadful || b.Mode == "headful" {
		mode = browser.ModeHeadful
	}
	return browser.Config{
		RemoteURL:        b.Remote,
		Bin:              b.Bin,
		UserDataDir:      b.UserDataDir,
		Mode:             mode,
		ResourceBlocking: b.ResourceBlocking,
		NavigateTimeout:  b.NavigateTimeout,
		Logger:           logger,
	}
}

func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) (*notify.Manager, error) {
	var sinks []notify.Notifier
	if cfg.Log {
		sinks = append(sinks, notify.Log{Logger: logger})
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.WebhookURL, cfg.WebhookSecret))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, nil)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, tg)
	}
	return notify.NewManager(logger, sinks...), nil
}

// newLogger writes JSON to stderr so stdout stays free for CSV and MCP.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
