package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leadscout.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxActiveGroups != 5 {
		t.Errorf("max_active_groups: got %d, want 5", cfg.MaxActiveGroups)
	}
	if cfg.Origin != "https://www.facebook.com" {
		t.Errorf("origin: got %q", cfg.Origin)
	}
	if cfg.Scraper.SendTimeout != 8*time.Second || cfg.Scraper.MaxRounds != 3 || cfg.Scraper.PostsPerRound != 40 {
		t.Errorf("scraper defaults: %+v", cfg.Scraper)
	}
	if cfg.Scraper.FeedWait != 25*time.Second || cfg.Scraper.FeedRetryWait != 20*time.Second {
		t.Errorf("feed waits: %+v", cfg.Scraper)
	}
	if cfg.Widget.Debounce != 250*time.Millisecond || cfg.Widget.Poll != 800*time.Millisecond {
		t.Errorf("widget defaults: %+v", cfg.Widget)
	}
	if cfg.Autorun.Heartbeat != "@every 1m" || cfg.Autorun.DefaultInterval != 5*time.Minute {
		t.Errorf("autorun defaults: %+v", cfg.Autorun)
	}
	if cfg.Browser.Mode != "headless" {
		t.Errorf("browser mode: got %q", cfg.Browser.Mode)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, `
db_path: /var/lib/leadscout/leads.db
max_active_groups: 3
origin: https://web.facebook.com/
scraper:
  max_rounds: 5
  feed_wait: 10s
widget:
  poll: 2s
browser:
  mode: headful
  resource_blocking: [images, fonts]
notify:
  log: true
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/var/lib/leadscout/leads.db" {
		t.Errorf("db_path: got %q", cfg.DBPath)
	}
	if cfg.MaxActiveGroups != 3 {
		t.Errorf("max_active_groups: got %d", cfg.MaxActiveGroups)
	}
	if cfg.Origin != "https://web.facebook.com" {
		t.Errorf("origin: got %q, want trailing slash trimmed", cfg.Origin)
	}
	if cfg.Scraper.MaxRounds != 5 || cfg.Scraper.FeedWait != 10*time.Second {
		t.Errorf("scraper: %+v", cfg.Scraper)
	}
	if cfg.Scraper.PostsPerRound != 40 {
		t.Errorf("posts_per_round default lost: %d", cfg.Scraper.PostsPerRound)
	}
	if cfg.Widget.Poll != 2*time.Second {
		t.Errorf("widget.poll: got %v", cfg.Widget.Poll)
	}
	if cfg.Browser.Mode != "headful" || len(cfg.Browser.ResourceBlocking) != 2 {
		t.Errorf("browser: %+v", cfg.Browser)
	}
	if !cfg.Notify.Log {
		t.Error("notify.log not parsed")
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := writeFile(t, "db_path: file.db\nlisten: 127.0.0.1:1\n")
	t.Setenv("LEADSCOUT_DB", "env.db")
	t.Setenv("LEADSCOUT_SECRET", "0123456789abcdef-secret")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "env.db" {
		t.Errorf("db_path: got %q, want env override", cfg.DBPath)
	}
	if cfg.Listen != "127.0.0.1:1" {
		t.Errorf("listen: got %q, want file value", cfg.Listen)
	}
	if cfg.Auth.Secret != "0123456789abcdef-secret" {
		t.Errorf("secret: got %q", cfg.Auth.Secret)
	}
	if cfg.Notify.TelegramChatID != -100123 {
		t.Errorf("chat id: got %d", cfg.Notify.TelegramChatID)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level: got %q", cfg.LogLevel)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	cases := map[string]string{
		"mode":         "browser:\n  mode: invisible\n",
		"log level":    "log_level: loud\n",
		"short key":    "auth:\n  admin_email: a@b.c\n  secret: short\n",
		"bad yaml":     "scraper: [\n",
		"private hook": "notify:\n  webhook_url: http://10.0.0.5/hook\n",
		"bad chatid":   "",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if name == "bad chatid" {
				t.Setenv("TELEGRAM_CHAT_ID", "abc")
			}
			if _, err := LoadFile(writeFile(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFile_PrivateWebhookAllowed(t *testing.T) {
	path := writeFile(t, "notify:\n  webhook_url: http://10.0.0.5/hook\n  webhook_allow_private: true\n")
	if _, err := LoadFile(path); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
