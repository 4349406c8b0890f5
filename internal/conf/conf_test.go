package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("FEISHU_APP_ID", "cli_x")
	t.Setenv("FEISHU_APP_SECRET", "secret")
	t.Setenv("ADMIN_ID", "+1555000999")
	t.Setenv("ALLOW_LIST", "alice,bob@example")
	t.Setenv("MESSAGES_CONFIG_PATH", "")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Media.SelectionTTL != 10*time.Minute {
		t.Errorf("expected 10m selection TTL, got %v", cfg.Media.SelectionTTL)
	}
	if cfg.Media.MaxUploadMB != 30 {
		t.Errorf("expected 30MB upload limit, got %d", cfg.Media.MaxUploadMB)
	}

	bot := cfg.Access.ToBotConfig()
	if bot.Admin != "1555000999" {
		t.Errorf("admin should be normalized, got %q", bot.Admin)
	}
	if !bot.IsAllowed("alice") || !bot.IsAllowed("bob") {
		t.Errorf("allow list not parsed: %v", bot.AllowedIdentities())
	}

	pc := cfg.Media.ToPipelineConfig()
	if pc.MaxUploadBytes != 30<<20 || pc.FetchTimeout != 5*time.Minute {
		t.Errorf("unexpected pipeline config: %+v", pc)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("FEISHU_APP_ID", "cli_x")
	t.Setenv("FEISHU_APP_SECRET", "secret")
	t.Setenv("ADMIN_ID", "")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	err = cfg.Validate()
	ce, ok := err.(*ConfigError)
	if !ok || ce.Field != "ADMIN_ID" {
		t.Fatalf("expected ADMIN_ID error, got %v", err)
	}

	cfg.Access.AdminID = "admin"
	cfg.Media.AudioFormat = "mp4"
	if err := cfg.Validate(); err == nil {
		t.Error("video container must be rejected as audio format")
	}
}

func TestValidate_Janitor(t *testing.T) {
	t.Setenv("FEISHU_APP_ID", "cli_x")
	t.Setenv("FEISHU_APP_SECRET", "secret")
	t.Setenv("ADMIN_ID", "admin")

	tests := []struct {
		name     string
		interval string
		maxAge   string
		field    string
	}{
		{"zero interval", "0s", "1h", "JANITOR_INTERVAL"},
		{"negative interval", "-1m", "1h", "JANITOR_INTERVAL"},
		{"max age below job lifetime", "10m", "5m", "SCRATCH_MAX_AGE"},
		{"max age equal to job lifetime", "10m", "10m", "SCRATCH_MAX_AGE"},
		{"valid", "10m", "11m", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JANITOR_INTERVAL", tt.interval)
			t.Setenv("SCRATCH_MAX_AGE", tt.maxAge)
			cfg, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv: %v", err)
			}
			err = cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			ce, ok := err.(*ConfigError)
			if !ok || ce.Field != tt.field {
				t.Errorf("expected %s error, got %v", tt.field, err)
			}
		})
	}
}

func TestLoadMessagesConfig_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	content := "errors:\n  busy: \"hold on\"\nhelp:\n  user: \"custom help\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMessagesConfig(path)
	if err != nil {
		t.Fatalf("LoadMessagesConfig: %v", err)
	}
	texts := m.ToReplyTexts()
	if texts.Busy != "hold on" || texts.Help != "custom help" {
		t.Errorf("overrides not applied: busy=%q help=%q", texts.Busy, texts.Help)
	}
	if texts.SongCaption != "Here is your song" {
		t.Errorf("missing keys should keep defaults, got %q", texts.SongCaption)
	}
}

func TestLoadMessagesConfig_MissingExplicitPath(t *testing.T) {
	if _, err := LoadMessagesConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("explicit missing path should fail")
	}
}
