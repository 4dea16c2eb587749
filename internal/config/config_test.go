package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseAdminIDs(t *testing.T) {
	tests := []struct {
		raw     string
		want    []int64
		wantErr bool
	}{
		{raw: "", want: nil},
		{raw: " 1, 2 ,,3 ", want: []int64{1, 2, 3}},
		{raw: "-100200", want: []int64{-100200}},
		{raw: "1,abc", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseAdminIDs(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseAdminIDs(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAdminIDs(%q): %v", tt.raw, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("ParseAdminIDs(%q) = %v, want %v", tt.raw, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("ParseAdminIDs(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		}
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("MODERATION_CHAT_ID", "-1001")
	t.Setenv("PUBLIC_CHANNEL_ID", "-1002")
	t.Setenv("ADMIN_IDS", "11, 22")
	t.Setenv("OUTBOX_INTERVAL", "2m")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Market.ModerationChatID != -1001 || cfg.Market.PublicChannelID != -1002 {
		t.Fatalf("market = %+v", cfg.Market)
	}
	if admins := cfg.Market.Admins(); len(admins) != 2 || admins[1] != 22 {
		t.Fatalf("admins = %v", admins)
	}
	if cfg.Market.FeedPageSize != 5 {
		t.Fatalf("feed page size default = %d", cfg.Market.FeedPageSize)
	}
	if cfg.Outbox.Interval != 2*time.Minute || cfg.Outbox.Batch != 20 {
		t.Fatalf("outbox = %+v", cfg.Outbox)
	}
	if cfg.CoreConfig().Telegram.Token != "123:abc" {
		t.Fatal("core config not embedded")
	}
	if cfg.Database.Dialect() != "sqlite" {
		t.Fatalf("dialect = %q", cfg.Database.Dialect())
	}
}

func TestLoadYAMLInlineCore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `telegram:
  token: "1:yaml"
market:
  moderation_chat_id: -5
  public_channel_id: -6
  public_channel_url: " https://t.me/books "
database:
  url: postgres://u:p@db:5432/books
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "1:yaml" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Market.PublicChannelURL != "https://t.me/books" {
		t.Fatalf("url = %q", cfg.Market.PublicChannelURL)
	}
	if cfg.Database.Dialect() != "postgres" {
		t.Fatalf("dialect = %q", cfg.Database.Dialect())
	}
}

func TestNormalizeRequiresChats(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "t"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected missing MODERATION_CHAT_ID error")
	}
	cfg.Market.ModerationChatID = 1
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected missing PUBLIC_CHANNEL_ID error")
	}
}

func TestLogAttrsLeaveSecretsOut(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:secret")
	t.Setenv("MODERATION_CHAT_ID", "-1001")
	t.Setenv("PUBLIC_CHANNEL_ID", "-1002")
	t.Setenv("ADMIN_IDS", "11,22,33")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := map[string]string{}
	for _, a := range cfg.LogAttrs() {
		got[a.Key] = a.Value.String()
	}
	if got["moderation_chat_id"] != "-1001" || got["admins"] != "3" || got["db"] != "sqlite" {
		t.Fatalf("summary = %v", got)
	}
	for k, v := range got {
		if v == "123:secret" {
			t.Fatalf("token leaked under %q", k)
		}
	}
}
