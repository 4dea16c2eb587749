// Package config loads the book-market bot configuration: the shared core
// settings plus database, market, outbox and metrics sections.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/bookmarket/core/config"
	coredatabase "github.com/m3rciful/bookmarket/core/database"
)

// MarketConfig describes where listings go and who may moderate them.
type MarketConfig struct {
	ModerationChatID int64  `yaml:"moderation_chat_id" envconfig:"MODERATION_CHAT_ID"`
	PublicChannelID  int64  `yaml:"public_channel_id" envconfig:"PUBLIC_CHANNEL_ID"`
	PublicChannelURL string `yaml:"public_channel_url" envconfig:"PUBLIC_CHANNEL_URL"`
	// AdminIDs is a comma-separated allow-list of moderator user ids.
	AdminIDs     string `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
	FeedPageSize int    `yaml:"feed_page_size" envconfig:"FEED_PAGE_SIZE"`

	admins []int64
}

// Admins returns the parsed allow-list.
func (m MarketConfig) Admins() []int64 {
	return m.admins
}

// OutboxConfig drives redelivery of moderation cards that were never sent.
type OutboxConfig struct {
	Interval time.Duration `yaml:"interval" envconfig:"OUTBOX_INTERVAL"`
	// Grace skips listings younger than this so the commit path gets the first try.
	Grace time.Duration `yaml:"grace" envconfig:"OUTBOX_GRACE"`
	Batch int           `yaml:"batch" envconfig:"OUTBOX_BATCH"`
}

// MetricsConfig exposes prometheus metrics when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Market   MarketConfig        `yaml:"market"`
	Outbox   OutboxConfig        `yaml:"outbox"`
	Metrics  MetricsConfig       `yaml:"metrics"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LogAttrs summarizes the deployment for the startup log. Secrets are left out.
func (c *Config) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("run_mode", c.Telegram.RunMode),
		slog.String("db", c.Database.Dialect()),
		slog.Int64("moderation_chat_id", c.Market.ModerationChatID),
		slog.Int64("public_channel_id", c.Market.PublicChannelID),
		slog.Int("admins", len(c.Market.admins)),
		slog.Int("feed_page_size", c.Market.FeedPageSize),
		slog.Duration("outbox_interval", c.Outbox.Interval),
		slog.Bool("metrics", c.Metrics.Listen != ""),
	}
}

// Load reads YAML (optional), .env and environment, then validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	if cfg.Market.ModerationChatID == 0 {
		return fmt.Errorf("MODERATION_CHAT_ID is required")
	}
	if cfg.Market.PublicChannelID == 0 {
		return fmt.Errorf("PUBLIC_CHANNEL_ID is required")
	}
	admins, err := ParseAdminIDs(cfg.Market.AdminIDs)
	if err != nil {
		return err
	}
	cfg.Market.admins = admins
	if cfg.Market.FeedPageSize <= 0 {
		cfg.Market.FeedPageSize = 5
	}
	cfg.Market.PublicChannelURL = strings.TrimSpace(cfg.Market.PublicChannelURL)

	if cfg.Outbox.Interval <= 0 {
		cfg.Outbox.Interval = time.Minute
	}
	if cfg.Outbox.Grace <= 0 {
		cfg.Outbox.Grace = 30 * time.Second
	}
	if cfg.Outbox.Batch <= 0 {
		cfg.Outbox.Batch = 20
	}
	return nil
}

// ParseAdminIDs parses a comma-separated list of user ids. Blank entries are ignored.
func ParseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
