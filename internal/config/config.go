package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"

	errs "github.com/iamwavecut/modbot/internal/errors"
)

type (
	Config struct {
		TelegramAPIToken string  `env:"BOT_TOKEN,required"`
		DefaultLanguage  string  `env:"BOT_LANG,default=ru"`
		LogLevel         int     `env:"LOG_LEVEL,default=4"`
		DotPath          string  `env:"DOT_PATH,default=~/.modbot"`
		AdminChatID      int64   `env:"ADMIN_CHAT_ID"`
		ChatIDs          []int64 `env:"CHAT_IDS"`
		Workers          int     `env:"WORKERS,default=4"`
		MetricsAddr      string  `env:"METRICS_ADDR,default=:2112"`
		Moderation       Moderation
		Store            Store
		ChatClient       ChatClient
		Stats            Stats
	}

	Moderation struct {
		MaxWarnings        int      `env:"MAX_WARNINGS,default=3"`
		BanDurationMinutes int      `env:"BAN_DURATION,default=3"`
		AutoRemoveSeconds  int      `env:"AUTO_REMOVE,default=30"`
		BanNoticeSeconds   int      `env:"BAN_NOTICE_REMOVE,default=60"`
		BannedPhrases      []string `env:"BANNED_PHRASES,default=vk.com,vk.ru,vkontakte.ru"`
		RestrictedMedia    []string `env:"RESTRICTED_MEDIA,default=voice,video_note"`
		AdminsExempt       bool     `env:"ADMINS_EXEMPT,default=false"`
	}

	Store struct {
		Driver string `env:"STORE,default=sqlite"`
		Name   string `env:"STORE_NAME,default=modbot.db"`
	}

	ChatClient struct {
		Timeout time.Duration `env:"CHAT_TIMEOUT,default=10s"`
		Rate    float64       `env:"CHAT_RATE,default=25"`
		Burst   int           `env:"CHAT_BURST,default=5"`
	}

	Stats struct {
		Interval time.Duration `env:"STATS_INTERVAL,default=1m"`
	}
)

const (
	StoreSQLite = "sqlite"
	StoreBolt   = "bolt"
	StoreFile   = "file"
)

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.WithField("error", err.Error()).Trace("no .env file loaded")
	}
	return LoadWith(ctx, envconfig.OsLookuper())
}

func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	envcfg := envconfig.Config{
		Lookuper: lookuper,
		Target:   cfg,
	}
	if err := envconfig.ProcessWith(ctx, &envcfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}

	dotPath, err := homedir.Expand(cfg.DotPath)
	if err != nil {
		return nil, fmt.Errorf("expand dot path: %w", err)
	}
	cfg.DotPath = dotPath

	cfg.Moderation.BannedPhrases = normalizeList(cfg.Moderation.BannedPhrases)
	cfg.Moderation.RestrictedMedia = normalizeList(cfg.Moderation.RestrictedMedia)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Traceln("loaded config")
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Moderation.MaxWarnings <= 0:
		return fmt.Errorf("%w: MAX_WARNINGS must be positive", errs.ErrConfig)
	case c.Moderation.BanDurationMinutes <= 0:
		return fmt.Errorf("%w: BAN_DURATION must be positive", errs.ErrConfig)
	case c.Moderation.AutoRemoveSeconds <= 0:
		return fmt.Errorf("%w: AUTO_REMOVE must be positive", errs.ErrConfig)
	case c.Moderation.BanNoticeSeconds <= 0:
		return fmt.Errorf("%w: BAN_NOTICE_REMOVE must be positive", errs.ErrConfig)
	case len(c.Moderation.BannedPhrases) == 0:
		return fmt.Errorf("%w: BANNED_PHRASES is empty", errs.ErrConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: WORKERS must be positive", errs.ErrConfig)
	}
	switch c.Store.Driver {
	case StoreSQLite, StoreBolt, StoreFile:
	default:
		return fmt.Errorf("%w: unknown STORE %q", errs.ErrConfig, c.Store.Driver)
	}
	return nil
}

func (m Moderation) BanDuration() time.Duration {
	return time.Duration(m.BanDurationMinutes) * time.Minute
}

func (m Moderation) AutoRemove() time.Duration {
	return time.Duration(m.AutoRemoveSeconds) * time.Second
}

// BanNoticeLifetime is how long a ban notice with its unban button stays in
// the chat.
func (m Moderation) BanNoticeLifetime() time.Duration {
	return time.Duration(m.BanNoticeSeconds) * time.Second
}

// WatchesChat reports whether activity in chatID should be recorded.
func (c *Config) WatchesChat(chatID int64) bool {
	if len(c.ChatIDs) == 0 {
		return true
	}
	for _, id := range c.ChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

func normalizeList(items []string) []string {
	res := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			res = append(res, item)
		}
	}
	return res
}
