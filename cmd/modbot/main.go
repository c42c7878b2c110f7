package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iamwavecut/modbot/internal/bot"
	"github.com/iamwavecut/modbot/internal/config"
	"github.com/iamwavecut/modbot/internal/db"
	"github.com/iamwavecut/modbot/internal/db/boltstore"
	"github.com/iamwavecut/modbot/internal/db/filestore"
	"github.com/iamwavecut/modbot/internal/db/sqlite"
	adminhandlers "github.com/iamwavecut/modbot/internal/handlers/admin"
	modhandlers "github.com/iamwavecut/modbot/internal/handlers/moderation"
	"github.com/iamwavecut/modbot/internal/i18n"
	"github.com/iamwavecut/modbot/internal/infra"
	"github.com/iamwavecut/modbot/internal/infrastructure/telegram"
	"github.com/iamwavecut/modbot/internal/lifecycle"
	"github.com/iamwavecut/modbot/internal/moderation"
	"github.com/iamwavecut/modbot/internal/observability"
	"github.com/iamwavecut/modbot/internal/registry"
	"github.com/iamwavecut/modbot/internal/scheduler"
	"github.com/iamwavecut/modbot/internal/stats"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.SetFormatter(&config.NbFormatter{})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load(ctx)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("cant load config")
	}
	log.SetLevel(log.Level(cfg.LogLevel))

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithField("error", err.Error()).Fatal("bot stopped")
	}
	log.Info("bot stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	kv, err := openStore(ctx, cfg)
	if err != nil {
		return errors.WithMessage(err, "cant open store")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.WithField("error", err.Error()).Warn("cant close store")
		}
	}()

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		return errors.WithMessage(err, "cant initialize bot api")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	defer botAPI.StopReceivingUpdates()

	chat := telegram.NewOperations(botAPI, telegram.Options{
		Timeout: cfg.ChatClient.Timeout,
		Rate:    cfg.ChatClient.Rate,
		Burst:   cfg.ChatClient.Burst,
	})
	store := registry.NewStore(kv)
	service := bot.NewService(store, cfg)

	sched := scheduler.New()
	machine := moderation.NewStateMachine(cfg.Moderation.MaxWarnings, cfg.Moderation.BanDuration(), time.Now)
	notices := moderation.NewNotices(cfg.DefaultLanguage)
	classifier := moderation.NewClassifier(moderation.Rules{
		BannedPhrases:   cfg.Moderation.BannedPhrases,
		RestrictedMedia: mediaKinds(cfg.Moderation.RestrictedMedia),
		AdminsExempt:    cfg.Moderation.AdminsExempt,
	}, chat)
	coordinator := moderation.NewCoordinator(store, classifier, machine, chat, sched, notices, moderation.Lifetimes{
		Notice:    cfg.Moderation.AutoRemove(),
		BanNotice: cfg.Moderation.BanNoticeLifetime(),
	})
	unban := moderation.NewUnbanWorkflow(store, machine, chat, notices)

	activity := stats.NewBuffer()
	runtime := lifecycle.NewRuntime(
		observability.NewServer(cfg.MetricsAddr),
		sched,
		stats.NewScanner(store, activity, cfg.Stats.Interval),
	)
	if err := runtime.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithField("error", err.Error()).Warn("cant stop components")
		}
	}()

	processor := bot.NewUpdateProcessor(
		apologize(chat, cfg.DefaultLanguage),
		adminhandlers.NewAdmin(service, chat),
		modhandlers.NewModeration(service, coordinator, unban, activity),
	)

	announceStartup(ctx, chat, cfg)

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateConfig.AllowedUpdates = []string{"message", "callback_query"}
	updates, updateErrors := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

	g := &errgroup.Group{}
	g.SetLimit(cfg.Workers)
	defer func() { _ = g.Wait() }()

	log.WithField("workers", cfg.Workers).Info("processing updates")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-updateErrors:
			if !ok {
				return nil
			}
			return errors.WithMessage(err, "bot api get updates error")
		case update, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			g.Go(func() error {
				if err := processor.Process(ctx, &update); err != nil {
					log.WithField("error", err.Error()).WithField("update_id", update.UpdateID).Error("cant process update")
				}
				return nil
			})
		}
	}
}

func openStore(ctx context.Context, cfg *config.Config) (db.KV, error) {
	dir, err := infra.GetWorkDir(cfg.DotPath)
	if err != nil {
		return nil, err
	}

	var kv db.KV
	switch cfg.Store.Driver {
	case config.StoreBolt:
		kv, err = boltstore.Open(boltstore.Options{Path: filepath.Join(dir, cfg.Store.Name)})
	case config.StoreFile:
		kv, err = filestore.New(filepath.Join(dir, "data"))
	default:
		kv, err = sqlite.NewSQLiteClient(ctx, dir, cfg.Store.Name)
	}
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"driver": cfg.Store.Driver, "dir": dir}).Info("store opened")
	return kv, nil
}

func mediaKinds(names []string) []moderation.Kind {
	kinds := make([]moderation.Kind, 0, len(names))
	for _, name := range names {
		kinds = append(kinds, moderation.Kind(name))
	}
	return kinds
}

func apologize(chat *telegram.Operations, lang string) func(ctx context.Context, c *api.Chat) {
	return func(ctx context.Context, c *api.Chat) {
		if _, err := chat.SendNotice(ctx, telegram.Notice{
			ChatID: c.ID,
			Text:   i18n.Get("Sorry, something went wrong.", lang),
			Silent: true,
		}); err != nil {
			log.WithField("error", err.Error()).Debug("cant send apology")
		}
	}
}

func announceStartup(ctx context.Context, chat *telegram.Operations, cfg *config.Config) {
	if cfg.AdminChatID == 0 {
		return
	}
	if _, err := chat.SendNotice(ctx, telegram.Notice{
		ChatID: cfg.AdminChatID,
		Text:   i18n.Get("🤖 Moderation bot started.", cfg.DefaultLanguage),
		Silent: true,
	}); err != nil {
		log.WithField("error", err.Error()).Warn("cant send startup notice")
	}
}
