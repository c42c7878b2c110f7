package handlers

import (
	"context"
	"errors"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/modbot/internal/bot"
	"github.com/iamwavecut/modbot/internal/config"
	errs "github.com/iamwavecut/modbot/internal/errors"
	"github.com/iamwavecut/modbot/internal/moderation"
	"github.com/iamwavecut/modbot/internal/stats"
)

type (
	Enforcer interface {
		Enforce(ctx context.Context, m moderation.Message) moderation.Outcome
	}

	Unbanner interface {
		Unban(ctx context.Context, req moderation.UnbanRequest) error
	}

	ActivityRecorder interface {
		Record(a stats.Activity)
	}

	// Moderation feeds group messages to the enforcement pipeline and unban
	// button presses to the unban workflow.
	Moderation struct {
		cfg      *config.Config
		enforcer Enforcer
		unbanner Unbanner
		activity ActivityRecorder
		logger   *log.Entry
	}
)

func NewModeration(s bot.Service, enforcer Enforcer, unbanner Unbanner, activity ActivityRecorder) *Moderation {
	return &Moderation{
		cfg:      s.GetConfig(),
		enforcer: enforcer,
		unbanner: unbanner,
		activity: activity,
		logger:   log.WithField("object", "Moderation"),
	}
}

func (m *Moderation) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	switch {
	case u.CallbackQuery != nil:
		return m.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		return m.handleMessage(ctx, u.Message, chat)
	}
	return true, nil
}

func (m *Moderation) handleMessage(ctx context.Context, msg *api.Message, chat *api.Chat) (bool, error) {
	if chat == nil || !(chat.IsGroup() || chat.IsSuperGroup()) {
		return true, nil
	}
	content, ok := moderation.FromAPI(msg)
	if !ok {
		return true, nil
	}

	if m.activity != nil && m.cfg.WatchesChat(chat.ID) {
		m.activity.Record(stats.Activity{
			UserID:    content.SenderID,
			Name:      content.SenderName,
			MessageID: content.MessageID,
			At:        content.Date,
		})
	}

	out := m.enforcer.Enforce(ctx, content)
	return !out.Verdict.IsViolation(), nil
}

func (m *Moderation) handleCallback(ctx context.Context, cb *api.CallbackQuery) (bool, error) {
	targetID, ok := moderation.ParseUnbanCallbackData(cb.Data)
	if !ok || cb.Message == nil || cb.From == nil {
		return true, nil
	}

	requester := bot.GetUN(cb.From)
	if cb.From.UserName != "" {
		requester = "@" + requester
	}
	err := m.unbanner.Unban(ctx, moderation.UnbanRequest{
		CallbackID:    cb.ID,
		ChatID:        cb.Message.Chat.ID,
		NoticeID:      cb.Message.MessageID,
		RequesterID:   cb.From.ID,
		RequesterName: requester,
		TargetID:      targetID,
	})
	switch {
	case errors.Is(err, errs.ErrNotAuthorized), errors.Is(err, errs.ErrNotBanned):
		m.logger.WithFields(log.Fields{
			"requester_id": cb.From.ID,
			"target_id":    targetID,
			"result":       err.Error(),
		}).Info("unban rejected")
		return false, nil
	case err != nil:
		return false, err
	}
	return false, nil
}
