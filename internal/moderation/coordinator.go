package moderation

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iamwavecut/modbot/internal/infrastructure/telegram"
	"github.com/iamwavecut/modbot/internal/observability"
	"github.com/iamwavecut/modbot/internal/registry"
	"github.com/iamwavecut/modbot/internal/scheduler"
)

type (
	ChatClient interface {
		AdminChecker
		DeleteMessage(ctx context.Context, chatID int64, messageID int) error
		SendNotice(ctx context.Context, n telegram.Notice) (int, error)
		RestrictMember(ctx context.Context, chatID int64, userID int64, until time.Time) error
		ListAdmins(ctx context.Context, chatID int64) ([]string, error)
	}

	Scheduler interface {
		After(delay time.Duration, task func(ctx context.Context)) scheduler.Handle
	}

	// Lifetimes sets how long notices stay in the chat.
	Lifetimes struct {
		Notice    time.Duration
		BanNotice time.Duration
	}

	// Outcome describes what Enforce did with one message.
	Outcome struct {
		Verdict     Verdict
		Consequence *Consequence
		Deleted     bool
		NoticeID    int
	}

	Coordinator struct {
		store      *registry.Store
		classifier *Classifier
		machine    *StateMachine
		chat       ChatClient
		scheduler  Scheduler
		notices    Notices
		lifetimes  Lifetimes
		logger     *log.Entry
	}
)

func NewCoordinator(store *registry.Store, classifier *Classifier, machine *StateMachine, chat ChatClient, sched Scheduler, notices Notices, lifetimes Lifetimes) *Coordinator {
	return &Coordinator{
		store:      store,
		classifier: classifier,
		machine:    machine,
		chat:       chat,
		scheduler:  sched,
		notices:    notices,
		lifetimes:  lifetimes,
		logger:     log.WithField("object", "Coordinator"),
	}
}

// Enforce classifies m and applies the result. The warning and ban are
// persisted in one registry update; deletion, notices and the chat
// restriction are best effort and only logged on failure.
func (c *Coordinator) Enforce(ctx context.Context, m Message) Outcome {
	ctx, span := observability.Tracer().Start(ctx, "moderation.enforce")
	defer span.End()
	observe := observability.StartEnforcement()

	verdict := c.classifier.Classify(ctx, m, c.store.Snapshot(ctx))
	out := Outcome{Verdict: verdict}
	if !verdict.IsViolation() {
		observe("clean")
		return out
	}

	span.SetAttributes(
		attribute.String("reason", string(verdict.Reason)),
		attribute.Int64("chat_id", m.ChatID),
		attribute.Int64("user_id", m.SenderID),
	)
	observability.RecordVerdict(string(verdict.Reason))
	entry := c.logger.WithFields(log.Fields{
		"chat_id":   m.ChatID,
		"user_id":   m.SenderID,
		"user_name": m.SenderName,
		"content":   m.Summary(),
		"reason":    verdict.Reason,
	})
	entry.Info("deleting message")

	if err := c.chat.DeleteMessage(ctx, m.ChatID, m.MessageID); err != nil {
		entry.WithField("error", err.Error()).Warn("cant delete message")
	} else {
		out.Deleted = true
	}

	if verdict.IsHardBlock() {
		observability.RecordConsequence("block")
		out.NoticeID = c.notify(ctx, entry, telegram.Notice{
			ChatID:   m.ChatID,
			ThreadID: m.ThreadID,
			Text:     c.notices.HardBlock(m, verdict.Reason),
			Silent:   true,
		}, c.lifetimes.Notice)
		observe("block")
		return out
	}

	var consequence Consequence
	uid := registry.UserIDOf(m.SenderID)
	_ = c.store.Update(ctx, func(r *registry.Registry) error {
		consequence = c.machine.OnViolation(r, uid, verdict.Reason)
		return nil
	})
	out.Consequence = &consequence
	entry = entry.WithField("consequence", consequence.String())
	observability.RecordConsequence(string(consequence.Kind))

	switch consequence.Kind {
	case ConsequenceBan:
		entry.Warn("banning user")
		if err := c.chat.RestrictMember(ctx, m.ChatID, m.SenderID, consequence.Until); err != nil {
			entry.WithField("error", err.Error()).Error("cant restrict user")
		}
		admins, err := c.chat.ListAdmins(ctx, m.ChatID)
		if err != nil {
			entry.WithField("error", err.Error()).Warn("cant list admins")
		}
		out.NoticeID = c.notify(ctx, entry, telegram.Notice{
			ChatID:   m.ChatID,
			ThreadID: m.ThreadID,
			Text:     c.notices.Ban(m, verdict.Reason, consequence, admins),
			Buttons:  c.notices.UnbanButtons(m.SenderID),
		}, c.lifetimes.BanNotice)
	default:
		out.NoticeID = c.notify(ctx, entry, telegram.Notice{
			ChatID:   m.ChatID,
			ThreadID: m.ThreadID,
			Text:     c.notices.Warn(m, verdict.Reason, consequence),
			Silent:   true,
		}, c.lifetimes.Notice)
	}
	observe(string(consequence.Kind))
	return out
}

func (c *Coordinator) notify(ctx context.Context, entry *log.Entry, n telegram.Notice, lifetime time.Duration) int {
	id, err := c.chat.SendNotice(ctx, n)
	if err != nil {
		entry.WithField("error", err.Error()).Warn("cant send notice")
		return 0
	}
	c.scheduleRemoval(n.ChatID, id, lifetime)
	return id
}

func (c *Coordinator) scheduleRemoval(chatID int64, messageID int, lifetime time.Duration) {
	if c.scheduler == nil || lifetime <= 0 {
		return
	}
	handle := c.scheduler.After(lifetime, func(ctx context.Context) {
		if err := c.chat.DeleteMessage(ctx, chatID, messageID); err != nil {
			c.logger.WithField("error", err.Error()).Debug("notice already gone")
		}
	})
	if handle == "" {
		c.logger.WithFields(log.Fields{
			"chat_id":    chatID,
			"message_id": messageID,
		}).Warn("notice removal not scheduled, notice stays in chat")
	}
}
