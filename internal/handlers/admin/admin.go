package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/modbot/internal/bot"
	errs "github.com/iamwavecut/modbot/internal/errors"
	"github.com/iamwavecut/modbot/internal/i18n"
	"github.com/iamwavecut/modbot/internal/infrastructure/telegram"
	"github.com/iamwavecut/modbot/internal/moderation"
	"github.com/iamwavecut/modbot/internal/registry"
	"github.com/iamwavecut/modbot/internal/stats"
)

type (
	// Chat is what the command router needs from the chat client.
	Chat interface {
		IsAdmin(ctx context.Context, chatID int64, userID int64) (bool, error)
		SendNotice(ctx context.Context, n telegram.Notice) (int, error)
	}

	command struct {
		adminOnly bool
		run       func(ctx context.Context, msg *api.Message, lang string) string
	}

	target struct {
		id   int64
		name string
	}

	Admin struct {
		store    *registry.Store
		chat     Chat
		lang     string
		now      func() time.Time
		commands map[string]command
		logger   *log.Entry
	}
)

func NewAdmin(s bot.Service, chat Chat) *Admin {
	a := &Admin{
		store:  s.GetStore(),
		chat:   chat,
		lang:   s.GetConfig().DefaultLanguage,
		now:    time.Now,
		logger: log.WithField("object", "Admin"),
	}
	a.commands = map[string]command{
		"help":  {run: nil},
		"stats": {run: a.statsCommand},

		"restrict":        {adminOnly: true, run: a.restrictCommand(registry.CategoryFullyRestricted)},
		"unrestrict":      {adminOnly: true, run: a.unrestrictCommand},
		"restricted_list": {adminOnly: true, run: a.listCommand(registry.CategoryFullyRestricted)},

		"ban_links":         {adminOnly: true, run: a.restrictCommand(registry.CategoryNoLinks)},
		"allow_links":       {adminOnly: true, run: a.allowCommand(registry.CategoryNoLinks)},
		"link_restrictions": {adminOnly: true, run: a.listCommand(registry.CategoryNoLinks)},

		"ban_forwards":         {adminOnly: true, run: a.restrictCommand(registry.CategoryNoForwards)},
		"allow_forwards":       {adminOnly: true, run: a.allowCommand(registry.CategoryNoForwards)},
		"forward_restrictions": {adminOnly: true, run: a.listCommand(registry.CategoryNoForwards)},

		"reset_warnings": {adminOnly: true, run: a.resetWarningsCommand},
	}
	return a
}

// Handle runs known commands. Admin-only commands from members are ignored
// here and left to moderation.
func (a *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u.Message == nil || chat == nil || user == nil || !u.Message.IsCommand() {
		return true, nil
	}
	msg := u.Message
	name := msg.Command()
	cmd, ok := a.commands[name]
	if !ok {
		return true, nil
	}

	entry := a.logger.WithFields(log.Fields{
		"command": name,
		"chat_id": chat.ID,
		"user_id": user.ID,
	})

	isAdmin := false
	if cmd.adminOnly || name == "help" {
		var err error
		isAdmin, err = a.chat.IsAdmin(ctx, chat.ID, user.ID)
		if err != nil {
			entry.WithField("error", err.Error()).Warn("cant check admin status, treating as member")
			isAdmin = false
		}
	}
	if cmd.adminOnly && !isAdmin {
		entry.Debug("admin command from member")
		return true, nil
	}

	var reply string
	if name == "help" {
		reply = a.help(isAdmin)
	} else {
		reply = cmd.run(ctx, msg, a.lang)
	}
	entry.Info("command handled")

	if _, err := a.chat.SendNotice(ctx, telegram.Notice{
		ChatID:   chat.ID,
		ThreadID: msg.MessageThreadID,
		ReplyTo:  msg.MessageID,
		Text:     reply,
	}); err != nil {
		entry.WithField("error", err.Error()).Warn("cant reply to command")
	}
	return false, nil
}

func (a *Admin) help(isAdmin bool) string {
	if isAdmin {
		return i18n.Get("Admin commands:\n/restrict - forbid posting for the user\n/unrestrict - lift all restrictions\n/restricted_list - restricted users\n/ban_links, /allow_links, /link_restrictions - manage link restrictions\n/ban_forwards, /allow_forwards, /forward_restrictions - manage channel forward restrictions\n/reset_warnings - reset warnings\n/stats - chat activity\n\nReply to the user's message or pass a user ID.", a.lang)
	}
	return i18n.Get("Banned links, voice and video messages are removed here. Breaking the rules gets a warning, too many warnings get a temporary ban.\n/stats - chat activity", a.lang)
}

// resolveTarget picks the author of the replied-to message or a numeric ID
// argument.
func (a *Admin) resolveTarget(ctx context.Context, msg *api.Message) (target, error) {
	if reply := msg.ReplyToMessage; reply != nil && reply.From != nil {
		return target{id: reply.From.ID, name: bot.GetFullName(reply.From)}, nil
	}
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		return target{}, errs.ErrInvalidTarget
	}
	id, err := strconv.ParseInt(strings.Fields(arg)[0], 10, 64)
	if err != nil || id == 0 {
		return target{}, errs.ErrInvalidTarget
	}
	t := target{id: id}
	if st, ok := a.store.Snapshot(ctx).UserStats[registry.UserIDOf(id)]; ok && st != nil {
		t.name = st.Name
	}
	return t, nil
}

func (a *Admin) restrictCommand(c registry.Category) func(ctx context.Context, msg *api.Message, lang string) string {
	return func(ctx context.Context, msg *api.Message, lang string) string {
		t, err := a.resolveTarget(ctx, msg)
		if err != nil {
			return invalidTarget(lang)
		}
		now := a.now()
		_ = a.store.Update(ctx, func(r *registry.Registry) error {
			r.SetRestricted(registry.UserIDOf(t.id), c, t.name, now)
			return nil
		})
		return tool.ExecTemplate(restrictedText(c, lang), map[string]any{
			"user": moderation.Mention(t.id, t.name),
		})
	}
}

func (a *Admin) allowCommand(c registry.Category) func(ctx context.Context, msg *api.Message, lang string) string {
	return func(ctx context.Context, msg *api.Message, lang string) string {
		t, err := a.resolveTarget(ctx, msg)
		if err != nil {
			return invalidTarget(lang)
		}
		err = a.store.Update(ctx, func(r *registry.Registry) error {
			if !r.ClearRestricted(registry.UserIDOf(t.id), c) {
				return errs.ErrNotRestricted
			}
			return nil
		})
		data := map[string]any{"user": moderation.Mention(t.id, t.name)}
		if err != nil {
			return tool.ExecTemplate(i18n.Get("{{ .user }} has no such restriction.", lang), data)
		}
		return tool.ExecTemplate(allowedText(c, lang), data)
	}
}

func (a *Admin) unrestrictCommand(ctx context.Context, msg *api.Message, lang string) string {
	t, err := a.resolveTarget(ctx, msg)
	if err != nil {
		return invalidTarget(lang)
	}
	err = a.store.Update(ctx, func(r *registry.Registry) error {
		cleared := false
		for _, c := range registry.Categories {
			if r.ClearRestricted(registry.UserIDOf(t.id), c) {
				cleared = true
			}
		}
		if !cleared {
			return errs.ErrNotRestricted
		}
		return nil
	})
	data := map[string]any{"user": moderation.Mention(t.id, t.name)}
	if err != nil {
		return tool.ExecTemplate(i18n.Get("{{ .user }} has no restrictions.", lang), data)
	}
	return tool.ExecTemplate(i18n.Get("✅ All restrictions of {{ .user }} are lifted.", lang), data)
}

func (a *Admin) listCommand(c registry.Category) func(ctx context.Context, msg *api.Message, lang string) string {
	return func(ctx context.Context, msg *api.Message, lang string) string {
		entries := a.store.Snapshot(ctx).Restricted(c)
		if len(entries) == 0 {
			return i18n.Get("The list is empty.", lang)
		}
		var b strings.Builder
		b.WriteString(listTitle(c, lang))
		for _, e := range entries {
			id, _ := e.UserID.Int64()
			b.WriteString("\n• " + moderation.Mention(id, e.Name))
			if since := e.Since(); !since.IsZero() {
				b.WriteString(" (" + since.Format("2006-01-02 15:04") + ")")
			}
		}
		return b.String()
	}
}

func (a *Admin) resetWarningsCommand(ctx context.Context, msg *api.Message, lang string) string {
	t, err := a.resolveTarget(ctx, msg)
	if err != nil {
		return invalidTarget(lang)
	}
	_ = a.store.Update(ctx, func(r *registry.Registry) error {
		r.ResetWarning(registry.UserIDOf(t.id))
		return nil
	})
	return tool.ExecTemplate(i18n.Get("✅ Warnings of {{ .user }} are reset.", lang), map[string]any{
		"user": moderation.Mention(t.id, t.name),
	})
}

func (a *Admin) statsCommand(ctx context.Context, msg *api.Message, lang string) string {
	return stats.Summary(a.store.Snapshot(ctx), a.now(), lang)
}

func invalidTarget(lang string) string {
	return i18n.Get("Reply to the user's message or pass their numeric ID.", lang)
}

func restrictedText(c registry.Category, lang string) string {
	switch c {
	case registry.CategoryNoLinks:
		return i18n.Get("🔗 {{ .user }} can no longer post links.", lang)
	case registry.CategoryNoForwards:
		return i18n.Get("📢 {{ .user }} can no longer forward from channels.", lang)
	}
	return i18n.Get("🚫 {{ .user }} can no longer post in this chat.", lang)
}

func allowedText(c registry.Category, lang string) string {
	if c == registry.CategoryNoForwards {
		return i18n.Get("✅ {{ .user }} can forward from channels again.", lang)
	}
	return i18n.Get("✅ {{ .user }} can post links again.", lang)
}

func listTitle(c registry.Category, lang string) string {
	switch c {
	case registry.CategoryNoLinks:
		return i18n.Get("Users who cannot post links:", lang)
	case registry.CategoryNoForwards:
		return i18n.Get("Users who cannot forward from channels:", lang)
	}
	return i18n.Get("Restricted users:", lang)
}
