package telegram

import (
	"context"
	"fmt"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/iamwavecut/modbot/internal/observability"
	"github.com/iamwavecut/modbot/internal/policy/permissions"
)

type (
	// Button is an inline keyboard button carrying callback data.
	Button struct {
		Text string
		Data string
	}

	// Notice is a Markdown message posted into a chat, optionally as a reply
	// and with an inline keyboard.
	Notice struct {
		ChatID   int64
		ThreadID int
		ReplyTo  int
		Text     string
		Buttons  [][]Button
		Silent   bool
	}

	Options struct {
		Timeout time.Duration
		Rate    float64
		Burst   int
	}
)

// Operations is the chat client used by moderation. Every call waits for the
// outbound rate limiter, runs under Options.Timeout and is never retried.
type Operations struct {
	bot     *api.BotAPI
	limiter *rate.Limiter
	timeout time.Duration
}

func NewOperations(bot *api.BotAPI, opts Options) *Operations {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Operations{
		bot:     bot,
		limiter: rate.NewLimiter(limit, opts.Burst),
		timeout: opts.Timeout,
	}
}

// DeleteMessage deletes a message from a chat
func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return o.call(ctx, "delete_message", func() error {
		_, err := o.bot.Request(api.NewDeleteMessage(chatID, messageID))
		return err
	})
}

// SendNotice posts n and returns the new message ID.
func (o *Operations) SendNotice(ctx context.Context, n Notice) (int, error) {
	msg := api.NewMessage(n.ChatID, n.Text)
	msg.ParseMode = api.ModeMarkdown
	msg.MessageThreadID = n.ThreadID
	msg.DisableNotification = n.Silent
	msg.LinkPreviewOptions.IsDisabled = true
	if n.ReplyTo != 0 {
		msg.ReplyParameters = api.ReplyParameters{
			ChatID:                   n.ChatID,
			MessageID:                n.ReplyTo,
			AllowSendingWithoutReply: true,
		}
	}
	if len(n.Buttons) > 0 {
		msg.ReplyMarkup = keyboard(n.Buttons)
	}

	var sent api.Message
	err := o.call(ctx, "send_notice", func() error {
		var err error
		sent, err = o.bot.Send(msg)
		return err
	})
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditNotice replaces the text of a notice and drops its keyboard.
func (o *Operations) EditNotice(ctx context.Context, chatID int64, messageID int, text string) error {
	edit := api.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = api.ModeMarkdown
	return o.call(ctx, "edit_notice", func() error {
		_, err := o.bot.Request(edit)
		return err
	})
}

func (o *Operations) AnswerCallback(ctx context.Context, callbackID string, text string, alert bool) error {
	cb := api.NewCallback(callbackID, text)
	if alert {
		cb = api.NewCallbackWithAlert(callbackID, text)
	}
	return o.call(ctx, "answer_callback", func() error {
		_, err := o.bot.Request(cb)
		return err
	})
}

// RestrictMember takes every send permission away until the given moment.
func (o *Operations) RestrictMember(ctx context.Context, chatID int64, userID int64, until time.Time) error {
	return o.call(ctx, "restrict_member", func() error {
		_, err := o.bot.Request(api.RestrictChatMemberConfig{
			ChatMemberConfig: api.ChatMemberConfig{
				ChatConfig: api.ChatConfig{ChatID: chatID},
				UserID:     userID,
			},
			UntilDate:   until.Unix(),
			Permissions: sendPermissions(false),
		})
		return errors.WithMessage(err, "cant restrict")
	})
}

// RestoreMember gives back every send permission.
func (o *Operations) RestoreMember(ctx context.Context, chatID int64, userID int64) error {
	return o.call(ctx, "restore_member", func() error {
		_, err := o.bot.Request(api.RestrictChatMemberConfig{
			ChatMemberConfig: api.ChatMemberConfig{
				ChatConfig: api.ChatConfig{ChatID: chatID},
				UserID:     userID,
			},
			Permissions: sendPermissions(true),
		})
		return errors.WithMessage(err, "cant unrestrict")
	})
}

// IsAdmin asks the platform for the member's current status. It is never
// cached.
func (o *Operations) IsAdmin(ctx context.Context, chatID int64, userID int64) (bool, error) {
	var member api.ChatMember
	err := o.call(ctx, "get_chat_member", func() error {
		var err error
		member, err = o.bot.GetChatMember(api.GetChatMemberConfig{
			ChatConfigWithUser: api.ChatConfigWithUser{
				ChatConfig: api.ChatConfig{ChatID: chatID},
				UserID:     userID,
			},
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return permissions.IsAdmin(&member), nil
}

// ListAdmins returns the @-handles of the chat's human administrators.
func (o *Operations) ListAdmins(ctx context.Context, chatID int64) ([]string, error) {
	var members []api.ChatMember
	err := o.call(ctx, "get_chat_administrators", func() error {
		var err error
		members, err = o.bot.GetChatAdministrators(api.ChatAdministratorsConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	res := make([]string, 0, len(members))
	for _, member := range members {
		if name := permissions.Username(member); name != "" {
			res = append(res, name)
		}
	}
	return res, nil
}

func (o *Operations) call(ctx context.Context, operation string, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if err := o.limiter.Wait(ctx); err != nil {
		observability.RecordChatClientError(operation)
		return fmt.Errorf("%s: rate limit: %w", operation, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case <-ctx.Done():
		observability.RecordChatClientError(operation)
		return fmt.Errorf("%s: %w", operation, ctx.Err())
	case err := <-done:
		if err != nil {
			observability.RecordChatClientError(operation)
			return fmt.Errorf("%s: %w", operation, err)
		}
		return nil
	}
}

func keyboard(rows [][]Button) api.InlineKeyboardMarkup {
	markupRows := make([][]api.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]api.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, api.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		markupRows = append(markupRows, api.NewInlineKeyboardRow(buttons...))
	}
	return api.NewInlineKeyboardMarkup(markupRows...)
}

func sendPermissions(allowed bool) *api.ChatPermissions {
	return &api.ChatPermissions{
		CanSendMessages:       allowed,
		CanSendAudios:         allowed,
		CanSendDocuments:      allowed,
		CanSendPhotos:         allowed,
		CanSendVideos:         allowed,
		CanSendVideoNotes:     allowed,
		CanSendVoiceNotes:     allowed,
		CanSendPolls:          allowed,
		CanSendOtherMessages:  allowed,
		CanAddWebPagePreviews: allowed,
	}
}
