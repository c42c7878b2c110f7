package moderation

import (
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"

	"github.com/iamwavecut/modbot/internal/i18n"
	"github.com/iamwavecut/modbot/internal/infrastructure/telegram"
)

const unbanCallbackPrefix = "unban_"

// Notices renders the Markdown texts posted after moderation actions.
type Notices struct {
	lang string
}

func NewNotices(lang string) Notices {
	return Notices{lang: lang}
}

func (n Notices) Lang() string {
	return n.lang
}

func (n Notices) ReasonText(reason Reason) string {
	switch reason {
	case ReasonRestrictedFully:
		return i18n.Get("you are not allowed to post in this chat", n.lang)
	case ReasonRestrictedLinks:
		return i18n.Get("you are not allowed to post links", n.lang)
	case ReasonVoiceMessage:
		return i18n.Get("voice messages are not allowed", n.lang)
	case ReasonVideoNote:
		return i18n.Get("video messages are not allowed", n.lang)
	case ReasonForwardBlocked:
		return i18n.Get("you are not allowed to forward from channels", n.lang)
	case ReasonForwardedBannedContent:
		return i18n.Get("forwarded content contains a banned link", n.lang)
	case ReasonBannedPhraseInText, ReasonBannedPhraseInEntity:
		return i18n.Get("banned link", n.lang)
	}
	return string(reason)
}

func (n Notices) HardBlock(m Message, reason Reason) string {
	text := tool.ExecTemplate(i18n.Get("⛔ {{ .user }}, your message was removed: {{ .reason }}.", n.lang), map[string]any{
		"user":   m.Mention(),
		"reason": n.ReasonText(reason),
	})
	if reason == ReasonForwardBlocked && m.Forward != nil && m.Forward.Title != "" {
		text += "\n" + tool.ExecTemplate(i18n.Get("Source: {{ .source }}", n.lang), map[string]any{
			"source": escape(m.Forward.Title),
		})
	}
	return text
}

func (n Notices) Warn(m Message, reason Reason, c Consequence) string {
	return tool.ExecTemplate(i18n.Get("⚠️ {{ .user }}, your message was removed. Reason: {{ .reason }}.\nWarning {{ .count }}/{{ .max }}. You will be banned after {{ .max }} warnings.", n.lang), map[string]any{
		"user":   m.Mention(),
		"reason": n.ReasonText(reason),
		"count":  c.Count,
		"max":    c.Max,
	})
}

func (n Notices) Ban(m Message, reason Reason, c Consequence, admins []string) string {
	text := tool.ExecTemplate(i18n.Get("⚠️ {{ .user }} is banned for {{ .minutes }} min for breaking the rules ({{ .reason }}).", n.lang), map[string]any{
		"user":    m.Mention(),
		"minutes": int(c.Duration / time.Minute),
		"reason":  n.ReasonText(reason),
	})
	if len(admins) > 0 {
		escaped := make([]string, 0, len(admins))
		for _, admin := range admins {
			escaped = append(escaped, escape(admin))
		}
		text += "\n\n" + i18n.Get("Admins who can lift the ban:", n.lang) + " " + strings.Join(escaped, " ")
	}
	return text
}

func (n Notices) UnbanButtons(userID int64) [][]telegram.Button {
	return [][]telegram.Button{{
		{Text: "🔓 " + i18n.Get("Unban", n.lang), Data: UnbanCallbackData(userID)},
	}}
}

func (n Notices) Unbanned(userID int64, name string, adminName string) string {
	return tool.ExecTemplate(i18n.Get("✅ {{ .user }} was unbanned by {{ .admin }}.", n.lang), map[string]any{
		"user":  Mention(userID, name),
		"admin": escape(adminName),
	})
}

func (n Notices) UnbanDone() string {
	return i18n.Get("User unbanned", n.lang)
}

func (n Notices) NotAuthorized() string {
	return i18n.Get("Only admins can do this", n.lang)
}

func (n Notices) NotBanned() string {
	return i18n.Get("This user is not banned", n.lang)
}

func UnbanCallbackData(userID int64) string {
	return unbanCallbackPrefix + strconv.FormatInt(userID, 10)
}

// ParseUnbanCallbackData extracts the target user from unban button data.
func ParseUnbanCallbackData(data string) (int64, bool) {
	raw, ok := strings.CutPrefix(data, unbanCallbackPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func escape(s string) string {
	return api.EscapeText(api.ModeMarkdown, s)
}
