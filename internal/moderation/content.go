package moderation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/modbot/internal/bot"
)

type (
	// Kind is the single content kind of a message.
	Kind string

	EntityKind string

	OriginKind string
)

const (
	KindText      Kind = "text"
	KindPhoto     Kind = "photo"
	KindVideo     Kind = "video"
	KindDocument  Kind = "document"
	KindAudio     Kind = "audio"
	KindAnimation Kind = "animation"
	KindSticker   Kind = "sticker"
	KindVoice     Kind = "voice"
	KindVideoNote Kind = "video_note"
	KindOther     Kind = "other"
)

const (
	EntityURL      EntityKind = "url"
	EntityTextLink EntityKind = "text_link"
)

const (
	OriginUser       OriginKind = "user"
	OriginHiddenUser OriginKind = "hidden_user"
	OriginChat       OriginKind = "chat"
	OriginChannel    OriginKind = "channel"
)

type (
	// Entity is a link span. Offset and Length count UTF-16 code units of
	// the text, or of the caption when InCaption is set.
	Entity struct {
		Kind      EntityKind
		Offset    int
		Length    int
		URL       string
		InCaption bool
	}

	ForwardOrigin struct {
		Kind   OriginKind
		ChatID int64
		Title  string
	}

	// Message is the part of an incoming chat message that moderation looks at.
	Message struct {
		ChatID     int64
		MessageID  int
		ThreadID   int
		SenderID   int64
		SenderName string
		Date       time.Time

		Kind       Kind
		Text       string
		Caption    string
		FileName   string
		Entities   []Entity
		ButtonURLs []string
		Forward    *ForwardOrigin
	}
)

// FromAPI converts a platform message. It reports false for messages
// without a human sender, such as channel posts.
func FromAPI(msg *api.Message) (Message, bool) {
	if msg == nil || msg.From == nil {
		return Message{}, false
	}

	m := Message{
		ChatID:     msg.Chat.ID,
		MessageID:  msg.MessageID,
		ThreadID:   msg.MessageThreadID,
		SenderID:   msg.From.ID,
		SenderName: bot.GetFullName(msg.From),
		Date:       time.Unix(int64(msg.Date), 0),
		Kind:       kindOf(msg),
		Text:       msg.Text,
		Caption:    msg.Caption,
	}
	if msg.Document != nil {
		m.FileName = msg.Document.FileName
	}
	m.Entities = append(m.Entities, linkEntities(msg.Entities, false)...)
	m.Entities = append(m.Entities, linkEntities(msg.CaptionEntities, true)...)

	if msg.ReplyMarkup != nil {
		for _, row := range msg.ReplyMarkup.InlineKeyboard {
			for _, button := range row {
				if button.URL != nil && *button.URL != "" {
					m.ButtonURLs = append(m.ButtonURLs, *button.URL)
				}
			}
		}
	}

	if origin := msg.ForwardOrigin; origin != nil {
		fwd := &ForwardOrigin{Kind: OriginKind(fmt.Sprint(origin.Type))}
		switch {
		case origin.Chat != nil:
			fwd.ChatID, fwd.Title = origin.Chat.ID, origin.Chat.Title
		case origin.SenderChat != nil:
			fwd.ChatID, fwd.Title = origin.SenderChat.ID, origin.SenderChat.Title
		}
		m.Forward = fwd
	}
	return m, true
}

func kindOf(msg *api.Message) Kind {
	switch bot.GetMessageType(msg) {
	case bot.MessageTypeText:
		return KindText
	case bot.MessageTypePhoto:
		return KindPhoto
	case bot.MessageTypeVideo:
		return KindVideo
	case bot.MessageTypeDocument:
		return KindDocument
	case bot.MessageTypeAudio:
		return KindAudio
	case bot.MessageTypeAnimation:
		return KindAnimation
	case bot.MessageTypeSticker:
		return KindSticker
	case bot.MessageTypeVoice:
		return KindVoice
	case bot.MessageTypeVideoNote:
		return KindVideoNote
	default:
		return KindOther
	}
}

func linkEntities(entities []api.MessageEntity, inCaption bool) []Entity {
	var res []Entity
	for _, e := range entities {
		kind := EntityKind(e.Type)
		if kind != EntityURL && kind != EntityTextLink {
			continue
		}
		res = append(res, Entity{
			Kind:      kind,
			Offset:    e.Offset,
			Length:    e.Length,
			URL:       e.URL,
			InCaption: inCaption,
		})
	}
	return res
}

// Mention renders the sender as a Markdown user link.
func (m Message) Mention() string {
	return Mention(m.SenderID, m.SenderName)
}

func Mention(userID int64, name string) string {
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("id%d", userID)
	}
	return fmt.Sprintf("[%s](tg://user?id=%d)", api.EscapeText(api.ModeMarkdown, name), userID)
}

// Summary is the loggable content of the message.
func (m Message) Summary() string {
	switch {
	case m.Text != "":
		return m.Text
	case m.Caption != "":
		return m.Caption
	}
	return "[" + string(m.Kind) + "]"
}

// LinkTarget returns the URL an entity points to: the covered span of text
// for url entities and the explicit URL for text links.
func (m Message) LinkTarget(e Entity) string {
	if e.Kind == EntityTextLink {
		return e.URL
	}
	source := m.Text
	if e.InCaption {
		source = m.Caption
	}
	return utf16Span(source, e.Offset, e.Length)
}

func utf16Span(s string, offset, length int) string {
	units := utf16.Encode([]rune(s))
	if offset < 0 || length <= 0 || offset >= len(units) {
		return ""
	}
	end := offset + length
	if end > len(units) {
		end = len(units)
	}
	return string(utf16.Decode(units[offset:end]))
}
