package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/modbot/internal/infra"
)

const (
	UpdateTimeout = 5 * time.Minute
)

type (
	UpdateProcessor struct {
		updateHandlers []Handler
		onFailure      func(ctx context.Context, chat *api.Chat)
		now            func() time.Time
		logger         *log.Entry
	}

	MessageType string
)

const (
	MessageTypeText              MessageType = "text"
	MessageTypeAnimation         MessageType = "animation"
	MessageTypeAudio             MessageType = "audio"
	MessageTypeContact           MessageType = "contact"
	MessageTypeDice              MessageType = "dice"
	MessageTypeDocument          MessageType = "document"
	MessageTypeGame              MessageType = "game"
	MessageTypeInvoice           MessageType = "invoice"
	MessageTypeLocation          MessageType = "location"
	MessageTypePhoto             MessageType = "photo"
	MessageTypePoll              MessageType = "poll"
	MessageTypeSticker           MessageType = "sticker"
	MessageTypeStory             MessageType = "story"
	MessageTypeVenue             MessageType = "venue"
	MessageTypeVideo             MessageType = "video"
	MessageTypeVideoNote         MessageType = "video_note"
	MessageTypeVoice             MessageType = "voice"
)

// NewUpdateProcessor runs handlers in the given order for every update.
// onFailure is called with the update's chat after a handler panicked or
// returned an error. Cancellation does not count as a failure.
func NewUpdateProcessor(onFailure func(ctx context.Context, chat *api.Chat), handlers ...Handler) *UpdateProcessor {
	enabledHandlers := make([]Handler, 0, len(handlers))
	for _, h := range handlers {
		if h == nil {
			log.Warn("skipping nil handler")
			continue
		}
		enabledHandlers = append(enabledHandlers, h)
	}

	return &UpdateProcessor{
		updateHandlers: enabledHandlers,
		onFailure:      onFailure,
		now:            time.Now,
		logger:         log.WithField("object", "UpdateProcessor"),
	}
}

// Process passes u through the handler chain until one of them stops it.
// A panic inside a handler is recovered here and never reaches the caller.
func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) (err error) {
	if u == nil {
		return errors.New("update is nil")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var updateTime time.Time
	switch {
	case u.Message != nil:
		updateTime = time.Unix(int64(u.Message.Date), 0)
	case u.EditedMessage != nil:
		updateTime = time.Unix(int64(u.EditedMessage.Date), 0)
	default:
		updateTime = up.now()
	}

	if age := up.now().Sub(updateTime); age > UpdateTimeout {
		up.logger.WithFields(log.Fields{
			"update_time": updateTime,
			"age":         age,
		}).Debug("Skipping outdated update")
		return nil
	}

	chat := u.FromChat()
	user := u.SentFrom()

	defer infra.Recover(fmt.Sprintf("update_%d", u.UpdateID), func(p any) {
		err = errors.Errorf("handler panic: %v", p)
		up.fail(ctx, chat)
	})

	for _, handler := range up.updateHandlers {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		proceed, err := handler.Handle(ctx, u, chat, user)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				up.fail(ctx, chat)
			}
			return errors.WithMessage(err, "handling error")
		}
		if !proceed {
			up.logger.Trace("not proceeding")
			return nil
		}
	}
	return nil
}

func (up *UpdateProcessor) fail(ctx context.Context, chat *api.Chat) {
	if up.onFailure != nil && chat != nil {
		up.onFailure(ctx, chat)
	}
}

func GetUpdatesChans(ctx context.Context, bot *api.BotAPI, config api.UpdateConfig) (api.UpdatesChannel, chan error) {
	ch := make(chan api.Update, bot.Buffer)
	chErr := make(chan error, 1)

	go func() {
		defer close(ch)
		defer close(chErr)
		for {
			select {
			case <-ctx.Done():
				chErr <- ctx.Err()
				return
			default:
				updates, err := bot.GetUpdates(config)
				if err != nil {
					chErr <- err
					return
				}

				for _, update := range updates {
					if update.UpdateID >= config.Offset {
						config.Offset = update.UpdateID + 1
						select {
						case ch <- update:
						case <-ctx.Done():
							chErr <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return ch, chErr
}

func GetUN(user *api.User) string {
	if user == nil {
		return ""
	}
	userName := user.UserName
	if len(userName) == 0 {
		userName = user.FirstName + " " + user.LastName
		userName = strings.TrimSpace(userName)
	}
	return userName
}

func GetFullName(user *api.User) string {
	if user == nil {
		return ""
	}
	fullName := user.FirstName + " " + user.LastName
	fullName = strings.TrimSpace(fullName)
	if len(fullName) == 0 {
		fullName = user.UserName
	}
	return fullName
}

func GetMessageType(msg *api.Message) MessageType {
	switch {
	case msg.Animation != nil:
		return MessageTypeAnimation
	case msg.Audio != nil:
		return MessageTypeAudio
	case msg.Contact != nil:
		return MessageTypeContact
	case msg.Dice != nil:
		return MessageTypeDice
	case msg.Document != nil:
		return MessageTypeDocument
	case msg.Game != nil:
		return MessageTypeGame
	case msg.Invoice != nil:
		return MessageTypeInvoice
	case msg.Location != nil:
		return MessageTypeLocation
	case msg.Photo != nil:
		return MessageTypePhoto
	case msg.Poll != nil:
		return MessageTypePoll
	case msg.Sticker != nil:
		return MessageTypeSticker
	case msg.Story != nil:
		return MessageTypeStory
	case msg.Venue != nil:
		return MessageTypeVenue
	case msg.Video != nil:
		return MessageTypeVideo
	case msg.VideoNote != nil:
		return MessageTypeVideoNote
	case msg.Voice != nil:
		return MessageTypeVoice
	default:
		return MessageTypeText
	}
}
