package moderation

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/modbot/internal/registry"
)

// linkMarkers are substrings that make lower-cased text count as a link.
var linkMarkers = []string{"http://", "https://", "www.", "t.me/", "vk.com"}

type (
	AdminChecker interface {
		IsAdmin(ctx context.Context, chatID int64, userID int64) (bool, error)
	}

	Rules struct {
		// BannedPhrases are matched case-insensitively as substrings.
		BannedPhrases []string
		// RestrictedMedia lists the kinds removed for non-admins. Only voice
		// and video_note are recognised.
		RestrictedMedia []Kind
		// AdminsExempt skips phrase and forwarded content checks for admins.
		AdminsExempt bool
	}

	Classifier struct {
		phrases      []string
		media        map[Kind]Reason
		adminsExempt bool
		admins       AdminChecker
		logger       *log.Entry
	}
)

var mediaReasons = map[Kind]Reason{
	KindVoice:     ReasonVoiceMessage,
	KindVideoNote: ReasonVideoNote,
}

func NewClassifier(rules Rules, admins AdminChecker) *Classifier {
	c := &Classifier{
		media:        make(map[Kind]Reason),
		adminsExempt: rules.AdminsExempt,
		admins:       admins,
		logger:       log.WithField("object", "Classifier"),
	}
	for _, phrase := range rules.BannedPhrases {
		if phrase = strings.ToLower(strings.TrimSpace(phrase)); phrase != "" {
			c.phrases = append(c.phrases, phrase)
		}
	}
	for _, kind := range rules.RestrictedMedia {
		reason, ok := mediaReasons[kind]
		if !ok {
			c.logger.WithField("kind", kind).Warn("unsupported restricted media kind, ignored")
			continue
		}
		c.media[kind] = reason
	}
	return c
}

// Classify returns the first rule the message breaks. Checks run in a fixed
// order and stop at the first match. The admin lookup happens at most once
// and only when a rule needs it.
func (c *Classifier) Classify(ctx context.Context, m Message, r *registry.Registry) Verdict {
	uid := registry.UserIDOf(m.SenderID)

	if r.IsRestricted(uid, registry.CategoryFullyRestricted) {
		return Violation(ReasonRestrictedFully)
	}
	if r.IsRestricted(uid, registry.CategoryNoLinks) && HasLink(m) {
		return Violation(ReasonRestrictedLinks)
	}

	admin := c.adminLookup(ctx, m)

	if reason, restricted := c.media[m.Kind]; restricted && !admin() {
		return Violation(reason)
	}

	if m.Forward != nil && m.Forward.Kind == OriginChannel {
		if r.IsRestricted(uid, registry.CategoryNoForwards) {
			return Violation(ReasonForwardBlocked)
		}
		if c.containsPhrase(m.Text, m.Caption, m.FileName) && !c.exempt(admin) {
			return Violation(ReasonForwardedBannedContent)
		}
	}

	if c.containsPhrase(m.Text, m.Caption) && !c.exempt(admin) {
		return Violation(ReasonBannedPhraseInText)
	}

	for _, e := range m.Entities {
		if c.containsPhrase(m.LinkTarget(e)) && !c.exempt(admin) {
			return Violation(ReasonBannedPhraseInEntity)
		}
	}

	return NoViolation
}

func (c *Classifier) exempt(admin func() bool) bool {
	return c.adminsExempt && admin()
}

func (c *Classifier) adminLookup(ctx context.Context, m Message) func() bool {
	var (
		checked bool
		isAdmin bool
	)
	return func() bool {
		if checked {
			return isAdmin
		}
		checked = true
		if c.admins == nil {
			return false
		}
		var err error
		isAdmin, err = c.admins.IsAdmin(ctx, m.ChatID, m.SenderID)
		if err != nil {
			c.logger.WithField("error", err.Error()).WithField("user_id", m.SenderID).Warn("cant check admin status, treating as member")
			isAdmin = false
		}
		return isAdmin
	}
}

func (c *Classifier) containsPhrase(texts ...string) bool {
	for _, text := range texts {
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)
		for _, phrase := range c.phrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
	}
	return false
}

// HasLink reports whether the message carries any link: a marker in the
// text or caption, a link entity or a URL button.
func HasLink(m Message) bool {
	if len(m.Entities) > 0 || len(m.ButtonURLs) > 0 {
		return true
	}
	content := strings.ToLower(m.Text + "\n" + m.Caption)
	for _, marker := range linkMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}
