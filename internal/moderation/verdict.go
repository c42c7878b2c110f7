package moderation

type Reason string

const (
	ReasonRestrictedFully        Reason = "restricted_fully"
	ReasonRestrictedLinks        Reason = "restricted_links"
	ReasonVoiceMessage           Reason = "voice_message"
	ReasonVideoNote              Reason = "video_note"
	ReasonForwardBlocked         Reason = "forward_blocked"
	ReasonForwardedBannedContent Reason = "forwarded_banned_content"
	ReasonBannedPhraseInText     Reason = "banned_phrase_in_text"
	ReasonBannedPhraseInEntity   Reason = "banned_phrase_in_entity"
)

// Verdict is the classification of one message. The zero value means no
// violation.
type Verdict struct {
	Reason Reason
}

var NoViolation = Verdict{}

func Violation(reason Reason) Verdict {
	return Verdict{Reason: reason}
}

func (v Verdict) IsViolation() bool {
	return v.Reason != ""
}

// IsHardBlock reports whether the message is removed without counting a
// warning.
func (v Verdict) IsHardBlock() bool {
	return v.Reason == ReasonRestrictedFully || v.Reason == ReasonForwardBlocked
}

func (v Verdict) String() string {
	if !v.IsViolation() {
		return "none"
	}
	return string(v.Reason)
}
