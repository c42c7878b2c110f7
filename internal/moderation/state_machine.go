package moderation

import (
	"fmt"
	"time"

	errs "github.com/iamwavecut/modbot/internal/errors"
	"github.com/iamwavecut/modbot/internal/registry"
)

type ConsequenceKind string

const (
	ConsequenceWarn ConsequenceKind = "warn"
	ConsequenceBan  ConsequenceKind = "ban"
)

// Consequence is what a counted violation leads to. Count is the warning
// count after the violation.
type Consequence struct {
	Kind     ConsequenceKind
	Count    int
	Max      int
	Duration time.Duration
	Until    time.Time
}

func (c Consequence) String() string {
	if c.Kind == ConsequenceBan {
		return fmt.Sprintf("ban until %s (%d/%d)", c.Until.Format(time.RFC3339), c.Count, c.Max)
	}
	return fmt.Sprintf("warn %d/%d", c.Count, c.Max)
}

// StateMachine owns the escalation from warnings to a timed ban. A user is
// clean at zero warnings, warned below maxWarnings and banned from then on
// until an admin lifts the ban.
type StateMachine struct {
	maxWarnings int
	banDuration time.Duration
	now         func() time.Time
}

func NewStateMachine(maxWarnings int, banDuration time.Duration, now func() time.Time) *StateMachine {
	if now == nil {
		now = time.Now
	}
	return &StateMachine{
		maxWarnings: maxWarnings,
		banDuration: banDuration,
		now:         now,
	}
}

func (sm *StateMachine) MaxWarnings() int {
	return sm.maxWarnings
}

func (sm *StateMachine) BanDuration() time.Duration {
	return sm.banDuration
}

// OnViolation adds one warning and, once the limit is reached, records a
// ban. Both changes land in r together. A repeat offence while the ban entry
// is still present overwrites its expiry.
func (sm *StateMachine) OnViolation(r *registry.Registry, uid registry.UserID, reason Reason) Consequence {
	count := r.IncrementWarning(uid)
	if count < sm.maxWarnings {
		return Consequence{Kind: ConsequenceWarn, Count: count, Max: sm.maxWarnings}
	}
	until := sm.now().Add(sm.banDuration)
	r.SetBanned(uid, until)
	return Consequence{
		Kind:     ConsequenceBan,
		Count:    count,
		Max:      sm.maxWarnings,
		Duration: sm.banDuration,
		Until:    until,
	}
}

// OnUnban clears the ban entry and warnings of uid. It fails with
// ErrNotAuthorized or ErrNotBanned without touching r.
func (sm *StateMachine) OnUnban(r *registry.Registry, uid registry.UserID, requesterIsAdmin bool) error {
	if !requesterIsAdmin {
		return errs.ErrNotAuthorized
	}
	if !r.ClearBanned(uid) {
		return errs.ErrNotBanned
	}
	r.ResetWarning(uid)
	return nil
}
