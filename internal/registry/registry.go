// Package registry holds the persisted moderation document: per-user warnings,
// bans, restriction sets, activity stats and the scan watermark.
package registry

import (
	"sort"
	"strconv"
	"time"
)

type (
	UserID   string
	Category string
)

const (
	CategoryFullyRestricted Category = "fully_restricted"
	CategoryNoLinks         Category = "no_links"
	CategoryNoForwards      Category = "no_forwards"
)

var Categories = []Category{CategoryFullyRestricted, CategoryNoLinks, CategoryNoForwards}

func UserIDOf(id int64) UserID {
	return UserID(strconv.FormatInt(id, 10))
}

func (u UserID) Int64() (int64, error) {
	return strconv.ParseInt(string(u), 10, 64)
}

type (
	Registry struct {
		Warnings        map[UserID]int        `json:"warnings"`
		Banned          map[UserID]Timestamp  `json:"banned"`
		RestrictedUsers RestrictedUsers       `json:"restricted_users"`
		UserStats       map[UserID]*UserStats `json:"user_stats,omitempty"`
		ParsingState    *ParsingState         `json:"parsing_state,omitempty"`
	}

	RestrictedUsers struct {
		NoLinks         map[UserID]Restriction `json:"no_links"`
		FullyRestricted map[UserID]Restriction `json:"fully_restricted"`
		NoForwards      map[UserID]Restriction `json:"no_forwards"`
	}

	// Restriction keeps banned_at for link and forward restrictions and
	// restricted_at for full restrictions.
	Restriction struct {
		Name         string     `json:"name"`
		BannedAt     *Timestamp `json:"banned_at,omitempty"`
		RestrictedAt *Timestamp `json:"restricted_at,omitempty"`
	}

	UserStats struct {
		Name          string         `json:"name"`
		TotalMessages int            `json:"total_messages"`
		Activity      map[string]int `json:"activity"`
		FirstSeen     Timestamp      `json:"first_seen"`
		LastSeen      Timestamp      `json:"last_seen"`
	}

	ParsingState struct {
		LastParsedDate Timestamp `json:"last_parsed_date"`
		LastParsedID   int       `json:"last_parsed_id"`
	}

	Entry struct {
		UserID UserID
		Restriction
	}
)

func (r Restriction) Since() time.Time {
	switch {
	case r.BannedAt != nil:
		return r.BannedAt.Time
	case r.RestrictedAt != nil:
		return r.RestrictedAt.Time
	}
	return time.Time{}
}

// New returns a structurally complete empty registry.
func New() *Registry {
	r := &Registry{}
	r.Backfill()
	return r
}

// Backfill creates every missing section and reports whether anything was
// missing.
func (r *Registry) Backfill() bool {
	changed := false
	if r.Warnings == nil {
		r.Warnings = make(map[UserID]int)
		changed = true
	}
	if r.Banned == nil {
		r.Banned = make(map[UserID]Timestamp)
		changed = true
	}
	if r.RestrictedUsers.NoLinks == nil {
		r.RestrictedUsers.NoLinks = make(map[UserID]Restriction)
		changed = true
	}
	if r.RestrictedUsers.FullyRestricted == nil {
		r.RestrictedUsers.FullyRestricted = make(map[UserID]Restriction)
		changed = true
	}
	if r.RestrictedUsers.NoForwards == nil {
		r.RestrictedUsers.NoForwards = make(map[UserID]Restriction)
		changed = true
	}
	for id, w := range r.Warnings {
		if w < 0 {
			r.Warnings[id] = 0
			changed = true
		}
	}
	return changed
}

func (r *Registry) set(c Category) map[UserID]Restriction {
	switch c {
	case CategoryFullyRestricted:
		return r.RestrictedUsers.FullyRestricted
	case CategoryNoLinks:
		return r.RestrictedUsers.NoLinks
	case CategoryNoForwards:
		return r.RestrictedUsers.NoForwards
	}
	return nil
}

func (r *Registry) IsRestricted(uid UserID, c Category) bool {
	_, ok := r.set(c)[uid]
	return ok
}

// SetRestricted adds or overwrites the entry of uid in category c.
func (r *Registry) SetRestricted(uid UserID, c Category, name string, at time.Time) {
	set := r.set(c)
	if set == nil {
		return
	}
	ts := At(at)
	entry := Restriction{Name: name}
	if c == CategoryFullyRestricted {
		entry.RestrictedAt = &ts
	} else {
		entry.BannedAt = &ts
	}
	set[uid] = entry
}

// ClearRestricted removes uid from category c and reports whether an entry
// was there.
func (r *Registry) ClearRestricted(uid UserID, c Category) bool {
	set := r.set(c)
	if _, ok := set[uid]; !ok {
		return false
	}
	delete(set, uid)
	return true
}

// Restricted lists category c ordered by restriction time, then user ID.
func (r *Registry) Restricted(c Category) []Entry {
	set := r.set(c)
	entries := make([]Entry, 0, len(set))
	for uid, restriction := range set {
		entries = append(entries, Entry{UserID: uid, Restriction: restriction})
	}
	sort.Slice(entries, func(i, j int) bool {
		ti, tj := entries[i].Since(), entries[j].Since()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return entries[i].UserID < entries[j].UserID
	})
	return entries
}

func (r *Registry) Warning(uid UserID) int {
	return r.Warnings[uid]
}

func (r *Registry) IncrementWarning(uid UserID) int {
	r.Warnings[uid]++
	return r.Warnings[uid]
}

func (r *Registry) ResetWarning(uid UserID) {
	if _, ok := r.Warnings[uid]; ok {
		r.Warnings[uid] = 0
	}
}

func (r *Registry) SetBanned(uid UserID, until time.Time) {
	r.Banned[uid] = At(until)
}

func (r *Registry) ClearBanned(uid UserID) bool {
	if _, ok := r.Banned[uid]; !ok {
		return false
	}
	delete(r.Banned, uid)
	return true
}

func (r *Registry) BannedUntil(uid UserID) (time.Time, bool) {
	ts, ok := r.Banned[uid]
	return ts.Time, ok
}
