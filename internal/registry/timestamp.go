package registry

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
)

// Zone-less layouts are read in local time.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is written as RFC 3339. Reading also accepts ISO values without
// a zone. Anything unreadable decodes to the zero time so a single bad field
// never invalidates the document.
type Timestamp struct {
	time.Time
}

func At(t time.Time) Timestamp {
	return Timestamp{Time: t.Truncate(time.Second)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		log.WithField("object", "Timestamp").WithField("value", string(data)).Warn("not a timestamp string, using zero time")
		return nil
	}
	if raw == "" {
		return nil
	}
	parsed, ok := parseTimestamp(raw)
	if !ok {
		log.WithField("object", "Timestamp").WithField("value", raw).Warn("unreadable timestamp, using zero time")
		return nil
	}
	t.Time = parsed
	return nil
}

func parseTimestamp(raw string) (time.Time, bool) {
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return parsed, true
	}
	for _, layout := range localLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
