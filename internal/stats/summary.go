package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iamwavecut/tool"

	"github.com/iamwavecut/modbot/internal/i18n"
	"github.com/iamwavecut/modbot/internal/registry"
)

const (
	summaryDays = 7
	topMembers  = 10
)

type memberTotal struct {
	name  string
	total int
}

// Summary renders the /stats reply: overall totals, per-day counts for the
// last week and the most active members.
func Summary(r *registry.Registry, now time.Time, lang string) string {
	if len(r.UserStats) == 0 {
		return i18n.Get("No activity recorded yet.", lang)
	}

	var (
		total   int
		members = make([]memberTotal, 0, len(r.UserStats))
		perDay  = make(map[string]int, summaryDays)
	)
	for uid, st := range r.UserStats {
		if st == nil {
			continue
		}
		total += st.TotalMessages
		name := st.Name
		if name == "" {
			name = "id" + string(uid)
		}
		members = append(members, memberTotal{name: name, total: st.TotalMessages})
		for day, count := range st.Activity {
			perDay[day] += count
		}
	}

	var b strings.Builder
	b.WriteString(tool.ExecTemplate(i18n.Get("📊 Messages: {{ .total }}, members: {{ .members }}", lang), map[string]any{
		"total":   total,
		"members": len(members),
	}))

	b.WriteString("\n\n" + i18n.Get("Last 7 days:", lang))
	for i := summaryDays - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).Format(dayLayout)
		fmt.Fprintf(&b, "\n%s: %d", day, perDay[day])
	}

	sort.Slice(members, func(i, j int) bool {
		if members[i].total != members[j].total {
			return members[i].total > members[j].total
		}
		return members[i].name < members[j].name
	})
	if len(members) > topMembers {
		members = members[:topMembers]
	}
	b.WriteString("\n\n" + i18n.Get("Most active:", lang))
	for i, m := range members {
		fmt.Fprintf(&b, "\n%d. %s: %d", i+1, m.name, m.total)
	}
	return b.String()
}
