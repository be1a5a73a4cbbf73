package audit

import (
	"fmt"
	"strings"
)

// FormatText renders entries as one aligned line each.
func FormatText(entries []Entry) string {
	if len(entries) == 0 {
		return "No entries found.\n"
	}

	var b strings.Builder
	allowed := 0
	for _, e := range entries {
		if e.Decision == "allow" {
			allowed++
		}
		b.WriteString(fmt.Sprintf("%-24s %-5s %-13s %-16s %-30s %s\n",
			e.Timestamp,
			strings.ToUpper(e.Decision),
			e.Action,
			truncate(orDash(e.Committer), 16),
			truncate(e.Update.Ref, 30),
			e.Reason,
		))
	}
	b.WriteString(fmt.Sprintf("%d entries: %d allowed, %d denied\n", len(entries), allowed, len(entries)-allowed))
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
