// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/masterchat/internal/model"
)

const listTitleWidth = 32

// formatConversationList renders conversations as a numbered table. Numbers
// are 1-based positions usable with /open and /delete.
func formatConversationList(convs []*model.Conversation, activeID string, st Styles, now time.Time) string {
	if len(convs) == 0 {
		return st.Dim.Render("No conversations yet. Type a message to start one.") + "\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s %s\n",
		PadWidth("#", 4),
		PadWidth("Title", listTitleWidth+2),
		PadWidth("Msgs", 6),
		"Updated")
	sb.WriteString(st.Separator(60))
	sb.WriteString("\n")

	for i, conv := range convs {
		marker := " "
		if conv.ID == activeID {
			marker = "*"
		}
		title := PadWidth(TruncateWidth(conv.Title, listTitleWidth), listTitleWidth+2)
		if conv.ID == activeID {
			title = st.Active.Render(title)
		}
		fmt.Fprintf(&sb, "%s %s %s %s\n",
			PadWidth(fmt.Sprintf("%d%s", i+1, marker), 4),
			title,
			PadWidth(fmt.Sprintf("%d", len(conv.Messages)), 6),
			st.Dim.Render(formatTimeAgo(conv.UpdatedAt, now)))
	}
	return sb.String()
}

// formatTimeAgo formats a time as a relative duration.
func formatTimeAgo(t, now time.Time) string {
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return plural(int(duration.Minutes()), "minute")
	case duration < 24*time.Hour:
		return plural(int(duration.Hours()), "hour")
	case duration < 7*24*time.Hour:
		return plural(int(duration.Hours()/24), "day")
	case duration < 30*24*time.Hour:
		return plural(int(duration.Hours()/24/7), "week")
	default:
		return t.Format("2006-01-02")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
