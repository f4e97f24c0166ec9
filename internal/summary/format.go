package summary

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// formatMessages flattens archive rows into LLM-readable lines and counts
// messages per sender. The bot's own messages are excluded.
func formatMessages(msgs []ArchiveMessage) (text string, count int, senders map[string]int) {
	senders = make(map[string]int)
	if len(msgs) == 0 {
		return "（无消息记录）", 0, senders
	}

	var lines []string
	for _, m := range msgs {
		if m.IsSelf {
			continue
		}
		timeStr := m.Time
		if len(timeStr) >= 19 {
			timeStr = timeStr[11:19]
		}
		sender := m.SenderName
		if sender == "" {
			sender = "未知"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", timeStr, sender, m.Content))
		senders[sender]++
	}
	return strings.Join(lines, "\n"), len(lines), senders
}

var rankIcons = []string{"🥇", "🥈", "🥉", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

// generateRanking renders a top-10 sender leaderboard in Markdown.
func generateRanking(senders map[string]int) string {
	if len(senders) == 0 {
		return ""
	}

	type entry struct {
		name  string
		count int
	}
	sorted := make([]entry, 0, len(senders))
	for name, count := range senders {
		sorted = append(sorted, entry{name, count})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].name < sorted[j].name
	})
	if len(sorted) > 10 {
		sorted = sorted[:10]
	}

	lines := []string{"## 📊 发言排行榜", ""}
	for i, e := range sorted {
		icon := fmt.Sprintf("#%d", i+1)
		if i < len(rankIcons) {
			icon = rankIcons[i]
		}
		lines = append(lines, fmt.Sprintf("- %s **%s** - %d 条消息", icon, e.name, e.count))
	}
	return strings.Join(lines, "\n")
}

// markdownToHTML covers the subset the summary prompt produces: headings,
// bullet lists, bold, paragraphs.
func markdownToHTML(md string) string {
	var out []string
	inList := false

	closeList := func() {
		if inList {
			out = append(out, "</ul>")
			inList = false
		}
	}

	for _, line := range strings.Split(md, "\n") {
		stripped := strings.TrimSpace(line)
		switch {
		case stripped == "" || stripped == "---":
			closeList()
		case strings.HasPrefix(stripped, "### "):
			closeList()
			out = append(out, "<h3>"+inline(stripped[4:])+"</h3>")
		case strings.HasPrefix(stripped, "## "):
			closeList()
			out = append(out, "<h2>"+inline(stripped[3:])+"</h2>")
		case strings.HasPrefix(stripped, "# "):
			closeList()
			out = append(out, "<h1>"+inline(stripped[2:])+"</h1>")
		case strings.HasPrefix(stripped, "- ") || strings.HasPrefix(stripped, "* "):
			if !inList {
				out = append(out, "<ul>")
				inList = true
			}
			out = append(out, "<li>"+inline(stripped[2:])+"</li>")
		default:
			closeList()
			out = append(out, "<p>"+inline(stripped)+"</p>")
		}
	}
	closeList()
	return strings.Join(out, "\n")
}

// inline escapes text and converts **bold** spans.
func inline(s string) string {
	s = html.EscapeString(s)
	for {
		start := strings.Index(s, "**")
		if start < 0 {
			break
		}
		end := strings.Index(s[start+2:], "**")
		if end < 0 {
			break
		}
		end += start + 2
		s = s[:start] + "<strong>" + s[start+2:end] + "</strong>" + s[end+2:]
	}
	return s
}
