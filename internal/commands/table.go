package commands

import (
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Command is one remote-described handler: a match key plus a human
// description shown in the help listing. A key ending in a space marks a
// prefix command that takes arguments ("weather " matches "weather tokyo");
// all other keys match exactly.
type Command struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// Table is an immutable snapshot of the remote command list. It is replaced
// wholesale on refresh; readers hold either the old or the new table, never
// a mix.
type Table struct {
	commands []Command
	// keys sorted longest first so "ss" wins over "s" on prefix matches.
	sortedKeys []string
}

// NewTable builds a snapshot from a remote command list. The help command
// itself is filtered out; it is classified ahead of the table and refreshing
// it through the table would recurse.
func NewTable(cmds []Command) *Table {
	kept := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		if strings.EqualFold(strings.TrimSpace(c.Key), HelpKeyword) {
			continue
		}
		kept = append(kept, c)
	}

	keys := make([]string, len(kept))
	for i, c := range kept {
		keys[i] = c.Key
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	return &Table{commands: kept, sortedKeys: keys}
}

// Len returns the number of commands in the snapshot.
func (t *Table) Len() int { return len(t.commands) }

// Match resolves text against the table. Keys ending in a space are prefix
// commands and require non-empty trailing arguments; the prefix needs no
// separating space, so "sstokyo" matches key "ss " with args "tokyo".
// Plain keys must match the whole text. Longest keys are tried first.
// Matching is case-insensitive but the returned args keep the caller's
// casing.
func (t *Table) Match(text string) (key, args string, ok bool) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	for _, k := range t.sortedKeys {
		kl := strings.ToLower(k)
		if strings.HasSuffix(kl, " ") {
			prefix := strings.TrimRight(kl, " ")
			if strings.HasPrefix(lower, prefix) {
				rest := strings.TrimSpace(trimmed[len(prefix):])
				if rest != "" {
					return prefix, rest, true
				}
			}
			continue
		}
		if lower == kl {
			return kl, "", true
		}
	}
	return "", "", false
}

// HelpText renders the command listing with keys aligned in one column.
// Wide (CJK) keys are measured by display width, not byte length.
func (t *Table) HelpText() string {
	if len(t.commands) == 0 {
		return "命令列表为空，请检查网络连接"
	}

	keyWidth := 0
	for _, c := range t.commands {
		if w := runewidth.StringWidth(strings.TrimSpace(c.Key)); w > keyWidth {
			keyWidth = w
		}
	}

	var b strings.Builder
	b.WriteString("可用命令：")
	for _, c := range t.commands {
		b.WriteString("\n  ")
		b.WriteString(runewidth.FillRight(strings.TrimSpace(c.Key), keyWidth))
		b.WriteString("  ")
		b.WriteString(c.Description)
	}
	return b.String()
}
