// Package trigger classifies new messages into actionable trigger events.
package trigger

import (
	"strings"

	"github.com/nextlevelbuilder/chatclaw/internal/commands"
)

// Kind is the action a classified message calls for.
type Kind int

const (
	// KindNone marks a message that triggers nothing. Its fingerprint is
	// still recorded so it is never re-evaluated.
	KindNone Kind = iota
	// KindImage replies with a random image (bare trigger keyword).
	KindImage
	// KindAI answers the text after the keyword via the AI provider.
	KindAI
	// KindHelp lists commands and forces a table refresh.
	KindHelp
	// KindCommand executes a dynamic command from the table.
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindAI:
		return "ai"
	case KindHelp:
		return "help"
	case KindCommand:
		return "command"
	default:
		return "none"
	}
}

// Event is one classified, actionable outcome derived from a new message.
// It is produced by the detector and consumed exactly once by the processor.
type Event struct {
	Text     string // message content after sender-prefix stripping
	Kind     Kind
	Question string // KindAI: text after the keyword
	Command  string // KindCommand: matched table key
	Args     string // KindCommand: trailing arguments
}

// stripSender removes a leading "name: " prefix. The UI tree flattens
// sender and content into one string for some message layouts; both the
// ASCII and fullwidth colon appear in the wild. Only the first delimiter
// found is split, matching the source layout.
func stripSender(text string) string {
	for _, delim := range []string{":", "："} {
		if i := strings.Index(text, delim); i >= 0 {
			return strings.TrimSpace(text[i+len(delim):])
		}
	}
	return text
}

// Classify maps message text to a trigger event using a fixed priority:
// help keyword, then trigger keyword (AI with a question, image without),
// then the dynamic command table, then none. imagesEnabled degrades the
// bare keyword to KindNone when no image provider is configured. table may
// be nil when no command source is configured.
func Classify(text, keyword string, table *commands.Table, imagesEnabled bool) Event {
	content := stripSender(text)
	ev := Event{Text: content}

	kw := strings.ToLower(keyword)
	trimmed := strings.TrimSpace(content)
	lower := strings.ToLower(trimmed)

	if lower == kw+" "+commands.HelpKeyword {
		ev.Kind = KindHelp
		return ev
	}

	if strings.HasPrefix(lower, kw) {
		after := strings.TrimSpace(trimmed[len(keyword):])
		if after != "" {
			ev.Kind = KindAI
			ev.Question = after
			return ev
		}
		if imagesEnabled {
			ev.Kind = KindImage
		}
		return ev
	}

	if table != nil {
		if key, args, ok := table.Match(content); ok {
			ev.Kind = KindCommand
			ev.Command = key
			ev.Args = args
			return ev
		}
	}

	return ev
}
