// Package wechat defines the contracts to the chat client's UI: reading
// the visible message window and sending replies. The platform automation
// behind them is deliberately thin and replaceable; everything above this
// package treats the UI as an ordered, ID-less window of recent text.
package wechat

import (
	"context"
	"errors"
)

// ErrUnsupported is returned on platforms without a native adapter.
var ErrUnsupported = errors.New("wechat: no adapter for this platform")

// Source reads the most recent visible messages of the active chat.
// The window is re-read from scratch on every call: no IDs, no ordering
// guarantee across calls, and the same message may appear in many windows.
type Source interface {
	// FetchRecent returns the visible messages, oldest first.
	FetchRecent(ctx context.Context) ([]string, error)
}

// Sender pushes replies into the active chat. Both methods manipulate one
// shared UI surface and must only be called while holding the action gate.
type Sender interface {
	SendText(ctx context.Context, text string) error
	SendImage(ctx context.Context, path string) error
}

// Group is one reachable conversation target.
type Group struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Adapter is the full UI automation surface.
type Adapter interface {
	Source
	Sender

	// FindChat switches the client to the named conversation.
	FindChat(ctx context.Context, name string) error

	// ListGroups enumerates reachable conversation targets.
	ListGroups(ctx context.Context) ([]Group, error)

	// SendTextTo delivers text to a specific target without switching the
	// watched chat. Gate rules apply.
	SendTextTo(ctx context.Context, group, text string) error
}
