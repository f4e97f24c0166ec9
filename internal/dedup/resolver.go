// Package dedup turns a re-read-from-scratch message window into the
// suffix of genuinely new messages.
package dedup

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/chatclaw/internal/fingerprint"
	"github.com/nextlevelbuilder/chatclaw/internal/store"
)

// Message is one entry of a poll window, paired with its position and
// dedup digest so callers never recompute either.
type Message struct {
	Text   string
	Index  int
	Digest fingerprint.Digest
}

// Resolve returns the messages in window that lie strictly after the
// boundary: the most recent position whose fingerprint the store already
// contains, found by scanning from the end of the window backward. The
// result is a contiguous, position-increasing suffix of window.
//
// If nothing in the window is known, the whole window is new. If the last
// message is known, nothing is new. Messages at or before the boundary are
// settled even if individually unseen: the window can shift faster than
// the poll cadence, and anything behind the newest processed mark is
// skipped rather than revisited out of order.
//
// A store error aborts resolution; guessing "not processed" would risk a
// duplicate reply and guessing "processed" a silent drop.
func Resolve(ctx context.Context, window []string, st store.ProcessedStore) ([]Message, error) {
	boundary := -1
	for i := len(window) - 1; i >= 0; i-- {
		seen, err := st.Contains(ctx, fingerprint.Compute(window, i).String())
		if err != nil {
			return nil, fmt.Errorf("query processed set at position %d: %w", i, err)
		}
		if seen {
			boundary = i
			break
		}
	}

	fresh := make([]Message, 0, len(window)-boundary-1)
	for i := boundary + 1; i < len(window); i++ {
		fresh = append(fresh, Message{
			Text:   window[i],
			Index:  i,
			Digest: fingerprint.Compute(window, i),
		})
	}
	return fresh, nil
}
