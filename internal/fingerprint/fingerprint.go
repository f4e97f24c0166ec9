// Package fingerprint derives stable dedup keys for chat messages.
//
// The UI tree gives us text only: no message IDs, no timestamps we can
// trust, no incremental updates. Two different people saying "ok" an hour
// apart must not collide, so the digest covers the message text plus the
// texts of the messages immediately preceding it in the same window.
package fingerprint

import (
	"encoding/binary"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ContextSize is the number of preceding messages mixed into a digest.
const ContextSize = 2

// Digest is a context-sensitive dedup key for one message instance.
type Digest uint64

// String renders the digest as a fixed-width hex key, suitable as a
// primary key in the processed store.
func (d Digest) String() string {
	buf := make([]byte, 0, 16)
	buf = strconv.AppendUint(buf, uint64(d), 16)
	for len(buf) < 16 {
		buf = append([]byte{'0'}, buf...)
	}
	return string(buf)
}

// Compute returns the digest for window[index], mixing in up to
// ContextSize preceding messages. index must be a valid position in
// window; context is clipped at the start of the window, so the first
// message of a window digests over its text alone.
//
// The digest is order-sensitive: identical text under different
// preceding context yields a different digest.
func Compute(window []string, index int) Digest {
	start := index - ContextSize
	if start < 0 {
		start = 0
	}

	h := xxhash.New()
	var lenBuf [8]byte
	for _, text := range window[start : index+1] {
		// Length-prefix each part so ("ab","c") and ("a","bc") differ.
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(text)))
		h.Write(lenBuf[:])
		h.WriteString(text)
	}
	return Digest(h.Sum64())
}
