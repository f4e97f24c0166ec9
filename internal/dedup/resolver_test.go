package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/nextlevelbuilder/chatclaw/internal/fingerprint"
)

// memStore is an in-memory ProcessedStore for resolver tests.
type memStore struct {
	keys map[string]bool
	err  error
}

func newMemStore() *memStore { return &memStore{keys: make(map[string]bool)} }

func (m *memStore) Contains(_ context.Context, key string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.keys[key], nil
}

func (m *memStore) Add(_ context.Context, key string) error {
	if m.err != nil {
		return m.err
	}
	m.keys[key] = true
	return nil
}

func (m *memStore) Prune(context.Context, int) error { return nil }
func (m *memStore) Close() error                     { return nil }

// markProcessed records window[index] the way the detector would.
func (m *memStore) markProcessed(window []string, index int) {
	m.keys[fingerprint.Compute(window, index).String()] = true
}

func texts(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestResolve_AllNew(t *testing.T) {
	st := newMemStore()
	window := []string{"A", "B", "C"}

	got, err := Resolve(context.Background(), window, st)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 new messages, got %d", len(got))
	}
	for i, m := range got {
		if m.Index != i || m.Text != window[i] {
			t.Errorf("position %d: got {%q,%d}", i, m.Text, m.Index)
		}
	}
}

func TestResolve_SuffixAfterBoundary(t *testing.T) {
	// Window [A(processed), B(new), C(new)] → [B, C] in order.
	st := newMemStore()
	window := []string{"A", "B", "C"}
	st.markProcessed(window, 0)

	got, err := Resolve(context.Background(), window, st)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"B", "C"}
	gotTexts := texts(got)
	if len(gotTexts) != len(want) {
		t.Fatalf("got %v, want %v", gotTexts, want)
	}
	for i := range want {
		if gotTexts[i] != want[i] {
			t.Fatalf("got %v, want %v", gotTexts, want)
		}
	}
}

func TestResolve_ProcessedTailSettlesEverything(t *testing.T) {
	// Window [A(new), B(new), C(processed)] → nothing new. A and B are
	// behind the boundary and are skipped, never revisited.
	st := newMemStore()
	window := []string{"A", "B", "C"}
	st.markProcessed(window, 2)

	got, err := Resolve(context.Background(), window, st)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", texts(got))
	}
}

func TestResolve_Idempotent(t *testing.T) {
	// Marking everything from the first pass makes the second pass empty.
	st := newMemStore()
	window := []string{"A", "B", "C", "D"}

	first, err := Resolve(context.Background(), window, st)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range first {
		if err := st.Add(context.Background(), m.Digest.String()); err != nil {
			t.Fatal(err)
		}
	}

	second, err := Resolve(context.Background(), window, st)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Errorf("second resolve on unchanged window returned %v", texts(second))
	}
}

func TestResolve_RepeatedTextDistinguishedByContext(t *testing.T) {
	// The same greeting appears twice; only the earlier instance was
	// processed. Its repeat later in the window has different context and
	// must surface as new.
	st := newMemStore()
	old := []string{"hi", "how are you", "awsl"}
	for i := range old {
		st.markProcessed(old, i)
	}

	window := []string{"how are you", "awsl", "something else", "awsl"}
	// Positions 0 and 1 carry the same (context, text) pairs as the tail
	// of the old window, so they are recognized as processed.
	got, err := Resolve(context.Background(), window, st)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"something else", "awsl"}
	gotTexts := texts(got)
	if len(gotTexts) != 2 || gotTexts[0] != want[0] || gotTexts[1] != want[1] {
		t.Errorf("got %v, want %v", gotTexts, want)
	}
}

func TestResolve_EmptyWindow(t *testing.T) {
	st := newMemStore()
	got, err := Resolve(context.Background(), nil, st)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("empty window must resolve to nothing, got %v", texts(got))
	}
}

func TestResolve_WindowSmallerThanContext(t *testing.T) {
	st := newMemStore()
	got, err := Resolve(context.Background(), []string{"only"}, st)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "only" {
		t.Errorf("got %v, want [only]", texts(got))
	}
}

func TestResolve_StoreErrorAborts(t *testing.T) {
	st := newMemStore()
	st.err = errors.New("database locked")

	_, err := Resolve(context.Background(), []string{"A", "B"}, st)
	if err == nil {
		t.Fatal("expected store error to abort resolution")
	}
}

func TestResolve_ReturnsContiguousSuffix(t *testing.T) {
	// Whatever the store contents, the result must be a contiguous,
	// position-increasing suffix of the window.
	st := newMemStore()
	window := []string{"w", "x", "y", "z"}
	st.markProcessed(window, 1)
	// Position 3 unprocessed, position 1 processed: boundary is 1.

	got, err := Resolve(context.Background(), window, st)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Fatal("expected new messages")
	}
	for i := 1; i < len(got); i++ {
		if got[i].Index != got[i-1].Index+1 {
			t.Fatalf("non-contiguous result: %+v", got)
		}
	}
	if got[len(got)-1].Index != len(window)-1 {
		t.Errorf("result must extend to the window end, got %+v", got)
	}
}
