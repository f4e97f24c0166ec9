// Package store defines the storage contracts for chatclaw.
// In standalone mode both stores are sqlite-backed; managed mode keeps the
// processed set in Postgres so dedup state survives host moves.
package store

import (
	"context"
	"time"
)

// Stores is the top-level container for all storage backends.
type Stores struct {
	Processed ProcessedStore
	Tasks     TaskStore
}

// Close closes every backend that is present.
func (s *Stores) Close() error {
	var first error
	if s.Processed != nil {
		if err := s.Processed.Close(); err != nil {
			first = err
		}
	}
	if s.Tasks != nil {
		if err := s.Tasks.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ProcessedStore is the durable set of message fingerprints already acted
// upon. Entries are write-once; Add on an existing key is a no-op, never an
// error. The detector is the only writer.
type ProcessedStore interface {
	// Contains reports whether key was already processed. An error means
	// the answer is unknown; callers must abort the cycle rather than
	// guess in either direction.
	Contains(ctx context.Context, key string) (bool, error)

	// Add records key as processed. Idempotent.
	Add(ctx context.Context, key string) error

	// Prune drops the oldest entries once the set exceeds max, keeping
	// roughly max/2. Retention only; dedup correctness just needs entries
	// to outlive the visible window.
	Prune(ctx context.Context, max int) error

	Close() error
}

// Message types for scheduled tasks.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// ScheduledTask is a cron-driven outbound message.
type ScheduledTask struct {
	ID          int64
	Name        string
	CronExpr    string
	Message     string
	MessageType string // "text" or "image"
	ImageBase64 string
	Targets     []string // group names
	Enabled     bool
	CreatedAt   time.Time
}

// TaskStore persists scheduled tasks.
type TaskStore interface {
	Create(ctx context.Context, task *ScheduledTask) (int64, error)
	Get(ctx context.Context, id int64) (*ScheduledTask, error)
	List(ctx context.Context) ([]*ScheduledTask, error)
	ListEnabled(ctx context.Context) ([]*ScheduledTask, error)
	Update(ctx context.Context, task *ScheduledTask) error
	Delete(ctx context.Context, id int64) error
	Close() error
}
