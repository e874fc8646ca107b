package bus

import "time"

// Event kinds published by the write sequencer.
const (
	// KindChanged is published after a mutation was applied to storage.
	// The snapshot repository reloads on it.
	KindChanged = "store.changed"
	// KindWriteFailed is published when a dequeued mutation could not be
	// applied. Nothing reloads on it; it exists for observability.
	KindWriteFailed = "store.write_failed"
)

// Event describes the outcome of a storage mutation.
type Event struct {
	Kind      string
	Op        string // insert, update, delete or clear
	MessageID string // empty for clear
	Timestamp time.Time
}
