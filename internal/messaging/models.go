// Package messaging implements the broadcast fan-out: one message, a
// bounded and deduplicated recipient set, persisted as a single atomic
// unit.
package messaging

import "time"

// Message is one broadcast. Immutable once created except for its recipient
// links, and those never shrink after creation.
type Message struct {
	ID        int64
	SenderID  int64
	Text      string
	CreatedAt time.Time
}

// Receipt reports what one broadcast actually did. Recipients is the exact
// set that was linked, so callers can compare it against their input;
// Truncated makes the fan-out cap explicit rather than inferred from
// lengths.
type Receipt struct {
	MessageID  int64
	Text       string
	Recipients []int64
	Truncated  bool
}
