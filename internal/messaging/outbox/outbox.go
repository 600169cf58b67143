// Package outbox publishes stored broadcasts to the broker. The fan-out
// transaction writes an entry next to the message; the worker here drains
// unpublished entries and hands them to Kafka, so delivery never races the
// database commit.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is one unpublished broadcast event.
type Entry struct {
	ID        uuid.UUID
	MessageID int64
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Store reads and settles outbox entries.
type Store interface {
	// NextBatch returns up to limit unpublished entries, oldest first.
	NextBatch(ctx context.Context, limit int) ([]Entry, error)

	// MarkPublished settles entries after the broker accepted them.
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Producer hands one event to the broker. Implementations must not report
// success until the broker acknowledged the write.
type Producer interface {
	Produce(ctx context.Context, key string, value []byte) error
}
