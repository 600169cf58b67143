package messaging

import "context"

// Store is the durable-store contract behind the fan-out engine. The engine
// is a thin policy layer (dedup + cap) in front of the atomic create
// primitive.
type Store interface {
	// CreateMessageWithRecipients persists the message and all recipient
	// links in one atomic unit and returns the linked recipient ids. If any
	// link cannot be inserted the whole unit fails; no message ever survives
	// with a partial recipient set. An empty recipient list still creates
	// the message.
	CreateMessageWithRecipients(ctx context.Context, senderID int64, text string, recipientIDs []int64) (Message, []int64, error)

	// GetMessage returns a stored message or sentinel.ErrNotFound.
	GetMessage(ctx context.Context, id int64) (Message, error)

	// ListRecipients returns the recipient ids linked to a message.
	ListRecipients(ctx context.Context, messageID int64) ([]int64, error)
}
