// Package store provides the durable backends for the messaging module.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"arenadesk/internal/messaging"
	"arenadesk/pkg/platform/sentinel"
)

// Memory is an in-memory messaging.Store for tests and local development.
// State only commits when the whole create succeeds, mirroring the
// transactional behavior of the Postgres store.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	messages map[int64]messaging.Message
	links    map[int64][]int64

	// FailLink, when set, injects a failure while linking the given
	// recipient. Used to verify that a partial failure leaves nothing
	// behind.
	FailLink func(recipientID int64) error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		messages: make(map[int64]messaging.Message),
		links:    make(map[int64][]int64),
	}
}

func (m *Memory) CreateMessageWithRecipients(_ context.Context, senderID int64, text string, recipientIDs []int64) (messaging.Message, []int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Stage everything first; commit only when all links succeeded.
	msg := messaging.Message{
		ID:        m.nextID + 1,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	linked := make([]int64, 0, len(recipientIDs))
	for _, rid := range recipientIDs {
		if m.FailLink != nil {
			if err := m.FailLink(rid); err != nil {
				return messaging.Message{}, nil, fmt.Errorf("link recipient %d: %w", rid, err)
			}
		}
		linked = append(linked, rid)
	}

	m.nextID++
	m.messages[msg.ID] = msg
	m.links[msg.ID] = linked
	return msg, linked, nil
}

func (m *Memory) GetMessage(_ context.Context, id int64) (messaging.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return messaging.Message{}, fmt.Errorf("message %d: %w", id, sentinel.ErrNotFound)
	}
	return msg, nil
}

func (m *Memory) ListRecipients(_ context.Context, messageID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.messages[messageID]; !ok {
		return nil, fmt.Errorf("message %d: %w", messageID, sentinel.ErrNotFound)
	}
	out := make([]int64, len(m.links[messageID]))
	copy(out, m.links[messageID])
	return out, nil
}
