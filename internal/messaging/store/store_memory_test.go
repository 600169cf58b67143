package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenadesk/pkg/platform/sentinel"
)

func TestMemory_CreateAndRead(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	msg, linked, err := mem.CreateMessageWithRecipients(ctx, 7, "hello", []int64{3, 5, 9})
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.ID)
	assert.Equal(t, []int64{3, 5, 9}, linked)
	assert.False(t, msg.CreatedAt.IsZero())

	got, err := mem.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, int64(7), got.SenderID)

	recipients, err := mem.ListRecipients(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5, 9}, recipients)
}

func TestMemory_UnknownMessage(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	_, err := mem.GetMessage(ctx, 404)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = mem.ListRecipients(ctx, 404)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemory_IDsAdvancePerCommit(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	m1, _, err := mem.CreateMessageWithRecipients(ctx, 1, "a", nil)
	require.NoError(t, err)
	m2, _, err := mem.CreateMessageWithRecipients(ctx, 1, "b", nil)
	require.NoError(t, err)
	assert.Equal(t, m1.ID+1, m2.ID)
}

func TestMemory_ConcurrentCreates(t *testing.T) {
	const writers = 20

	mem := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			_, _, err := mem.CreateMessageWithRecipients(ctx, n, "hi", []int64{n})
			assert.NoError(t, err)
		}(int64(i + 1))
	}
	wg.Wait()

	// Every create committed under its own id.
	for id := int64(1); id <= writers; id++ {
		_, err := mem.GetMessage(ctx, id)
		assert.NoError(t, err)
	}
}
