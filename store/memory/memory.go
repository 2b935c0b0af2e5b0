package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smallnest/campusrag/store"
)

// MemoryMessageStore keeps messages in process memory.
type MemoryMessageStore struct {
	mu            sync.RWMutex
	conversations map[store.ConversationKey][]*store.Message
	now           func() time.Time
}

// NewMemoryMessageStore creates an empty in-memory message store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{
		conversations: make(map[store.ConversationKey][]*store.Message),
		now:           time.Now,
	}
}

// Append stores a copy of msg.
func (m *MemoryMessageStore) Append(_ context.Context, msg *store.Message) error {
	if err := store.Prepare(msg, m.now()); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := msg.Key()
	for _, existing := range m.conversations[key] {
		if existing.ID == msg.ID {
			return fmt.Errorf("%w: %s", store.ErrExists, msg.ID)
		}
	}
	stored := *msg
	msgs := append(m.conversations[key], &stored)
	// Stable keeps insertion order for equal timestamps.
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	m.conversations[key] = msgs
	return nil
}

// Get returns a copy of one message.
func (m *MemoryMessageStore) Get(_ context.Context, key store.ConversationKey, id string) (*store.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, msg := range m.conversations[key] {
		if msg.ID == id {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// Recent returns copies of the last n messages in ascending order.
func (m *MemoryMessageStore) Recent(_ context.Context, key store.ConversationKey, n int) ([]*store.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.conversations[key]
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	result := make([]*store.Message, 0, len(msgs))
	for _, msg := range msgs {
		cp := *msg
		result = append(result, &cp)
	}
	return result, nil
}

// SetSummary sets the summary of a message that has none.
func (m *MemoryMessageStore) SetSummary(_ context.Context, key store.ConversationKey, id, summary string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.conversations[key] {
		if msg.ID != id {
			continue
		}
		if msg.Summary != "" {
			return false, nil
		}
		msg.Summary = summary
		return true, nil
	}
	return false, store.ErrNotFound
}

// Close is a no-op.
func (m *MemoryMessageStore) Close() error {
	return nil
}
