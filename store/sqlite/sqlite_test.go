package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/smallnest/campusrag/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = store.ConversationKey{UserID: "u1", ConversationID: "c1"}

func newTestStore(t *testing.T) *SqliteMessageStore {
	t.Helper()
	s, err := NewSqliteMessageStore(SqliteOptions{Path: filepath.Join(t.TempDir(), "messages.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSqliteMessageStore(t *testing.T) {
	s := newTestStore(t)
	var _ store.MessageStore = s
	ctx := context.Background()

	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	for i := range 4 {
		require.NoError(t, s.Append(ctx, &store.Message{
			ID: fmt.Sprintf("m%d", i), UserID: "u1", ConversationID: "c1",
			Role: store.RoleUser, Content: fmt.Sprintf("msg %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Append(ctx, &store.Message{ID: "other", UserID: "u2", ConversationID: "c1", Content: "x"}))

	got, err := s.Get(ctx, key, "m1")
	require.NoError(t, err)
	assert.Equal(t, "msg 1", got.Content)
	assert.True(t, got.CreatedAt.Equal(base.Add(time.Minute)))

	_, err = s.Get(ctx, key, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	recent, err := s.Recent(ctx, key, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "m2", recent[0].ID)
	assert.Equal(t, "m3", recent[1].ID)

	all, err := s.Recent(ctx, key, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	err = s.Append(ctx, &store.Message{ID: "m0", UserID: "u1", ConversationID: "c1"})
	assert.ErrorIs(t, err, store.ErrExists)

	// Same id in another conversation is a different row.
	require.NoError(t, s.Append(ctx, &store.Message{ID: "m0", UserID: "u1", ConversationID: "c2"}))
}

func TestSqliteMessageStore_SetSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := &store.Message{UserID: "u1", ConversationID: "c1", Role: store.RoleAssistant, Content: "ok"}
	require.NoError(t, s.Append(ctx, msg))

	applied, err := s.SetSummary(ctx, key, msg.ID, "first")
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.SetSummary(ctx, key, msg.ID, "second")
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.Get(ctx, key, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Summary)

	_, err = s.SetSummary(ctx, key, "missing", "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
