package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*RedisMessageStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisMessageStore("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, s
}

// stepClock returns a clock advancing one second per call.
func stepClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Second)
		return now
	}
}

func TestNewRedisMessageStore(t *testing.T) {
	store, _ := setupTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))

	_, err := NewRedisMessageStore("not a url")
	assert.Error(t, err)
}

func TestInsertAndGet(t *testing.T) {
	store, s := setupTestStore(t)
	ctx := context.Background()

	msg, err := store.Insert(ctx, NewMessage{
		ChannelId:   "c1",
		ChannelType: "dm",
		AuthorId:    1,
		Content:     "hi",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, msg.Id)
	assert.Equal(t, "c1", msg.ChannelId)
	assert.Equal(t, 1, msg.AuthorId)
	assert.Equal(t, []string{}, msg.Attachments)
	assert.Equal(t, msg.CreatedAt, msg.UpdatedAt)
	assert.True(t, s.Exists(messageKey(msg.Id)))

	members, err := s.ZMembers(channelKey("c1"))
	require.NoError(t, err)
	assert.Equal(t, []string{msg.Id}, members)

	got, err := store.Get(ctx, msg.Id)
	require.NoError(t, err)
	assert.Equal(t, msg.Id, got.Id)
	assert.Equal(t, "hi", got.Content)
	assert.True(t, msg.CreatedAt.Equal(got.CreatedAt))
}

func TestGetNotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = stepClock(start)

	var ids []string
	for _, content := range []string{"one", "two", "three", "four"} {
		msg, err := store.Insert(ctx, NewMessage{ChannelId: "c1", AuthorId: 1, Content: content})
		require.NoError(t, err)
		ids = append(ids, msg.Id)
	}
	_, err := store.Insert(ctx, NewMessage{ChannelId: "other", AuthorId: 1, Content: "elsewhere"})
	require.NoError(t, err)

	before := start.Add(3 * time.Second)

	tests := []struct {
		name   string
		before *time.Time
		limit  int
		want   []string
	}{
		{"latest first", nil, 10, []string{ids[3], ids[2], ids[1], ids[0]}},
		{"limited", nil, 2, []string{ids[3], ids[2]}},
		{"before is exclusive", &before, 10, []string{ids[2], ids[1], ids[0]}},
		{"before and limit", &before, 1, []string{ids[2]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := store.List(ctx, "c1", tt.before, tt.limit)
			require.NoError(t, err)

			var got []string
			for _, m := range msgs {
				got = append(got, m.Id)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("empty channel", func(t *testing.T) {
		msgs, err := store.List(ctx, "nothing", nil, 10)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}

func TestListPagesThroughSameInstant(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	instant := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return instant }

	var ids []string
	for _, content := range []string{"one", "two", "three", "four", "five"} {
		msg, err := store.Insert(ctx, NewMessage{ChannelId: "c1", AuthorId: 1, Content: content})
		require.NoError(t, err)
		ids = append(ids, msg.Id)
	}

	// walk newest to oldest two at a time using the oldest message of each page
	var (
		seen   []string
		before *time.Time
	)
	for {
		page, err := store.List(ctx, "c1", before, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			seen = append(seen, m.Id)
		}
		oldest := page[len(page)-1].CreatedAt
		before = &oldest
	}

	assert.Equal(t, []string{ids[4], ids[3], ids[2], ids[1], ids[0]}, seen, "every message is returned once in insertion order")
}

func TestInsertKeepsCreatedAtIncreasing(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	instant := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return instant }

	first, err := store.Insert(ctx, NewMessage{ChannelId: "c1", AuthorId: 1, Content: "one"})
	require.NoError(t, err)
	second, err := store.Insert(ctx, NewMessage{ChannelId: "c1", AuthorId: 1, Content: "two"})
	require.NoError(t, err)
	other, err := store.Insert(ctx, NewMessage{ChannelId: "c2", AuthorId: 1, Content: "elsewhere"})
	require.NoError(t, err)

	assert.Equal(t, instant, first.CreatedAt)
	assert.Equal(t, instant.Add(time.Microsecond), second.CreatedAt)
	assert.Equal(t, instant, other.CreatedAt, "channels are ordered independently")

	got, err := store.Get(ctx, second.Id)
	require.NoError(t, err)
	assert.True(t, second.CreatedAt.Equal(got.CreatedAt))
}

func TestListSkipsMissingDocuments(t *testing.T) {
	store, s := setupTestStore(t)
	ctx := context.Background()
	store.now = stepClock(time.Now())

	first, err := store.Insert(ctx, NewMessage{ChannelId: "c1", AuthorId: 1, Content: "one"})
	require.NoError(t, err)
	second, err := store.Insert(ctx, NewMessage{ChannelId: "c1", AuthorId: 1, Content: "two"})
	require.NoError(t, err)

	s.Del(messageKey(first.Id))

	msgs, err := store.List(ctx, "c1", nil, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, second.Id, msgs[0].Id)
}

func TestReplace(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = stepClock(start)

	msg, err := store.Insert(ctx, NewMessage{ChannelId: "c1", AuthorId: 1, Content: "draft"})
	require.NoError(t, err)

	msg.Content = "final"
	msg.Attachments = []string{"a1"}
	updated, err := store.Replace(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, start.Add(time.Second), updated.UpdatedAt)
	assert.Equal(t, start, updated.CreatedAt)

	got, err := store.Get(ctx, msg.Id)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Content)
	assert.Equal(t, []string{"a1"}, got.Attachments)

	_, err = store.Replace(ctx, Message{Id: "missing", ChannelId: "c1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	store, s := setupTestStore(t)
	ctx := context.Background()

	msg, err := store.Insert(ctx, NewMessage{ChannelId: "c1", AuthorId: 1, Content: "bye"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, msg.Id))
	assert.False(t, s.Exists(messageKey(msg.Id)))

	msgs, err := store.List(ctx, "c1", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.ErrorIs(t, store.Delete(ctx, msg.Id), ErrNotFound)
}
