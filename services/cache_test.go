package services

import (
	"context"
	"testing"
	"time"

	"neighborhood/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyTyped(t *testing.T) {
	// один и тот же набор id в разных видах дает разные ключи
	assert.NotEqual(t, ConversationsKey(1), UnreadKey(1))
	assert.NotEqual(t, SentKey(1), ReceivedKey(1))
	// парный ключ не зависит от направления
	assert.Equal(t, ConversationKey(1, 2), ConversationKey(2, 1))
}

func TestCacheGetOnlyFresh(t *testing.T) {
	cache := NewMessageCache(time.Minute)
	key := ConversationsKey(1)

	_, ok := cache.Get(key)
	assert.False(t, ok)

	cache.Set(key, []models.Conversation{})
	_, ok = cache.Get(key)
	assert.True(t, ok)

	cache.Invalidate(key)
	_, ok = cache.Get(key)
	assert.False(t, ok)

	state, exists := cache.State(key)
	require.True(t, exists)
	assert.Equal(t, EntryStale, state)
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := NewMessageCache(10 * time.Millisecond)
	key := UnreadCountKey(1)

	cache.Set(key, int64(5))
	_, ok := cache.Get(key)
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	// просроченная запись — промах, запись переводится в stale
	_, ok = cache.Get(key)
	assert.False(t, ok)
	state, exists := cache.State(key)
	require.True(t, exists)
	assert.Equal(t, EntryStale, state)
}

func TestCacheBeginFetchLifecycle(t *testing.T) {
	cache := NewMessageCache(time.Minute)
	key := ConversationKey(1, 2)

	fetchCtx := cache.BeginFetch(context.Background(), key)
	state, exists := cache.State(key)
	require.True(t, exists)
	assert.Equal(t, EntryLoading, state)
	assert.NoError(t, fetchCtx.Err())

	cache.Set(key, []models.Message{})
	state, _ = cache.State(key)
	assert.Equal(t, EntryFresh, state)
}

func TestCacheCancelFetchWithoutValueDropsEntry(t *testing.T) {
	cache := NewMessageCache(time.Minute)
	key := ConversationKey(1, 2)

	fetchCtx := cache.BeginFetch(context.Background(), key)
	cache.CancelFetch(key)

	assert.Error(t, fetchCtx.Err())
	_, exists := cache.State(key)
	assert.False(t, exists, "loading entry without value must disappear")
}

func TestCacheCancelFetchKeepsPreviousValueAsStale(t *testing.T) {
	cache := NewMessageCache(time.Minute)
	key := ConversationKey(1, 2)

	cache.Set(key, []models.Message{{ID: 1}})
	fetchCtx := cache.BeginFetch(context.Background(), key)
	cache.CancelFetch(key)

	assert.Error(t, fetchCtx.Err())
	state, exists := cache.State(key)
	require.True(t, exists)
	assert.Equal(t, EntryStale, state)
}

func TestCacheBeginFetchCancelsPreviousFetch(t *testing.T) {
	cache := NewMessageCache(time.Minute)
	key := ConversationKey(1, 2)

	first := cache.BeginFetch(context.Background(), key)
	second := cache.BeginFetch(context.Background(), key)

	assert.Error(t, first.Err())
	assert.NoError(t, second.Err())
}

func TestCacheInvalidateDoesNotCreateEntries(t *testing.T) {
	cache := NewMessageCache(time.Minute)

	cache.Invalidate(ConversationsKey(42))
	assert.Equal(t, 0, cache.Len())
}

func TestCacheInvalidateLists(t *testing.T) {
	cache := NewMessageCache(time.Minute)
	cache.Set(ConversationKey(1, 2), []models.Message{})
	cache.Set(ConversationsKey(1), []models.Conversation{})
	cache.Set(SentKey(1), []models.Message{})
	cache.Set(UnreadCountKey(1), int64(3))
	cache.Set(MessageKey(10), &models.Message{ID: 10})

	cache.InvalidateLists()

	for _, key := range []CacheKey{ConversationKey(1, 2), ConversationsKey(1), SentKey(1)} {
		state, _ := cache.State(key)
		assert.Equal(t, EntryStale, state)
	}
	// счетчик и карточка сообщения списками не являются
	state, _ := cache.State(UnreadCountKey(1))
	assert.Equal(t, EntryFresh, state)
	state, _ = cache.State(MessageKey(10))
	assert.Equal(t, EntryFresh, state)
}

func TestCacheSnapshotRestoreVerbatim(t *testing.T) {
	cache := NewMessageCache(time.Minute)
	convKey := ConversationKey(1, 2)
	countKey := UnreadCountKey(2)
	absentKey := UnreadKey(2)

	original := []models.Message{{ID: 1, Body: "hello"}}
	cache.Set(convKey, original)
	cache.Set(countKey, int64(7))

	snap := cache.snapshot(convKey, countKey, absentKey)

	// спекулятивные правки поверх снимка
	cache.Set(convKey, append(append([]models.Message(nil), original...), models.Message{ID: -1}))
	cache.Set(countKey, int64(8))
	cache.Set(absentKey, []models.Message{})

	cache.restore(snap)

	val, ok := cache.Get(convKey)
	require.True(t, ok)
	restored, ok := val.([]models.Message)
	require.True(t, ok)
	assert.Equal(t, original, restored)

	val, ok = cache.Get(countKey)
	require.True(t, ok)
	assert.Equal(t, int64(7), val)

	// запись, отсутствовавшая на момент снимка, исчезает
	_, exists := cache.State(absentKey)
	assert.False(t, exists)
}

func TestCacheRestoreNilSnapshotIsNoop(t *testing.T) {
	cache := NewMessageCache(time.Minute)
	cache.Set(UnreadCountKey(1), int64(1))

	cache.restore(nil)

	val, ok := cache.Get(UnreadCountKey(1))
	require.True(t, ok)
	assert.Equal(t, int64(1), val)
}

func TestCacheRemove(t *testing.T) {
	cache := NewMessageCache(time.Minute)
	key := MessageKey(5)
	cache.Set(key, &models.Message{ID: 5})

	cache.Remove(key)

	_, exists := cache.State(key)
	assert.False(t, exists)
}
