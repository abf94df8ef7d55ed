package services

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL срок свежести записи кэша по умолчанию
const DefaultCacheTTL = 30 * time.Second

// CacheKind вид кэшируемой операции. Ключ собирается из вида и
// параметров, а не из склеенных строк: так невозможно получить
// коллизию двух разных операций на одном ключе.
type CacheKind string

const (
	CacheConversation  CacheKind = "conversation"  // переписка пары
	CacheConversations CacheKind = "conversations" // список диалогов пользователя
	CacheSent          CacheKind = "sent"
	CacheReceived      CacheKind = "received"
	CacheUnread        CacheKind = "unread"
	CacheUnreadCount   CacheKind = "unread_count"
	CacheMessage       CacheKind = "message" // карточка одного сообщения
)

// CacheKey типизированный ключ записи. Для парных операций участники
// хранятся отсортированными, поэтому ключ не зависит от направления.
type CacheKey struct {
	Kind      CacheKind
	UserLo    int64
	UserHi    int64
	MessageID int64
}

// ConversationKey ключ переписки пары, порядок аргументов не важен
func ConversationKey(userA, userB int64) CacheKey {
	p := canonicalPair(userA, userB)
	return CacheKey{Kind: CacheConversation, UserLo: p.lo, UserHi: p.hi}
}

// ConversationsKey ключ списка диалогов пользователя
func ConversationsKey(userID int64) CacheKey {
	return CacheKey{Kind: CacheConversations, UserLo: userID}
}

func SentKey(userID int64) CacheKey {
	return CacheKey{Kind: CacheSent, UserLo: userID}
}

func ReceivedKey(userID int64) CacheKey {
	return CacheKey{Kind: CacheReceived, UserLo: userID}
}

func UnreadKey(userID int64) CacheKey {
	return CacheKey{Kind: CacheUnread, UserLo: userID}
}

func UnreadCountKey(userID int64) CacheKey {
	return CacheKey{Kind: CacheUnreadCount, UserLo: userID}
}

func MessageKey(messageID int64) CacheKey {
	return CacheKey{Kind: CacheMessage, MessageID: messageID}
}

// EntryState состояние записи кэша.
// Жизненный цикл: absent -> loading -> fresh -> stale -> loading -> fresh ...
type EntryState int

const (
	EntryLoading EntryState = iota
	EntryFresh
	EntryStale
)

type cacheEntry struct {
	state     EntryState
	value     interface{}
	expiresAt time.Time
	cancel    context.CancelFunc
}

// MessageCache хранилище результатов запросов, ключованное CacheKey.
// Все записи принадлежат координатору: прямая запись в обход него
// ломает гарантии согласованности кэша и хранилища.
type MessageCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[CacheKey]*cacheEntry
}

func NewMessageCache(ttl time.Duration) *MessageCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MessageCache{
		ttl:     ttl,
		entries: make(map[CacheKey]*cacheEntry),
	}
}

// Get возвращает значение, только пока запись свежая. Просроченная
// запись переводится в stale и считается промахом.
func (c *MessageCache) Get(key CacheKey) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || entry.state != EntryFresh {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		entry.state = EntryStale
		return nil, false
	}
	return entry.value, true
}

// Set кладет свежее значение и сбрасывает незавершенную загрузку
func (c *MessageCache) Set(key CacheKey, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

func (c *MessageCache) setLocked(key CacheKey, value interface{}) {
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	entry.state = EntryFresh
	entry.value = value
	entry.expiresAt = time.Now().Add(c.ttl)
	entry.cancel = nil
}

// BeginFetch помечает запись загружающейся и возвращает производный
// контекст. Если мутация отменит загрузку через CancelFetch, контекст
// будет отменен и ответ не должен перезаписывать кэш.
func (c *MessageCache) BeginFetch(ctx context.Context, key CacheKey) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	if entry.cancel != nil {
		entry.cancel()
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	entry.state = EntryLoading
	entry.cancel = cancel
	return fetchCtx
}

// CancelFetch отменяет незавершенную загрузку ключа, чтобы устаревший
// ответ не затер спекулятивное состояние
func (c *MessageCache) CancelFetch(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return
	}
	if entry.cancel != nil {
		entry.cancel()
		entry.cancel = nil
	}
	if entry.state == EntryLoading {
		if entry.value != nil {
			entry.state = EntryStale
		} else {
			delete(c.entries, key)
		}
	}
}

// Invalidate помечает запись устаревшей: следующее чтение пойдет в
// хранилище. Отсутствующую запись не создает.
func (c *MessageCache) Invalidate(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.state = EntryStale
	}
}

// InvalidateKind помечает устаревшими все записи одного вида
func (c *MessageCache) InvalidateKind(kind CacheKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if key.Kind == kind {
			entry.state = EntryStale
		}
	}
}

// InvalidateLists помечает устаревшими все списочные представления
// ("list(all)" в таблице фан-аута)
func (c *MessageCache) InvalidateLists() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		switch key.Kind {
		case CacheConversation, CacheConversations, CacheSent, CacheReceived, CacheUnread:
			entry.state = EntryStale
		}
	}
}

// Remove выбрасывает запись целиком
func (c *MessageCache) Remove(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// State возвращает состояние записи; второй результат false для absent
func (c *MessageCache) State(key CacheKey) (EntryState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	return entry.state, true
}

func (c *MessageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type snapshotEntry struct {
	present   bool
	state     EntryState
	value     interface{}
	expiresAt time.Time
}

type cacheSnapshot map[CacheKey]snapshotEntry

// snapshot фиксирует текущее значение перечисленных ключей, включая
// сам факт отсутствия записи
func (c *MessageCache) snapshot(keys ...CacheKey) cacheSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := make(cacheSnapshot, len(keys))
	for _, key := range keys {
		entry, ok := c.entries[key]
		if !ok {
			snap[key] = snapshotEntry{present: false}
			continue
		}
		snap[key] = snapshotEntry{
			present:   true,
			state:     entry.state,
			value:     entry.value,
			expiresAt: entry.expiresAt,
		}
	}
	return snap
}

// restore возвращает снимок дословно. nil-снимок — no-op: отсутствие
// снимка для отката трактуем как пустой откат, а не как аварию.
func (c *MessageCache) restore(snap cacheSnapshot) {
	if snap == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, saved := range snap {
		if !saved.present {
			delete(c.entries, key)
			continue
		}
		c.entries[key] = &cacheEntry{
			state:     saved.state,
			value:     saved.value,
			expiresAt: saved.expiresAt,
		}
	}
}
