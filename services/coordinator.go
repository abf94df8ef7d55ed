package services

import (
	"context"
	"time"

	"neighborhood/models"
)

// MessageStore операции хранилища, которыми управляет координатор.
// Реализуется MessageService; в тестах подменяется заглушкой.
type MessageStore interface {
	ListConversation(ctx context.Context, userA, userB int64, page PageOptions) ([]models.Message, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	Send(ctx context.Context, senderID int64, req SendMessageRequest) (*models.Message, error)
	MarkRead(ctx context.Context, messageID int64) (*models.Message, error)
	MarkConversationRead(ctx context.Context, otherUserID, currentUserID int64) ([]models.Message, error)
	DeleteMessage(ctx context.Context, messageID int64) error
	DeleteConversation(ctx context.Context, otherUserID, currentUserID int64) error
}

// Coordinator связывает кэш и хранилище по протоколу оптимистичных
// мутаций: до запроса к хранилищу затронутые записи правятся локально,
// при ошибке снимки возвращаются дословно, после любого исхода зависимые
// представления инвалидируются. Конкурентные мутации между собой не
// сериализуются: гонка "загрузка после мутации" гасится отменой
// незавершенных загрузок затронутых ключей, порядок самих мутаций
// выправляется перезагрузкой после инвалидации.
type Coordinator struct {
	store MessageStore
	cache *MessageCache
}

func NewCoordinator(store MessageStore, cache *MessageCache) *Coordinator {
	if cache == nil {
		cache = NewMessageCache(0)
	}
	return &Coordinator{store: store, cache: cache}
}

// Cache отдает кэш для чтения состояния. Писать в него напрямую нельзя:
// записи принадлежат координатору.
func (c *Coordinator) Cache() *MessageCache {
	return c.cache
}

// Conversation читает переписку пары через кэш. Ключ кэша — пара
// участников без параметров страницы: пока запись свежая, повторное
// чтение с любым окном отдает закэшированную страницу; другое окно
// гарантированно уходит в хранилище только после инвалидации или TTL.
// Промах запускает загрузку; если за время загрузки мутация отменила
// ее, ответ отдается вызывающему, но кэш не перезаписывается.
func (c *Coordinator) Conversation(ctx context.Context, viewerID, otherUserID int64, page PageOptions) ([]models.Message, error) {
	key := ConversationKey(viewerID, otherUserID)
	if val, ok := c.cache.Get(key); ok {
		if messages, ok := val.([]models.Message); ok {
			return messages, nil
		}
	}

	fetchCtx := c.cache.BeginFetch(ctx, key)
	messages, err := c.store.ListConversation(fetchCtx, viewerID, otherUserID, page)
	if err != nil {
		c.cache.CancelFetch(key)
		return nil, err
	}
	if fetchCtx.Err() != nil {
		// загрузку отменила мутация — спекулятивное состояние не трогаем
		return messages, nil
	}
	c.cache.Set(key, messages)
	return messages, nil
}

// UnreadCount читает счетчик непрочитанных через кэш
func (c *Coordinator) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	key := UnreadCountKey(userID)
	if val, ok := c.cache.Get(key); ok {
		if count, ok := val.(int64); ok {
			return count, nil
		}
	}

	fetchCtx := c.cache.BeginFetch(ctx, key)
	count, err := c.store.UnreadCount(fetchCtx, userID)
	if err != nil {
		c.cache.CancelFetch(key)
		return 0, err
	}
	if fetchCtx.Err() != nil {
		return count, nil
	}
	c.cache.Set(key, count)
	return count, nil
}

// Send отправляет сообщение с немедленным локальным эффектом.
// Фан-аут инвалидации: conversation(A,B), conversations(A), unreadCount(B).
func (c *Coordinator) Send(ctx context.Context, senderID int64, req SendMessageRequest) (*models.Message, error) {
	affected := []CacheKey{
		ConversationKey(senderID, req.ReceiverID),
		ConversationsKey(senderID),
		UnreadCountKey(req.ReceiverID),
	}
	c.cancelFetches(affected)
	snap := c.cache.snapshot(affected...)
	c.applySpeculativeSend(senderID, req)

	msg, err := c.store.Send(ctx, senderID, req)
	if err != nil {
		c.cache.restore(snap)
		c.invalidateKeys(affected)
		return nil, err
	}

	c.invalidateKeys(affected)
	return msg, nil
}

// MarkRead проставляет отметку о прочтении. Фан-аут: list(all),
// unread(currentUser), unreadCount(currentUser); при успехе карточка
// сообщения обновляется подтвержденной строкой.
func (c *Coordinator) MarkRead(ctx context.Context, messageID, currentUserID int64) (*models.Message, error) {
	edited := []CacheKey{MessageKey(messageID), UnreadCountKey(currentUserID)}
	c.cancelFetches(edited)
	snap := c.cache.snapshot(edited...)
	c.applySpeculativeMarkRead(messageID, currentUserID)

	msg, err := c.store.MarkRead(ctx, messageID)
	if err != nil {
		c.cache.restore(snap)
		c.fanOutMarkRead(currentUserID)
		return nil, err
	}

	c.fanOutMarkRead(currentUserID)
	c.cache.Set(MessageKey(messageID), msg)
	return msg, nil
}

// MarkConversationRead отмечает прочитанной переписку с otherUserID.
// Фан-аут: conversation(A,B), conversations(A), unread(A), unreadCount(A).
func (c *Coordinator) MarkConversationRead(ctx context.Context, otherUserID, currentUserID int64) ([]models.Message, error) {
	convKey := ConversationKey(otherUserID, currentUserID)
	affected := []CacheKey{
		convKey,
		ConversationsKey(currentUserID),
		UnreadKey(currentUserID),
		UnreadCountKey(currentUserID),
	}
	c.cancelFetches(affected)
	snap := c.cache.snapshot(convKey, UnreadCountKey(currentUserID))
	c.applySpeculativeConversationRead(convKey, currentUserID)

	updated, err := c.store.MarkConversationRead(ctx, otherUserID, currentUserID)
	if err != nil {
		c.cache.restore(snap)
		c.invalidateKeys(affected)
		return nil, err
	}

	c.invalidateKeys(affected)
	return updated, nil
}

// DeleteMessage мягко удаляет сообщение. Фан-аут: list(all),
// conversations(currentUser); при успехе карточка сообщения выбрасывается.
func (c *Coordinator) DeleteMessage(ctx context.Context, messageID, currentUserID int64) error {
	msgKey := MessageKey(messageID)
	c.cancelFetches([]CacheKey{msgKey})
	snap := c.cache.snapshot(msgKey)
	c.applySpeculativeDelete(msgKey)

	if err := c.store.DeleteMessage(ctx, messageID); err != nil {
		c.cache.restore(snap)
		c.fanOutDelete(currentUserID)
		return err
	}

	c.cache.Remove(msgKey)
	c.fanOutDelete(currentUserID)
	return nil
}

// DeleteConversation мягко удаляет переписку пары в обе стороны.
// Фан-аут: conversation(A,B), conversations(A), list(all).
func (c *Coordinator) DeleteConversation(ctx context.Context, otherUserID, currentUserID int64) error {
	convKey := ConversationKey(otherUserID, currentUserID)
	c.cancelFetches([]CacheKey{convKey})
	snap := c.cache.snapshot(convKey)
	if _, ok := c.cache.Get(convKey); ok {
		c.cache.Set(convKey, []models.Message{})
	}

	if err := c.store.DeleteConversation(ctx, otherUserID, currentUserID); err != nil {
		c.cache.restore(snap)
		c.fanOutDeleteConversation(convKey, currentUserID)
		return err
	}

	c.fanOutDeleteConversation(convKey, currentUserID)
	return nil
}

func (c *Coordinator) cancelFetches(keys []CacheKey) {
	for _, key := range keys {
		c.cache.CancelFetch(key)
	}
}

func (c *Coordinator) invalidateKeys(keys []CacheKey) {
	for _, key := range keys {
		c.cache.Invalidate(key)
	}
}

func (c *Coordinator) fanOutMarkRead(currentUserID int64) {
	c.cache.InvalidateLists()
	c.cache.Invalidate(UnreadKey(currentUserID))
	c.cache.Invalidate(UnreadCountKey(currentUserID))
}

func (c *Coordinator) fanOutDelete(currentUserID int64) {
	c.cache.InvalidateLists()
	c.cache.Invalidate(ConversationsKey(currentUserID))
}

func (c *Coordinator) fanOutDeleteConversation(convKey CacheKey, currentUserID int64) {
	c.cache.Invalidate(convKey)
	c.cache.Invalidate(ConversationsKey(currentUserID))
	c.cache.InvalidateLists()
}

// applySpeculativeSend вписывает локально синтезированное сообщение с
// временным отрицательным id в затронутые записи, чтобы интерфейс
// отразил отправку сразу
func (c *Coordinator) applySpeculativeSend(senderID int64, req SendMessageRequest) {
	now := time.Now()
	messageType := req.MessageType
	if messageType == "" {
		messageType = models.MessageTypeText
	}
	temp := models.Message{
		ID:             -now.UnixNano(),
		SenderID:       senderID,
		ReceiverID:     req.ReceiverID,
		Body:           req.Body,
		MessageType:    messageType,
		AttachmentURL:  req.AttachmentURL,
		AttachmentType: req.AttachmentType,
		ReplyToID:      req.ReplyToID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	convKey := ConversationKey(senderID, req.ReceiverID)
	if val, ok := c.cache.Get(convKey); ok {
		if messages, ok := val.([]models.Message); ok {
			updated := append(append([]models.Message(nil), messages...), temp)
			c.cache.Set(convKey, updated)
		}
	}

	countKey := UnreadCountKey(req.ReceiverID)
	if val, ok := c.cache.Get(countKey); ok {
		if count, ok := val.(int64); ok {
			c.cache.Set(countKey, count+1)
		}
	}
}

func (c *Coordinator) applySpeculativeMarkRead(messageID, currentUserID int64) {
	now := time.Now()

	msgKey := MessageKey(messageID)
	if val, ok := c.cache.Get(msgKey); ok {
		if msg, ok := val.(*models.Message); ok {
			updated := *msg
			updated.ReadAt = &now
			updated.UpdatedAt = now
			c.cache.Set(msgKey, &updated)
		}
	}

	countKey := UnreadCountKey(currentUserID)
	if val, ok := c.cache.Get(countKey); ok {
		if count, ok := val.(int64); ok && count > 0 {
			c.cache.Set(countKey, count-1)
		}
	}
}

func (c *Coordinator) applySpeculativeConversationRead(convKey CacheKey, currentUserID int64) {
	now := time.Now()
	var marked int64

	if val, ok := c.cache.Get(convKey); ok {
		if messages, ok := val.([]models.Message); ok {
			updated := append([]models.Message(nil), messages...)
			for i := range updated {
				if updated[i].IsUnreadBy(currentUserID) {
					readAt := now
					updated[i].ReadAt = &readAt
					updated[i].UpdatedAt = now
					marked++
				}
			}
			c.cache.Set(convKey, updated)
		}
	}

	if marked == 0 {
		return
	}
	countKey := UnreadCountKey(currentUserID)
	if val, ok := c.cache.Get(countKey); ok {
		if count, ok := val.(int64); ok {
			if count < marked {
				marked = count
			}
			c.cache.Set(countKey, count-marked)
		}
	}
}

func (c *Coordinator) applySpeculativeDelete(msgKey CacheKey) {
	if val, ok := c.cache.Get(msgKey); ok {
		if msg, ok := val.(*models.Message); ok {
			now := time.Now()
			updated := *msg
			updated.DeletedAt = &now
			updated.UpdatedAt = now
			c.cache.Set(msgKey, &updated)
		}
	}
}
