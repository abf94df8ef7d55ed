package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"neighborhood/api/middleware"
	"neighborhood/models"
	"neighborhood/services"

	"github.com/gin-gonic/gin"
)

// MessageHandlers обработчики личных сообщений. Мутации идут через
// координатор, чтобы кэш получал оптимистичные правки и инвалидацию.
type MessageHandlers struct {
	svc   *services.MessageService
	coord *services.Coordinator
}

func NewMessageHandlers(svc *services.MessageService, coord *services.Coordinator) *MessageHandlers {
	return &MessageHandlers{svc: svc, coord: coord}
}

func respondServiceError(c *gin.Context, err error) {
	if services.IsValidationError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var storeErr *services.StoreError
	if errors.As(err, &storeErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Store operation failed", "operation": storeErr.Op})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func pageFromQuery(c *gin.Context) services.PageOptions {
	var page services.PageOptions
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			page.Limit = l
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			page.Offset = o
		}
	}
	return page
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// ListConversations - сводка диалогов текущего пользователя
func (h *MessageHandlers) ListConversations(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	start := time.Now()
	conversations, err := h.svc.ListConversations(c.Request.Context(), userID, pageFromQuery(c))
	middleware.RecordMessageOperation("list_conversations", statusLabel(err), "api", time.Since(start), err)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// GetConversation - переписка с собеседником, через кэш координатора
func (h *MessageHandlers) GetConversation(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	otherUserID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	start := time.Now()
	messages, err := h.coord.Conversation(c.Request.Context(), userID, otherUserID, pageFromQuery(c))
	middleware.RecordMessageOperation("list_conversation", statusLabel(err), "api", time.Since(start), err)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Send - отправка сообщения собеседнику
func (h *MessageHandlers) Send(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	otherUserID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	var req services.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.ReceiverID = otherUserID

	start := time.Now()
	msg, err := h.coord.Send(c.Request.Context(), userID, req)
	middleware.RecordMessageOperation("send", statusLabel(err), "api", time.Since(start), err)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	services.NotifyNewMessage(c.Request.Context(), msg)

	c.JSON(http.StatusOK, gin.H{"message": "Message sent", "data": msg})
}

// MarkRead - отметка одного сообщения прочитанным
func (h *MessageHandlers) MarkRead(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}

	start := time.Now()
	msg, err := h.coord.MarkRead(c.Request.Context(), messageID, userID)
	middleware.RecordMessageOperation("mark_read", statusLabel(err), "api", time.Since(start), err)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message marked as read", "data": msg})
}

// MarkConversationRead - отметка всей переписки прочитанной
func (h *MessageHandlers) MarkConversationRead(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	otherUserID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	start := time.Now()
	updated, err := h.coord.MarkConversationRead(c.Request.Context(), otherUserID, userID)
	middleware.RecordMessageOperation("mark_conversation_read", statusLabel(err), "api", time.Since(start), err)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Messages marked as read", "updated_count": len(updated), "data": updated})
}

// DeleteMessage - мягкое удаление сообщения
func (h *MessageHandlers) DeleteMessage(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}

	start := time.Now()
	err := h.coord.DeleteMessage(c.Request.Context(), messageID, userID)
	middleware.RecordMessageOperation("delete_message", statusLabel(err), "api", time.Since(start), err)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted"})
}

// DeleteConversation - мягкое удаление всей переписки с собеседником
func (h *MessageHandlers) DeleteConversation(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	otherUserID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	start := time.Now()
	err := h.coord.DeleteConversation(c.Request.Context(), otherUserID, userID)
	middleware.RecordMessageOperation("delete_conversation", statusLabel(err), "api", time.Since(start), err)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

// ListSent - отправленные сообщения
func (h *MessageHandlers) ListSent(c *gin.Context) {
	h.listDirectional(c, h.svc.ListSent)
}

// ListReceived - полученные сообщения
func (h *MessageHandlers) ListReceived(c *gin.Context) {
	h.listDirectional(c, h.svc.ListReceived)
}

// ListUnread - непрочитанные сообщения
func (h *MessageHandlers) ListUnread(c *gin.Context) {
	h.listDirectional(c, h.svc.ListUnread)
}

func (h *MessageHandlers) listDirectional(c *gin.Context, list func(ctx context.Context, userID int64, page services.PageOptions) ([]models.Message, error)) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	messages, err := list(c.Request.Context(), userID, pageFromQuery(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// UnreadCount - число непрочитанных, через кэш координатора
func (h *MessageHandlers) UnreadCount(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	count, err := h.coord.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// ListReplies - ответы на сообщение
func (h *MessageHandlers) ListReplies(c *gin.Context) {
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}

	messages, err := h.svc.ListReplies(c.Request.Context(), messageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Search - поиск по телу сообщений текущего пользователя.
// Клиенты должны требовать минимум 2 символа до вызова.
func (h *MessageHandlers) Search(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	text := c.Query("q")
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	messages, err := h.svc.Search(c.Request.Context(), text, userID, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
