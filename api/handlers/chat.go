package handlers

import (
	"net/http"
	"strconv"

	"neighborhood/api/middleware"
	"neighborhood/services"

	"github.com/gin-gonic/gin"
)

// ChatHandlers обработчики общерайонных чат-комнат (Redis)
type ChatHandlers struct {
	svc *services.ChatRoomService
}

func NewChatHandlers(svc *services.ChatRoomService) *ChatHandlers {
	return &ChatHandlers{svc: svc}
}

type postRoomMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// Post - публикация сообщения в комнату
func (h *ChatHandlers) Post(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	room := c.Param("room")

	var req postRoomMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	nickname := "user_" + strconv.FormatInt(userID, 10)
	if user, err := services.GetUser(c.Request.Context(), userID); err == nil {
		nickname = user.Nickname
	}

	msg, err := h.svc.PostMessage(room, userID, nickname, req.Text)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// History - история комнаты, от новых к старым
func (h *ChatHandlers) History(c *gin.Context) {
	room := c.Param("room")

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	messages, err := h.svc.History(room, offset, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Stats - статистика комнаты
func (h *ChatHandlers) Stats(c *gin.Context) {
	room := c.Param("room")

	stats, err := h.svc.Stats(room)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
