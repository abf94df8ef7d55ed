package handlers

import (
	"log"
	"net/http"

	"neighborhood/api/middleware"
	"neighborhood/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSConnect - подключение WebSocket для push-уведомлений.
// Соединение регистрируется в глобальном менеджере, по нему
// прилетают события message_received и прочие нотификации.
func WSConnect(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed for user %d: %v", userID, err)
		return
	}

	services.GlobalWSConnManager.Add(userID, conn)
	log.Printf("WebSocket connected: user %d", userID)

	go func() {
		defer func() {
			services.GlobalWSConnManager.Remove(userID, conn)
			_ = conn.Close()
			log.Printf("WebSocket disconnected: user %d", userID)
		}()
		for {
			// Входящие сообщения игнорируем, канал только на push
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
