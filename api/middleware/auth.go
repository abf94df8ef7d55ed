package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"neighborhood/services"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware проверяет Bearer-токен и кладет user_id в контекст запроса
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		userID, err := services.ResolveToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// TestAuthMiddleware - middleware для тестовой аутентификации
// Поддерживает два варианта:
// 1. X-User-ID заголовок (для простых тестов)
// 2. Authorization: Bearer test_token_N (для интеграционных тестов)
func TestAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDHeader := c.GetHeader("X-User-ID")
		if userIDHeader != "" {
			userID, err := strconv.ParseInt(userIDHeader, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid X-User-ID format"})
				c.Abort()
				return
			}
			c.Set("user_id", userID)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if strings.HasPrefix(token, "test_token_") {
				userIDStr := strings.TrimPrefix(token, "test_token_")
				userID, err := strconv.ParseInt(userIDStr, 10, 64)
				if err != nil {
					c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid test token format"})
					c.Abort()
					return
				}
				c.Set("user_id", userID)
				c.Next()
				return
			}
		}

		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required: provide X-User-ID header or Authorization Bearer token"})
		c.Abort()
	}
}

// CurrentUserID достает user_id, положенный auth middleware
func CurrentUserID(c *gin.Context) (int64, bool) {
	val, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	userID, ok := val.(int64)
	return userID, ok
}
