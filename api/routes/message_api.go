package routes

import (
	"neighborhood/api/handlers"

	"github.com/gin-gonic/gin"
)

// MessageApi маршруты личных сообщений, барахолки, справочника и
// чат-комнат. Все эндпоинты требуют аутентификации.
func MessageApi(
	router *gin.Engine,
	msg *handlers.MessageHandlers,
	listings *handlers.ListingHandlers,
	places *handlers.PlaceHandlers,
	chat *handlers.ChatHandlers,
	auth gin.HandlerFunc,
) *gin.RouterGroup {
	authedEndpoints := router.Group("/api/v1/", auth)
	{
		// Личные сообщения
		authedEndpoints.GET("messages/conversations", msg.ListConversations)
		authedEndpoints.GET("messages/conversation/:user_id", msg.GetConversation)
		authedEndpoints.POST("messages/conversation/:user_id", msg.Send)
		authedEndpoints.POST("messages/conversation/:user_id/read", msg.MarkConversationRead)
		authedEndpoints.DELETE("messages/conversation/:user_id", msg.DeleteConversation)
		authedEndpoints.POST("messages/:message_id/read", msg.MarkRead)
		authedEndpoints.DELETE("messages/:message_id", msg.DeleteMessage)
		authedEndpoints.GET("messages/:message_id/replies", msg.ListReplies)
		authedEndpoints.GET("messages/sent", msg.ListSent)
		authedEndpoints.GET("messages/received", msg.ListReceived)
		authedEndpoints.GET("messages/unread", msg.ListUnread)
		authedEndpoints.GET("messages/unread/count", msg.UnreadCount)
		authedEndpoints.GET("messages/search", msg.Search)

		// Барахолка
		authedEndpoints.POST("listings", listings.Create)
		authedEndpoints.GET("listings/feed", listings.CityFeed)
		authedEndpoints.GET("listings/:listing_id", listings.Get)
		authedEndpoints.POST("listings/:listing_id/sold", listings.MarkSold)
		authedEndpoints.DELETE("listings/:listing_id", listings.Delete)

		// Районный справочник
		authedEndpoints.POST("places", places.Create)
		authedEndpoints.GET("places", places.List)
		authedEndpoints.GET("places/:place_id", places.Get)

		// WebSocket для push-уведомлений
		authedEndpoints.GET("ws", handlers.WSConnect)

		// Чат-комнаты (если Redis доступен)
		if chat != nil {
			authedEndpoints.POST("chat/:room", chat.Post)
			authedEndpoints.GET("chat/:room/history", chat.History)
			authedEndpoints.GET("chat/:room/stats", chat.Stats)
		}
	}
	return authedEndpoints
}
