package routes

import (
	"neighborhood/api/handlers"
	"neighborhood/api/middleware"

	"github.com/gin-gonic/gin"
)

func PublicApi(router *gin.Engine) *gin.RouterGroup {
	publicEndpoints := router.Group("/api/v1/")
	{
		publicEndpoints.POST("auth/register", handlers.Register)
		publicEndpoints.POST("auth/login", handlers.Login)
		publicEndpoints.POST("auth/logout", middleware.AuthMiddleware(), handlers.Logout)
		publicEndpoints.GET("user/search", handlers.SearchProfiles)
		publicEndpoints.GET("user/get/:user_id", handlers.GetProfile)
	}
	return publicEndpoints
}
