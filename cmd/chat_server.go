package main

import (
	"flag"
	"fmt"
	"log"

	"neighborhood/api/handlers"
	"neighborhood/api/middleware"
	"neighborhood/config"
	"neighborhood/services"

	"github.com/gin-gonic/gin"
)

// Отдельный сервер чат-комнат: только Redis, без Postgres.
// Удобен для нагрузочного тестирования комнат в изоляции.

func setupChatRoutes(r *gin.Engine, chatService *services.ChatRoomService) {
	chatHandlers := handlers.NewChatHandlers(chatService)

	api := r.Group("/api/v1")
	api.Use(middleware.TestAuthMiddleware())

	chatRooms := api.Group("/chat")
	{
		chatRooms.POST("/:room", chatHandlers.Post)
		chatRooms.GET("/:room/history", chatHandlers.History)
		chatRooms.GET("/:room/stats", chatHandlers.Stats)
	}
}

func initializeChatRoomService() (*services.ChatRoomService, error) {
	if config.AppConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	chatConf := config.AppConfig.ChatRedis
	addr := fmt.Sprintf("%s:%d", chatConf.Host, chatConf.Port)
	return services.NewChatRoomService(addr, chatConf.Password, chatConf.DB)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	if err := config.LoadConfig(configPath); err != nil {
		log.Fatal("Failed to load config:", err)
	}

	chatService, err := initializeChatRoomService()
	if err != nil {
		log.Fatal("Failed to initialize chat room service:", err)
	}
	defer chatService.Close()

	r := gin.Default()
	r.Use(middleware.PrometheusMiddleware("neighborhood-chat"))

	setupChatRoutes(r, chatService)

	addr := fmt.Sprintf("%s:%d",
		config.AppConfig.Backend.Host,
		config.AppConfig.Backend.Port+1)

	log.Printf("Chat server starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatal("Failed to start chat server:", err)
	}
}
