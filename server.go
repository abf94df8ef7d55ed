package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"neighborhood/api/handlers"
	"neighborhood/api/middleware"
	"neighborhood/api/routes"
	"neighborhood/config"
	"neighborhood/db"
	"neighborhood/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	err := config.LoadConfig(configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	log.Println("Starting server...")

	if err := db.ConnectDB(); err != nil {
		panic("Failed to connect to the database: " + err.Error())
	}
	if err := db.CreateMessageTypeEnum(db.ORM); err != nil {
		log.Printf("Enum migration skipped: %v", err)
	}
	if err := db.CreateMessageIndexes(db.ORM); err != nil {
		log.Printf("Index migration skipped: %v", err)
	}

	ctx := context.Background()

	// Redis нужен барахолке и очереди лент; без него работаем напрямую с БД
	if err := services.InitRedis(); err != nil {
		log.Printf("Redis unavailable, feed cache disabled: %v", err)
	} else {
		services.InitQueueService()
		services.QueueServiceInstance.StartWorkers(ctx)
	}

	// RabbitMQ для событий о новых сообщениях; без него пушим напрямую в WS
	if err := services.InitRabbitMQ(); err != nil {
		log.Printf("RabbitMQ unavailable, falling back to direct WS push: %v", err)
	} else {
		if err := services.StartMessageEventConsumer(ctx, "message_events_push"); err != nil {
			log.Printf("Failed to start message event consumer: %v", err)
		}
	}

	cacheTTL := 30 * time.Second
	if config.AppConfig.Cache.TTLSeconds > 0 {
		cacheTTL = time.Duration(config.AppConfig.Cache.TTLSeconds) * time.Second
	}

	messageService := services.NewMessageService()
	coordinator := services.NewCoordinator(messageService, services.NewMessageCache(cacheTTL))

	var chatHandlers *handlers.ChatHandlers
	chatConf := config.AppConfig.ChatRedis
	if chatConf.Host != "" {
		chatService, err := services.NewChatRoomService(
			fmt.Sprintf("%s:%d", chatConf.Host, chatConf.Port),
			chatConf.Password, chatConf.DB,
		)
		if err != nil {
			log.Printf("Chat rooms disabled: %v", err)
		} else {
			chatHandlers = handlers.NewChatHandlers(chatService)
		}
	}

	router := gin.Default()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.PrometheusMiddleware("neighborhood-api"))

	routes.PublicApi(router)
	routes.MessageApi(
		router,
		handlers.NewMessageHandlers(messageService, coordinator),
		handlers.NewListingHandlers(services.NewListingService()),
		handlers.NewPlaceHandlers(services.NewPlaceService()),
		chatHandlers,
		middleware.AuthMiddleware(),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := ":8080"
	if config.AppConfig.Backend.Port != 0 {
		addr = fmt.Sprintf("%s:%d", config.AppConfig.Backend.Host, config.AppConfig.Backend.Port)
	}
	if err := router.Run(addr); err != nil {
		panic(err)
	}
}
