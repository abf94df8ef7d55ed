package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"neighborhood/models"

	"github.com/go-redis/redis/v8"
)

const (
	LISTING_FEED_QUEUE = "listing_feed_queue"
	QUEUE_WORKER_COUNT = 5
)

// FeedRefreshTask задача обновления городской ленты объявлений
type FeedRefreshTask struct {
	Listing models.Listing `json:"listing"`
	Action  string         `json:"action"` // "create", "delete"
}

type QueueService struct {
	listingService *ListingService
}

func NewQueueService() *QueueService {
	return &QueueService{
		listingService: NewListingService(),
	}
}

// QueueServiceInstance глобальный экземпляр сервиса очередей
var QueueServiceInstance *QueueService

// InitQueueService инициализирует сервис очередей
func InitQueueService() {
	QueueServiceInstance = NewQueueService()
}

// StartWorkers запускает воркеры для обработки очереди
func (qs *QueueService) StartWorkers(ctx context.Context) {
	for i := 0; i < QUEUE_WORKER_COUNT; i++ {
		go qs.worker(ctx, i)
	}
}

// worker обрабатывает задачи из очереди
func (qs *QueueService) worker(ctx context.Context, workerID int) {
	log.Printf("Listing feed worker %d started", workerID)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Listing feed worker %d stopping", workerID)
			return
		default:
			// Получаем задачу из очереди (блокирующий вызов с таймаутом)
			result, err := RedisClient.BLPop(ctx, 5*time.Second, LISTING_FEED_QUEUE).Result()
			if err != nil {
				if err == redis.Nil {
					// Таймаут - продолжаем
					continue
				}
				log.Printf("Worker %d error getting task: %v", workerID, err)
				time.Sleep(time.Second)
				continue
			}

			if len(result) < 2 {
				continue
			}

			var task FeedRefreshTask
			if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
				log.Printf("Worker %d error unmarshaling task: %v", workerID, err)
				continue
			}

			qs.processTask(ctx, &task, workerID)
		}
	}
}

// processTask обрабатывает конкретную задачу
func (qs *QueueService) processTask(ctx context.Context, task *FeedRefreshTask, workerID int) {
	log.Printf("Worker %d processing listing %d, action: %s", workerID, task.Listing.ID, task.Action)

	switch task.Action {
	case "create":
		qs.listingService.addListingToCityFeed(ctx, task.Listing)
	case "delete":
		qs.listingService.removeListingFromCityFeed(ctx, task.Listing)
	default:
		log.Printf("Worker %d unknown action: %s", workerID, task.Action)
	}
}

// EnqueueFeedRefresh добавляет задачу обновления ленты в очередь
func (qs *QueueService) EnqueueFeedRefresh(ctx context.Context, listing models.Listing, action string) error {
	if RedisClient == nil {
		return fmt.Errorf("redis not available")
	}

	task := FeedRefreshTask{
		Listing: listing,
		Action:  action,
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := RedisClient.RPush(ctx, LISTING_FEED_QUEUE, taskData).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Printf("Enqueued feed refresh for listing %d, action: %s", listing.ID, action)
	return nil
}

// GetStats возвращает статистику очереди
func (qs *QueueService) GetStats() map[string]interface{} {
	stats := make(map[string]interface{})

	if RedisClient != nil {
		ctx := context.Background()
		stats["queue_length"] = RedisClient.LLen(ctx, LISTING_FEED_QUEUE).Val()
		stats["worker_count"] = QUEUE_WORKER_COUNT
		stats["queue_name"] = LISTING_FEED_QUEUE
	} else {
		stats["error"] = "Redis not available"
	}

	return stats
}
