package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// FlexInt64 кастомный тип для работы с int64 который может приходить как строка или число
type FlexInt64 int64

func (fi *FlexInt64) UnmarshalJSON(data []byte) error {
	var num int64
	if err := json.Unmarshal(data, &num); err != nil {
		// Пробуем как строку, если не число
		var numStr string
		if err2 := json.Unmarshal(data, &numStr); err2 != nil {
			return err // возвращаем первую ошибку
		}
		var err3 error
		num, err3 = strconv.ParseInt(numStr, 10, 64)
		if err3 != nil {
			return err3
		}
	}
	*fi = FlexInt64(num)
	return nil
}

func (fi FlexInt64) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(fi))
}

func (fi FlexInt64) Int64() int64 {
	return int64(fi)
}

// UnixTime кастомный тип для работы с Unix timestamp в JSON
type UnixTime time.Time

func (ut *UnixTime) UnmarshalJSON(data []byte) error {
	var timestamp int64
	if err := json.Unmarshal(data, &timestamp); err != nil {
		var timestampStr string
		if err2 := json.Unmarshal(data, &timestampStr); err2 != nil {
			return err
		}
		var err3 error
		timestamp, err3 = strconv.ParseInt(timestampStr, 10, 64)
		if err3 != nil {
			return err3
		}
	}
	*ut = UnixTime(time.Unix(timestamp, 0))
	return nil
}

func (ut UnixTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(ut).Unix())
}

func (ut UnixTime) Time() time.Time {
	return time.Time(ut)
}

// ChatRoomService общерайонные чат-комнаты поверх Redis с UDF:
// лента комнаты лежит в sorted set, счетчики в hash
type ChatRoomService struct {
	client *redis.Client
	ctx    context.Context
}

// RoomMessage сообщение чат-комнаты
type RoomMessage struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	UserID    FlexInt64 `json:"user_id"`
	Nickname  string    `json:"nickname"`
	Text      string    `json:"text"`
	CreatedAt UnixTime  `json:"created_at"`
}

// RoomStats статистика чат-комнаты
type RoomStats struct {
	TotalMessages int64 `json:"total_messages"`
	LastActivity  int64 `json:"last_activity"`
}

// NewChatRoomService создает новый экземпляр сервиса чат-комнат
func NewChatRoomService(addr, password string, db int) (*ChatRoomService, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	service := &ChatRoomService{
		client: rdb,
		ctx:    ctx,
	}
	if err := service.loadLuaScripts(); err != nil {
		return nil, err
	}
	return service, nil
}

// Lua скрипты для UDF
var (
	postRoomMessageScript = `
		local room_key = KEYS[1]
		local stats_key = KEYS[2]
		local message_json = ARGV[1]
		local created_at = tonumber(ARGV[2])

		-- Добавляем сообщение в sorted set комнаты (score = timestamp)
		redis.call('ZADD', room_key, created_at, message_json)

		-- Обновляем статистику комнаты
		redis.call('HSET', stats_key,
			'total_messages', redis.call('ZCARD', room_key),
			'last_activity', created_at
		)

		-- Ограничиваем историю комнаты
		redis.call('ZREMRANGEBYRANK', room_key, 0, -10001)

		-- Устанавливаем TTL (30 дней)
		redis.call('EXPIRE', room_key, 2592000)
		redis.call('EXPIRE', stats_key, 2592000)

		return redis.call('ZCARD', room_key)
	`

	getRoomMessagesScript = `
		local room_key = KEYS[1]
		local offset = tonumber(ARGV[1])
		local limit = tonumber(ARGV[2])

		-- Получаем сообщения с пагинацией (от новых к старым)
		return redis.call('ZREVRANGE', room_key, offset, offset + limit - 1)
	`

	getRoomStatsScript = `
		local stats_key = KEYS[1]

		local total_messages = redis.call('HGET', stats_key, 'total_messages') or 0
		local last_activity = redis.call('HGET', stats_key, 'last_activity') or 0

		return {total_messages, last_activity}
	`
)

// SHA хеши для Lua скриптов (заполняются при загрузке)
var (
	postRoomMessageSHA string
	getRoomMessagesSHA string
	getRoomStatsSHA    string
)

// loadLuaScripts загружает Lua скрипты в Redis
func (s *ChatRoomService) loadLuaScripts() error {
	var err error

	postRoomMessageSHA, err = s.client.ScriptLoad(s.ctx, postRoomMessageScript).Result()
	if err != nil {
		return fmt.Errorf("failed to load postRoomMessage script: %w", err)
	}

	getRoomMessagesSHA, err = s.client.ScriptLoad(s.ctx, getRoomMessagesScript).Result()
	if err != nil {
		return fmt.Errorf("failed to load getRoomMessages script: %w", err)
	}

	getRoomStatsSHA, err = s.client.ScriptLoad(s.ctx, getRoomStatsScript).Result()
	if err != nil {
		return fmt.Errorf("failed to load getRoomStats script: %w", err)
	}

	log.Println("Chat room Lua scripts loaded successfully")
	return nil
}

func roomKey(room string) string {
	return "room:" + room
}

func roomStatsKey(room string) string {
	return "room_stats:" + room
}

// PostMessage публикует сообщение в комнату
func (s *ChatRoomService) PostMessage(room string, userID int64, nickname, text string) (*RoomMessage, error) {
	if room == "" {
		return nil, &ValidationError{Field: "room"}
	}
	if text == "" {
		return nil, &ValidationError{Field: "text"}
	}

	now := time.Now()
	msg := RoomMessage{
		ID:        fmt.Sprintf("%d_%d", now.UnixNano(), userID),
		Room:      room,
		UserID:    FlexInt64(userID),
		Nickname:  nickname,
		Text:      text,
		CreatedAt: UnixTime(now),
	}

	messageJSON, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	_, err = s.client.EvalSha(s.ctx, postRoomMessageSHA,
		[]string{roomKey(room), roomStatsKey(room)},
		messageJSON, now.Unix()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to post room message: %w", err)
	}

	return &msg, nil
}

// History возвращает сообщения комнаты с пагинацией, новые первыми
func (s *ChatRoomService) History(room string, offset, limit int) ([]*RoomMessage, error) {
	if room == "" {
		return nil, &ValidationError{Field: "room"}
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	result, err := s.client.EvalSha(s.ctx, getRoomMessagesSHA,
		[]string{roomKey(room)}, offset, limit).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get room messages: %w", err)
	}

	messagesData := result.([]interface{})
	messages := make([]*RoomMessage, 0, len(messagesData))

	for _, msgData := range messagesData {
		var msg RoomMessage
		if err := json.Unmarshal([]byte(msgData.(string)), &msg); err != nil {
			log.Printf("Failed to unmarshal room message: %v", err)
			continue
		}
		messages = append(messages, &msg)
	}

	return messages, nil
}

// Stats возвращает статистику комнаты
func (s *ChatRoomService) Stats(room string) (*RoomStats, error) {
	result, err := s.client.EvalSha(s.ctx, getRoomStatsSHA,
		[]string{roomStatsKey(room)}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get room stats: %w", err)
	}

	data := result.([]interface{})
	totalMessages, _ := strconv.ParseInt(fmt.Sprint(data[0]), 10, 64)
	lastActivity, _ := strconv.ParseInt(fmt.Sprint(data[1]), 10, 64)

	return &RoomStats{
		TotalMessages: totalMessages,
		LastActivity:  lastActivity,
	}, nil
}

// Close закрывает соединение с Redis
func (s *ChatRoomService) Close() error {
	return s.client.Close()
}
