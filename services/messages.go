package services

import (
	"context"
	"strings"
	"time"

	"neighborhood/db"
	"neighborhood/models"
)

// DefaultPageSize окно выборки по умолчанию. Применяется и когда limit
// не задан вовсе: диапазон offset..offset+limit-1 должен оставаться
// определенным, поэтому отсутствие limit не означает "без ограничения".
const DefaultPageSize = 50

// PageOptions параметры страницы для списочных операций
type PageOptions struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Window возвращает фактические limit и offset с учетом дефолтного окна
func (p PageOptions) Window() (limit, offset int) {
	limit = p.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	offset = p.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// SendMessageRequest запрос на отправку сообщения. Отправитель не входит
// в запрос: его id берется из аутентифицированного вызова.
type SendMessageRequest struct {
	ReceiverID     int64              `json:"receiver_id"`
	Body           string             `json:"body"`
	MessageType    models.MessageType `json:"message_type"`
	AttachmentURL  *string            `json:"attachment_url"`
	AttachmentType *string            `json:"attachment_type"`
	ReplyToID      *int64             `json:"reply_to"`
}

// MessageService слой доступа к переписке: переводит доменные операции
// в запросы к хранилищу и нормализует строки в типизированные записи
// с проекциями отправителя/получателя. Состояния не держит.
type MessageService struct{}

func NewMessageService() *MessageService {
	return &MessageService{}
}

// ListConversations возвращает сводку диалогов пользователя: по одной
// записи на уникальную пару собеседников с последним сообщением и числом
// непрочитанных. Пагинация применяется к сырой выборке сообщений, а не к
// числу диалогов: страница сообщений может дать меньше диалогов, чем limit.
func (s *MessageService) ListConversations(ctx context.Context, userID int64, page PageOptions) ([]models.Conversation, error) {
	if userID == 0 {
		return nil, &ValidationError{Field: "user_id"}
	}

	limit, offset := page.Window()
	var messages []models.Message
	err := db.GetReadOnlyDB(ctx).
		Preload("Sender").Preload("Receiver").
		Where("deleted_at IS NULL").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, storeErr("list_conversations", err)
	}

	return BuildConversations(messages, userID), nil
}

// ListConversation возвращает переписку пары в хронологическом порядке
// с проекцией reply-to на один уровень
func (s *MessageService) ListConversation(ctx context.Context, userA, userB int64, page PageOptions) ([]models.Message, error) {
	if userA == 0 {
		return nil, &ValidationError{Field: "user_id"}
	}
	if userB == 0 {
		return nil, &ValidationError{Field: "other_user_id"}
	}

	limit, offset := page.Window()
	var messages []models.Message
	err := db.GetReadOnlyDB(ctx).
		Preload("Sender").Preload("Receiver").Preload("ReplyTo").
		Where("deleted_at IS NULL").
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("created_at ASC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, storeErr("list_conversation", err)
	}
	return messages, nil
}

// ListSent возвращает отправленные пользователем сообщения, новые первыми
func (s *MessageService) ListSent(ctx context.Context, userID int64, page PageOptions) ([]models.Message, error) {
	return s.listDirectional(ctx, "sender_id", userID, page, "list_sent")
}

// ListReceived возвращает полученные пользователем сообщения, новые первыми
func (s *MessageService) ListReceived(ctx context.Context, userID int64, page PageOptions) ([]models.Message, error) {
	return s.listDirectional(ctx, "receiver_id", userID, page, "list_received")
}

func (s *MessageService) listDirectional(ctx context.Context, column string, userID int64, page PageOptions, op string) ([]models.Message, error) {
	if userID == 0 {
		return nil, &ValidationError{Field: "user_id"}
	}

	limit, offset := page.Window()
	var messages []models.Message
	err := db.GetReadOnlyDB(ctx).
		Preload("Sender").Preload("Receiver").
		Where("deleted_at IS NULL").
		Where(column+" = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, storeErr(op, err)
	}
	return messages, nil
}

// ListUnread возвращает непрочитанные сообщения пользователя, новые первыми
func (s *MessageService) ListUnread(ctx context.Context, userID int64, page PageOptions) ([]models.Message, error) {
	if userID == 0 {
		return nil, &ValidationError{Field: "user_id"}
	}

	limit, offset := page.Window()
	var messages []models.Message
	err := db.GetReadOnlyDB(ctx).
		Preload("Sender").Preload("Receiver").
		Where("receiver_id = ? AND read_at IS NULL AND deleted_at IS NULL", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, storeErr("list_unread", err)
	}
	return messages, nil
}

// UnreadCount возвращает число непрочитанных сообщений пользователя
func (s *MessageService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	if userID == 0 {
		return 0, &ValidationError{Field: "user_id"}
	}

	var count int64
	err := db.GetReadOnlyDB(ctx).
		Model(&models.Message{}).
		Where("receiver_id = ? AND read_at IS NULL AND deleted_at IS NULL", userID).
		Count(&count).Error
	if err != nil {
		return 0, storeErr("unread_count", err)
	}
	return count, nil
}

// ListReplies возвращает ответы на сообщение в хронологическом порядке
func (s *MessageService) ListReplies(ctx context.Context, messageID int64) ([]models.Message, error) {
	if messageID == 0 {
		return nil, &ValidationError{Field: "message_id"}
	}

	var messages []models.Message
	err := db.GetReadOnlyDB(ctx).
		Preload("Sender").Preload("Receiver").
		Where("reply_to_id = ? AND deleted_at IS NULL", messageID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, storeErr("list_replies", err)
	}
	return messages, nil
}

// Search ищет по телу сообщений без учета регистра. Пустой текст падает
// сразу, без похода в хранилище. userID == 0 означает поиск без
// ограничения по участнику.
func (s *MessageService) Search(ctx context.Context, text string, userID int64, limit int) ([]models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "text"}
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	query := db.GetReadOnlyDB(ctx).
		Preload("Sender").Preload("Receiver").
		Where("deleted_at IS NULL").
		Where("LOWER(body) LIKE ?", "%"+strings.ToLower(text)+"%")
	if userID != 0 {
		query = query.Where("sender_id = ? OR receiver_id = ?", userID, userID)
	}

	var messages []models.Message
	err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, storeErr("search", err)
	}
	return messages, nil
}

// Send сохраняет новое сообщение и возвращает строку с проекциями
// отправителя и получателя
func (s *MessageService) Send(ctx context.Context, senderID int64, req SendMessageRequest) (*models.Message, error) {
	if senderID == 0 {
		return nil, &ValidationError{Field: "sender_id"}
	}
	if req.ReceiverID == 0 {
		return nil, &ValidationError{Field: "receiver_id"}
	}
	if strings.TrimSpace(req.Body) == "" {
		return nil, &ValidationError{Field: "body"}
	}

	messageType := req.MessageType
	if messageType == "" {
		messageType = models.MessageTypeText
	}

	now := time.Now()
	msg := models.Message{
		SenderID:       senderID,
		ReceiverID:     req.ReceiverID,
		Body:           req.Body,
		MessageType:    messageType,
		AttachmentURL:  req.AttachmentURL,
		AttachmentType: req.AttachmentType,
		ReplyToID:      req.ReplyToID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.GetWriteDB(ctx).Create(&msg).Error; err != nil {
		return nil, storeErr("send", err)
	}

	return s.getMessage(ctx, msg.ID, "send")
}

// MarkRead проставляет отметку о прочтении. Не идемпотентна намеренно:
// повторный вызов перезаписывает read_at новым временем.
func (s *MessageService) MarkRead(ctx context.Context, messageID int64) (*models.Message, error) {
	if messageID == 0 {
		return nil, &ValidationError{Field: "message_id"}
	}

	now := time.Now()
	res := db.GetWriteDB(ctx).
		Model(&models.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{"read_at": now, "updated_at": now})
	if res.Error != nil {
		return nil, storeErr("mark_read", res.Error)
	}

	return s.getMessage(ctx, messageID, "mark_read")
}

// MarkConversationRead отмечает прочитанными все непрочитанные сообщения
// от otherUserID к currentUserID и возвращает обновленные строки
func (s *MessageService) MarkConversationRead(ctx context.Context, otherUserID, currentUserID int64) ([]models.Message, error) {
	if otherUserID == 0 {
		return nil, &ValidationError{Field: "other_user_id"}
	}
	if currentUserID == 0 {
		return nil, &ValidationError{Field: "user_id"}
	}

	var ids []int64
	err := db.GetReadOnlyDB(ctx).
		Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND read_at IS NULL AND deleted_at IS NULL",
			otherUserID, currentUserID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, storeErr("mark_conversation_read", err)
	}
	if len(ids) == 0 {
		return []models.Message{}, nil
	}

	now := time.Now()
	err = db.GetWriteDB(ctx).
		Model(&models.Message{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"read_at": now, "updated_at": now}).Error
	if err != nil {
		return nil, storeErr("mark_conversation_read", err)
	}

	var updated []models.Message
	err = db.GetReadOnlyDB(ctx).
		Preload("Sender").Preload("Receiver").
		Where("id IN ?", ids).
		Order("created_at ASC").
		Find(&updated).Error
	if err != nil {
		return nil, storeErr("mark_conversation_read", err)
	}
	return updated, nil
}

// DeleteMessage мягко удаляет сообщение: строка остается, но пропадает
// из всех выборок
func (s *MessageService) DeleteMessage(ctx context.Context, messageID int64) error {
	if messageID == 0 {
		return &ValidationError{Field: "message_id"}
	}

	now := time.Now()
	err := db.GetWriteDB(ctx).
		Model(&models.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{"deleted_at": now, "updated_at": now}).Error
	if err != nil {
		return storeErr("delete_message", err)
	}
	return nil
}

// DeleteConversation мягко удаляет всю переписку пары в обе стороны
func (s *MessageService) DeleteConversation(ctx context.Context, otherUserID, currentUserID int64) error {
	if otherUserID == 0 {
		return &ValidationError{Field: "other_user_id"}
	}
	if currentUserID == 0 {
		return &ValidationError{Field: "user_id"}
	}

	now := time.Now()
	err := db.GetWriteDB(ctx).
		Model(&models.Message{}).
		Where("deleted_at IS NULL").
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			otherUserID, currentUserID, currentUserID, otherUserID).
		Updates(map[string]interface{}{"deleted_at": now, "updated_at": now}).Error
	if err != nil {
		return storeErr("delete_conversation", err)
	}
	return nil
}

func (s *MessageService) getMessage(ctx context.Context, messageID int64, op string) (*models.Message, error) {
	var msg models.Message
	err := db.GetReadOnlyDB(ctx).
		Preload("Sender").Preload("Receiver").
		First(&msg, messageID).Error
	if err != nil {
		return nil, storeErr(op, err)
	}
	return &msg, nil
}
