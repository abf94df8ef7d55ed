package models

import (
	"time"
)

// MessageType тип содержимого сообщения
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeFile     MessageType = "file"
	MessageTypeLocation MessageType = "location"
)

// Message представляет личное сообщение между двумя пользователями.
// Удаление мягкое: строка остается в таблице, deleted_at скрывает ее
// из всех выборок. read_at = NULL означает непрочитанное сообщение.
type Message struct {
	ID             int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID       int64       `gorm:"column:sender_id;index" json:"sender_id"`
	ReceiverID     int64       `gorm:"column:receiver_id;index" json:"receiver_id"`
	Body           string      `gorm:"type:text;not null" json:"body"`
	MessageType    MessageType `gorm:"size:20;default:'text'" json:"message_type"`
	AttachmentURL  *string     `gorm:"size:1024" json:"attachment_url,omitempty"`
	AttachmentType *string     `gorm:"size:60" json:"attachment_type,omitempty"`
	ReplyToID      *int64      `gorm:"index" json:"reply_to,omitempty"`
	IsEdited       bool        `gorm:"default:false" json:"is_edited"`
	ReadAt         *time.Time  `json:"read_at,omitempty"`
	DeletedAt      *time.Time  `gorm:"index" json:"deleted_at,omitempty"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`

	Sender   *User    `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User    `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
	ReplyTo  *Message `gorm:"foreignKey:ReplyToID" json:"reply_to_message,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

// IsUnreadBy true, если сообщение адресовано userID и еще не прочитано
func (m *Message) IsUnreadBy(userID int64) bool {
	return m.ReceiverID == userID && m.ReadAt == nil && m.DeletedAt == nil
}

// CounterpartID возвращает id собеседника для viewerID.
// 0 означает битую строку (viewer не участвует в сообщении
// или второй участник отсутствует).
func (m *Message) CounterpartID(viewerID int64) int64 {
	switch viewerID {
	case m.SenderID:
		return m.ReceiverID
	case m.ReceiverID:
		return m.SenderID
	default:
		return 0
	}
}

// Conversation производное представление диалога: одна запись на
// уникальную пару участников. В БД не хранится, строится агрегатором
// из плоского списка сообщений.
type Conversation struct {
	UserLo      int64    `json:"user_lo"`
	UserHi      int64    `json:"user_hi"`
	Counterpart *Profile `json:"counterpart,omitempty"`
	LastMessage Message  `json:"last_message"`
	UnreadCount int64    `json:"unread_count"`
}
