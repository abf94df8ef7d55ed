package services

import (
	"context"
	"encoding/json"
	"log"

	"neighborhood/models"
)

type WsNotify struct {
	NotifyType string `json:"notify_type"`
	Message    string `json:"message"`
}

// SendWsNotify - отправка уведомления через WebSocket
func SendWsNotify(userID int64, notifyType string, message string) error {
	if len(notifyType) == 0 {
		notifyType = "info"
	}
	if len(message) == 0 {
		return nil
	}
	if len(message) > 100 {
		message = message[:100] + "..."
	}
	notify := WsNotify{NotifyType: notifyType, Message: message}
	jsonData, err := json.Marshal(notify)
	if err != nil {
		return err
	}
	GlobalWSConnManager.Send(userID, jsonData)
	return nil
}

// NotifyNewMessage публикует событие о новом сообщении в RabbitMQ;
// если брокер недоступен, пушит получателю напрямую через WebSocket
func NotifyNewMessage(ctx context.Context, msg *models.Message) {
	preview := msg.Body
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}

	event := MessageEvent{
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Preview:    preview,
		CreatedAt:  msg.CreatedAt,
	}

	if err := PublishMessageEvent(ctx, event); err != nil {
		log.Printf("RabbitMQ unavailable, pushing message %d directly: %v", msg.ID, err)
		pushMessageEvent(event)
	}
}
