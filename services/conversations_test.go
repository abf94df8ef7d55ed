package services

import (
	"testing"
	"time"

	"neighborhood/models"

	"github.com/stretchr/testify/assert"
)

func msgAt(id, senderID, receiverID int64, body string, createdAt time.Time, readAt *time.Time) models.Message {
	return models.Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		CreatedAt:  createdAt,
		ReadAt:     readAt,
		Sender:     &models.User{ID: senderID},
		Receiver:   &models.User{ID: receiverID},
	}
}

func TestCanonicalPairOrderIndependent(t *testing.T) {
	assert.Equal(t, canonicalPair(1, 2), canonicalPair(2, 1))
	assert.Equal(t, int64(1), canonicalPair(2, 1).lo)
	assert.Equal(t, int64(2), canonicalPair(2, 1).hi)
}

func TestBuildConversationsDedupAndOrder(t *testing.T) {
	now := time.Now()
	// плоский список новые-первыми: пары (1,2), (1,3), снова (1,2)
	messages := []models.Message{
		msgAt(30, 2, 1, "newest from 2", now, nil),
		msgAt(20, 3, 1, "from 3", now.Add(-time.Minute), nil),
		msgAt(10, 1, 2, "older to 2", now.Add(-2*time.Minute), nil),
	}

	conversations := BuildConversations(messages, 1)

	assert.Len(t, conversations, 2)
	// порядок — по свежести последнего сообщения
	assert.Equal(t, int64(30), conversations[0].LastMessage.ID)
	assert.Equal(t, int64(20), conversations[1].LastMessage.ID)
	// первое вхождение пары задает последнее сообщение
	assert.Equal(t, "newest from 2", conversations[0].LastMessage.Body)
}

func TestBuildConversationsUnreadCount(t *testing.T) {
	now := time.Now()
	read := timePtr(now.Add(-time.Hour))
	// пара (1,2): отправленное мной, непрочитанное мне, прочитанное мне
	messages := []models.Message{
		msgAt(3, 1, 2, "sent by viewer, unread by 2", now, nil),
		msgAt(2, 2, 1, "unread by viewer", now.Add(-time.Minute), nil),
		msgAt(1, 1, 2, "read long ago", now.Add(-2*time.Minute), read),
	}

	conversations := BuildConversations(messages, 1)

	assert.Len(t, conversations, 1)
	// считаются только входящие непрочитанные: исходящие не в счет
	assert.Equal(t, int64(1), conversations[0].UnreadCount)
}

func TestBuildConversationsUnreadIsPageScoped(t *testing.T) {
	now := time.Now()
	// страница содержит только одно из непрочитанных: счетчик видит
	// только ее, а не всю переписку
	page := []models.Message{
		msgAt(5, 2, 1, "unread on page", now, nil),
	}

	conversations := BuildConversations(page, 1)

	assert.Len(t, conversations, 1)
	assert.Equal(t, int64(1), conversations[0].UnreadCount)
}

func TestBuildConversationsSkipsMalformedRows(t *testing.T) {
	now := time.Now()
	messages := []models.Message{
		// viewer не участвует в сообщении
		msgAt(2, 7, 8, "not mine", now, nil),
		msgAt(1, 2, 1, "mine", now.Add(-time.Minute), nil),
	}

	conversations := BuildConversations(messages, 1)

	assert.Len(t, conversations, 1)
	assert.Equal(t, int64(1), conversations[0].LastMessage.ID)
}

func TestBuildConversationsCounterpartProfile(t *testing.T) {
	now := time.Now()
	msg := msgAt(1, 2, 1, "hello", now, nil)
	msg.Sender.Nickname = "sosed_petya"

	conversations := BuildConversations([]models.Message{msg}, 1)

	assert.Len(t, conversations, 1)
	if assert.NotNil(t, conversations[0].Counterpart) {
		assert.Equal(t, "sosed_petya", conversations[0].Counterpart.Nickname)
		assert.Equal(t, int64(2), conversations[0].Counterpart.ID)
	}
}

func TestBuildConversationsEmptyInput(t *testing.T) {
	conversations := BuildConversations(nil, 1)
	assert.NotNil(t, conversations)
	assert.Len(t, conversations, 0)
}
