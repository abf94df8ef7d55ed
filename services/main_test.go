package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"neighborhood/db"
	"neighborhood/models"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBCounter int64

// setupTestDB поднимает изолированную in-memory SQLite базу и подменяет
// глобальный ORM. Имя базы уникально на каждый вызов, чтобы тесты не
// видели данные друг друга.
func setupTestDB(t *testing.T) {
	t.Helper()

	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared", n)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = conn.AutoMigrate(
		&models.User{}, &models.UserTokens{},
		&models.Message{}, &models.Listing{}, &models.Place{},
	)
	require.NoError(t, err)

	db.ORM = conn
}

func createTestUser(t *testing.T, nickname string) *models.User {
	t.Helper()

	user := &models.User{
		Nickname:  nickname,
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Password:  "testpassword",
		City:      gofakeit.City(),
	}
	require.NoError(t, db.ORM.Create(user).Error)
	return user
}

// seedMessage вставляет сообщение напрямую, минуя сервис
func seedMessage(t *testing.T, senderID, receiverID int64, body string, createdAt time.Time, readAt *time.Time) *models.Message {
	t.Helper()

	msg := &models.Message{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Body:        body,
		MessageType: models.MessageTypeText,
		ReadAt:      readAt,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	require.NoError(t, db.ORM.Create(msg).Error)
	return msg
}

func timePtr(ts time.Time) *time.Time {
	return &ts
}
