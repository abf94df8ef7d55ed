package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"neighborhood/db"
	"neighborhood/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageOptionsWindow(t *testing.T) {
	limit, offset := PageOptions{}.Window()
	assert.Equal(t, DefaultPageSize, limit)
	assert.Equal(t, 0, offset)

	limit, offset = PageOptions{Limit: 10, Offset: 20}.Window()
	assert.Equal(t, 10, limit)
	assert.Equal(t, 20, offset)

	limit, offset = PageOptions{Limit: -1, Offset: -5}.Window()
	assert.Equal(t, DefaultPageSize, limit)
	assert.Equal(t, 0, offset)
}

func TestMessageServiceValidationBeforeStore(t *testing.T) {
	// хранилище не трогается: глобальный ORM намеренно сброшен,
	// любой поход в БД уронил бы тест паникой
	db.ORM = nil
	svc := NewMessageService()
	ctx := context.Background()

	_, err := svc.ListConversations(ctx, 0, PageOptions{})
	assert.True(t, IsValidationError(err))

	_, err = svc.ListConversation(ctx, 0, 2, PageOptions{})
	assert.True(t, IsValidationError(err))

	_, err = svc.Send(ctx, 0, SendMessageRequest{ReceiverID: 2, Body: "hi"})
	assert.True(t, IsValidationError(err))

	_, err = svc.Send(ctx, 1, SendMessageRequest{ReceiverID: 0, Body: "hi"})
	assert.True(t, IsValidationError(err))

	_, err = svc.Send(ctx, 1, SendMessageRequest{ReceiverID: 2, Body: "   "})
	assert.True(t, IsValidationError(err))

	_, err = svc.Search(ctx, "   ", 1, 10)
	assert.True(t, IsValidationError(err))

	_, err = svc.MarkRead(ctx, 0)
	assert.True(t, IsValidationError(err))

	err = svc.DeleteMessage(ctx, 0)
	assert.True(t, IsValidationError(err))

	err = svc.DeleteConversation(ctx, 0, 1)
	assert.True(t, IsValidationError(err))
}

func TestMessageServiceSendAndProjections(t *testing.T) {
	setupTestDB(t)
	sender := createTestUser(t, "lena_sender")
	receiver := createTestUser(t, "vanya_receiver")

	svc := NewMessageService()
	ctx := context.Background()

	msg, err := svc.Send(ctx, sender.ID, SendMessageRequest{
		ReceiverID: receiver.ID,
		Body:       "Привет! Не видели мою кошку?",
	})
	require.NoError(t, err)

	assert.Positive(t, msg.ID)
	assert.Equal(t, models.MessageTypeText, msg.MessageType, "missing type defaults to text")
	assert.Nil(t, msg.ReadAt, "new message starts unread")
	require.NotNil(t, msg.Sender)
	require.NotNil(t, msg.Receiver)
	assert.Equal(t, "lena_sender", msg.Sender.Nickname)
	assert.Equal(t, "vanya_receiver", msg.Receiver.Nickname)
}

func TestMessageServiceSendWithReply(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "user_a")
	b := createTestUser(t, "user_b")

	svc := NewMessageService()
	ctx := context.Background()

	first, err := svc.Send(ctx, a.ID, SendMessageRequest{ReceiverID: b.ID, Body: "original"})
	require.NoError(t, err)

	reply, err := svc.Send(ctx, b.ID, SendMessageRequest{
		ReceiverID: a.ID,
		Body:       "reply",
		ReplyToID:  &first.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyToID)
	assert.Equal(t, first.ID, *reply.ReplyToID)

	replies, err := svc.ListReplies(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, reply.ID, replies[0].ID)
}

func TestMessageServiceConversationOrderAndWindow(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "win_a")
	b := createTestUser(t, "win_b")

	base := time.Now().Add(-2 * time.Hour)
	for i := 0; i < DefaultPageSize+10; i++ {
		seedMessage(t, a.ID, b.ID, fmt.Sprintf("msg %d", i), base.Add(time.Duration(i)*time.Second), nil)
	}

	svc := NewMessageService()
	ctx := context.Background()

	// без явного limit действует окно по умолчанию
	messages, err := svc.ListConversation(ctx, a.ID, b.ID, PageOptions{})
	require.NoError(t, err)
	assert.Len(t, messages, DefaultPageSize)

	// хронологический порядок
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
	}

	// обе стороны пары видят одну и ту же переписку
	mirror, err := svc.ListConversation(ctx, b.ID, a.ID, PageOptions{})
	require.NoError(t, err)
	assert.Equal(t, len(messages), len(mirror))
	assert.Equal(t, messages[0].ID, mirror[0].ID)
}

func TestMessageServiceListConversationsAggregation(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "agg_a")
	b := createTestUser(t, "agg_b")
	c := createTestUser(t, "agg_c")

	now := time.Now()
	seedMessage(t, a.ID, b.ID, "to b, old", now.Add(-3*time.Minute), timePtr(now.Add(-2*time.Minute)))
	seedMessage(t, b.ID, a.ID, "from b, unread", now.Add(-2*time.Minute), nil)
	seedMessage(t, c.ID, a.ID, "from c, newest", now.Add(-time.Minute), nil)

	svc := NewMessageService()
	conversations, err := svc.ListConversations(context.Background(), a.ID, PageOptions{})
	require.NoError(t, err)

	require.Len(t, conversations, 2)
	// свежайший диалог первым
	assert.Equal(t, "from c, newest", conversations[0].LastMessage.Body)
	assert.Equal(t, int64(1), conversations[0].UnreadCount)
	assert.Equal(t, "from b, unread", conversations[1].LastMessage.Body)
	assert.Equal(t, int64(1), conversations[1].UnreadCount)

	// собеседник спроецирован
	require.NotNil(t, conversations[0].Counterpart)
	assert.Equal(t, "agg_c", conversations[0].Counterpart.Nickname)
}

func TestMessageServiceUnreadCountAndList(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "cnt_a")
	b := createTestUser(t, "cnt_b")

	now := time.Now()
	seedMessage(t, b.ID, a.ID, "unread 1", now.Add(-3*time.Minute), nil)
	seedMessage(t, b.ID, a.ID, "unread 2", now.Add(-2*time.Minute), nil)
	seedMessage(t, b.ID, a.ID, "already read", now.Add(-time.Minute), timePtr(now))
	seedMessage(t, a.ID, b.ID, "outgoing", now, nil)

	svc := NewMessageService()
	ctx := context.Background()

	count, err := svc.UnreadCount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	unread, err := svc.ListUnread(ctx, a.ID, PageOptions{})
	require.NoError(t, err)
	assert.Len(t, unread, 2)
	for _, msg := range unread {
		assert.Equal(t, a.ID, msg.ReceiverID)
		assert.Nil(t, msg.ReadAt)
	}
}

func TestMessageServiceMarkReadOverwritesTimestamp(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "mr_a")
	b := createTestUser(t, "mr_b")

	msg := seedMessage(t, b.ID, a.ID, "mark me", time.Now().Add(-time.Minute), nil)

	svc := NewMessageService()
	ctx := context.Background()

	first, err := svc.MarkRead(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ReadAt)

	time.Sleep(10 * time.Millisecond)

	// повторный вызов не идемпотентен: read_at переписывается
	second, err := svc.MarkRead(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, second.ReadAt)
	assert.True(t, second.ReadAt.After(*first.ReadAt))
}

func TestMessageServiceMarkConversationRead(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "mcr_a")
	b := createTestUser(t, "mcr_b")

	now := time.Now()
	seedMessage(t, b.ID, a.ID, "unread 1", now.Add(-3*time.Minute), nil)
	seedMessage(t, b.ID, a.ID, "unread 2", now.Add(-2*time.Minute), nil)
	// встречное направление не трогается
	outgoing := seedMessage(t, a.ID, b.ID, "outgoing unread", now.Add(-time.Minute), nil)

	svc := NewMessageService()
	ctx := context.Background()

	updated, err := svc.MarkConversationRead(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Len(t, updated, 2)
	for _, msg := range updated {
		assert.NotNil(t, msg.ReadAt)
	}

	count, err := svc.UnreadCount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	var check models.Message
	require.NoError(t, db.ORM.First(&check, outgoing.ID).Error)
	assert.Nil(t, check.ReadAt, "outgoing direction must stay untouched")

	// пустая переписка — пустой результат, не ошибка
	updated, err = svc.MarkConversationRead(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Empty(t, updated)
}

func TestMessageServiceSoftDeleteMessage(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "del_a")
	b := createTestUser(t, "del_b")

	msg := seedMessage(t, a.ID, b.ID, "to be deleted", time.Now(), nil)

	svc := NewMessageService()
	ctx := context.Background()

	require.NoError(t, svc.DeleteMessage(ctx, msg.ID))

	messages, err := svc.ListConversation(ctx, a.ID, b.ID, PageOptions{})
	require.NoError(t, err)
	assert.Empty(t, messages)

	// строка физически на месте, удаление только пометка
	var raw int64
	require.NoError(t, db.ORM.Table("messages").Where("id = ?", msg.ID).Count(&raw).Error)
	assert.Equal(t, int64(1), raw)
}

func TestMessageServiceDeleteConversationBothDirections(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "dc_a")
	b := createTestUser(t, "dc_b")
	c := createTestUser(t, "dc_c")

	now := time.Now()
	seedMessage(t, a.ID, b.ID, "a to b", now.Add(-2*time.Minute), nil)
	seedMessage(t, b.ID, a.ID, "b to a", now.Add(-time.Minute), nil)
	other := seedMessage(t, c.ID, a.ID, "c to a, unrelated", now, nil)

	svc := NewMessageService()
	ctx := context.Background()

	require.NoError(t, svc.DeleteConversation(ctx, b.ID, a.ID))

	messages, err := svc.ListConversation(ctx, a.ID, b.ID, PageOptions{})
	require.NoError(t, err)
	assert.Empty(t, messages)

	// чужая переписка не затронута
	unrelated, err := svc.ListConversation(ctx, c.ID, a.ID, PageOptions{})
	require.NoError(t, err)
	require.Len(t, unrelated, 1)
	assert.Equal(t, other.ID, unrelated[0].ID)

	// обе строки пары остались в таблице
	var raw int64
	require.NoError(t, db.ORM.Table("messages").
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			a.ID, b.ID, b.ID, a.ID).
		Count(&raw).Error)
	assert.Equal(t, int64(2), raw)
}

func TestMessageServiceSearch(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "srch_a")
	b := createTestUser(t, "srch_b")
	c := createTestUser(t, "srch_c")

	// фикстуры в ASCII: LOWER у SQLite сворачивает регистр только для
	// латиницы, юникодное сворачивание дает Postgres
	now := time.Now()
	seedMessage(t, a.ID, b.ID, "Selling my Sofa, almost new", now.Add(-2*time.Minute), nil)
	seedMessage(t, b.ID, a.ID, "is the SOFA still available?", now.Add(-time.Minute), nil)
	seedMessage(t, c.ID, b.ID, "sofa wanted, any condition", now, nil)

	svc := NewMessageService()
	ctx := context.Background()

	// регистронезависимый поиск в рамках переписок пользователя:
	// запрос в нижнем регистре находит и "Sofa", и "SOFA"
	found, err := svc.Search(ctx, "sofa", a.ID, 0)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	// userID == 0 ищет без ограничения по участнику
	all, err := svc.Search(ctx, "sofa", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// и в другую сторону: запрос в верхнем регистре
	upper, err := svc.Search(ctx, "SOFA", a.ID, 0)
	require.NoError(t, err)
	assert.Len(t, upper, 2)

	none, err := svc.Search(ctx, "bicycle", a.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMessageServiceListSentReceived(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "dir_a")
	b := createTestUser(t, "dir_b")

	now := time.Now()
	seedMessage(t, a.ID, b.ID, "first out", now.Add(-2*time.Minute), nil)
	seedMessage(t, a.ID, b.ID, "second out", now.Add(-time.Minute), nil)
	seedMessage(t, b.ID, a.ID, "incoming", now, nil)

	svc := NewMessageService()
	ctx := context.Background()

	sent, err := svc.ListSent(ctx, a.ID, PageOptions{})
	require.NoError(t, err)
	require.Len(t, sent, 2)
	// новые первыми
	assert.Equal(t, "second out", sent[0].Body)

	received, err := svc.ListReceived(ctx, a.ID, PageOptions{})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "incoming", received[0].Body)
}

func TestStoreErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := storeErr("send", cause)

	var storeError *StoreError
	require.ErrorAs(t, err, &storeError)
	assert.Equal(t, "send", storeError.Op)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsValidationError(err))
}
