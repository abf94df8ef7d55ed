package services

import (
	"neighborhood/models"
)

// pairKey канонический ключ пары участников: id отсортированы, поэтому
// ключ не зависит от направления сообщения и от того, кто спрашивает
type pairKey struct {
	lo, hi int64
}

func canonicalPair(a, b int64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// BuildConversations сворачивает плоский список сообщений (новые первыми)
// в диалоги: по одной записи на уникальную пару. Первое вхождение пары
// задает последнее сообщение диалога, каждое непрочитанное сообщение в
// адрес viewerID увеличивает счетчик. Порядок результата — порядок
// первого вхождения, то есть по свежести последнего сообщения.
//
// Агрегация работает только над переданной страницей: диалог, чье
// последнее сообщение не попало в страницу, в результат не попадет, а
// счетчик непрочитанных учитывает только сообщения страницы. Это
// осознанное ограничение области видимости, закрепленное тестами.
func BuildConversations(messages []models.Message, viewerID int64) []models.Conversation {
	conversations := make([]models.Conversation, 0)
	index := make(map[pairKey]int)

	for _, msg := range messages {
		counterpartID := msg.CounterpartID(viewerID)
		if counterpartID == 0 {
			// битая строка — второй участник отсутствует
			continue
		}

		key := canonicalPair(viewerID, counterpartID)
		pos, seen := index[key]
		if !seen {
			conv := models.Conversation{
				UserLo:      key.lo,
				UserHi:      key.hi,
				Counterpart: counterpartProfile(&msg, viewerID),
				LastMessage: msg,
			}
			conversations = append(conversations, conv)
			pos = len(conversations) - 1
			index[key] = pos
		}

		if msg.IsUnreadBy(viewerID) {
			conversations[pos].UnreadCount++
		}
	}

	return conversations
}

func counterpartProfile(msg *models.Message, viewerID int64) *models.Profile {
	if msg.SenderID == viewerID {
		return msg.Receiver.ToProfile()
	}
	return msg.Sender.ToProfile()
}
