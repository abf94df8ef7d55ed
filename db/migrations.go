package db

import (
	"fmt"

	"gorm.io/gorm"
)

// CreateMessageIndexes создает составные индексы для запросов переписки.
// AutoMigrate покрывает только одиночные индексы из тегов модели.
func CreateMessageIndexes(db *gorm.DB) error {
	indexes := []struct {
		name string
		sql  string
	}{
		{
			// диалог между парой в обе стороны
			"idx_messages_pair_created_at",
			`CREATE INDEX IF NOT EXISTS idx_messages_pair_created_at
				ON messages (sender_id, receiver_id, created_at)`,
		},
		{
			// непрочитанные получателя; частичный, чтобы не таскать удаленные
			"idx_messages_unread",
			`CREATE INDEX IF NOT EXISTS idx_messages_unread
				ON messages (receiver_id, created_at)
				WHERE read_at IS NULL AND deleted_at IS NULL`,
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// CreateMessageTypeEnum создает тип ENUM message_type, если он не существует
func CreateMessageTypeEnum(db *gorm.DB) error {
	createEnumSQL := `
	DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'message_type') THEN
			CREATE TYPE message_type AS ENUM ('text', 'image', 'file', 'location');
		END IF;
	END
	$$;
	`
	if err := db.Exec(createEnumSQL).Error; err != nil {
		return fmt.Errorf("failed to create enum message_type: %w", err)
	}
	return nil
}
