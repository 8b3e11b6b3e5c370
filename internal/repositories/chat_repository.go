package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"syncBoard/internal/models"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{
		db: db,
	}
}

func (chr *ChatRepository) SaveMessage(ctx context.Context, message *models.ChatMessage) error {
	if err := chr.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("save chat message: %w", err)
	}
	return nil
}

// GetRoomMessages returns the last limit messages of a board, oldest first.
func (chr *ChatRepository) GetRoomMessages(ctx context.Context, boardID string, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := chr.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("get room messages: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
