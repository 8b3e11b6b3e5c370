package services

import (
	"context"
	"strings"

	"syncBoard/internal/errs"
	"syncBoard/internal/models"
	"syncBoard/internal/repositories"
)

const maxChatHistoryLimit = 500

type ChatService struct {
	chatRepo *repositories.ChatRepository
}

func NewChatService(chatRepo *repositories.ChatRepository) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
	}
}

func (cs *ChatService) AppendChatMessage(ctx context.Context, message *models.ChatMessage) error {
	if message.BoardID == "" || strings.TrimSpace(message.Message) == "" {
		return errs.ErrInvalidParams
	}
	return cs.chatRepo.SaveMessage(ctx, message)
}

func (cs *ChatService) LoadChatHistory(ctx context.Context, boardID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > maxChatHistoryLimit {
		limit = maxChatHistoryLimit
	}
	return cs.chatRepo.GetRoomMessages(ctx, boardID, limit)
}
