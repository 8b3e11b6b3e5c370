package interfaces

import (
	"context"

	"syncBoard/internal/models"
)

// BoardStore is the persistence collaborator of the relay. Every call is
// made from a background worker and may fail without affecting fan-out.
type BoardStore interface {
	EnsureActiveSession(ctx context.Context, boardID string) error
	CloseActiveSession(ctx context.Context, boardID string) error
	AppendChatMessage(ctx context.Context, message *models.ChatMessage) error
	LoadChatHistory(ctx context.Context, boardID string, limit int) ([]models.ChatMessage, error)
	LoadBoardData(ctx context.Context, boardID string) (models.BoardData, error)
	SaveBoardData(ctx context.Context, boardID string, data models.BoardData) error
}

// SnapshotArchiver keeps a copy of a room snapshot when the room is torn down.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, boardID string, data []byte) (string, error)
}

// MembershipLedger counts room members across relay instances.
type MembershipLedger interface {
	Join(ctx context.Context, roomID, connectionID string) (int64, error)
	Leave(ctx context.Context, roomID, connectionID string) (int64, error)
}
