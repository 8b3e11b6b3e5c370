package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"syncBoard/internal/errs"
	"syncBoard/internal/models"
)

type BoardRepository struct {
	db *gorm.DB
}

func NewBoardRepository(db *gorm.DB) *BoardRepository {
	return &BoardRepository{
		db: db,
	}
}

// CreateBoard stores a board together with its first active session.
func (br *BoardRepository) CreateBoard(ctx context.Context, board *models.Board) (*models.BoardSession, error) {
	session := &models.BoardSession{Active: true, StartedAt: time.Now().UTC()}
	err := br.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Create(board)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errs.ErrBoardCreationFailed
		}
		session.BoardID = board.ID
		return tx.Create(session).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}
	return session, nil
}

func (br *BoardRepository) FindBoard(ctx context.Context, id string) (*models.Board, error) {
	var board models.Board
	if err := br.db.WithContext(ctx).Where("id = ?", id).First(&board).Error; err != nil {
		return nil, notFound(err)
	}
	return &board, nil
}

func (br *BoardRepository) LatestSession(ctx context.Context, boardID string) (*models.BoardSession, error) {
	var session models.BoardSession
	err := br.db.WithContext(ctx).Where("board_id = ?", boardID).Order("id DESC").First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest session: %w", err)
	}
	return &session, nil
}

func (br *BoardRepository) UpdateBoardData(ctx context.Context, id string, data models.BoardData) error {
	result := br.db.WithContext(ctx).Model(&models.Board{}).Where("id = ?", id).
		Updates(map[string]any{"data": data, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return fmt.Errorf("update board data: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.ErrBoardNotFound
	}
	return nil
}

// DeleteBoard soft deletes a board and ends its sessions.
func (br *BoardRepository) DeleteBoard(ctx context.Context, id string) error {
	return br.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&models.Board{})
		if result.Error != nil {
			return fmt.Errorf("delete board: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errs.ErrBoardNotFound
		}
		return closeSessions(tx, id)
	})
}

func (br *BoardRepository) AddCollaborator(ctx context.Context, boardID string, userID uint) error {
	collaborator := models.BoardCollaborator{BoardID: boardID, UserID: userID}
	err := br.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&collaborator).Error
	if err != nil {
		return fmt.Errorf("add collaborator: %w", err)
	}
	return nil
}

func (br *BoardRepository) IsCollaborator(ctx context.Context, boardID string, userID uint) (bool, error) {
	var count int64
	err := br.db.WithContext(ctx).Model(&models.BoardCollaborator{}).
		Where("board_id = ? AND user_id = ?", boardID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("is collaborator: %w", err)
	}
	return count > 0, nil
}

func (br *BoardRepository) OwnedBoards(ctx context.Context, userID uint) ([]models.Board, error) {
	var boards []models.Board
	err := br.db.WithContext(ctx).
		Where("owner_id = ?", userID).
		Order("updated_at DESC").
		Find(&boards).Error
	if err != nil {
		return nil, fmt.Errorf("owned boards: %w", err)
	}
	return boards, nil
}

func (br *BoardRepository) SharedBoards(ctx context.Context, userID uint) ([]models.Board, error) {
	var boards []models.Board
	err := br.db.WithContext(ctx).
		Where("id IN (SELECT board_id FROM board_collaborators WHERE user_id = ? AND deleted_at IS NULL)", userID).
		Where("owner_id <> ?", userID).
		Order("updated_at DESC").
		Find(&boards).Error
	if err != nil {
		return nil, fmt.Errorf("shared boards: %w", err)
	}
	return boards, nil
}

func (br *BoardRepository) FindBoards(ctx context.Context, ids []string) ([]models.Board, error) {
	var boards []models.Board
	if len(ids) == 0 {
		return boards, nil
	}
	if err := br.db.WithContext(ctx).Where("id IN ?", ids).Find(&boards).Error; err != nil {
		return nil, fmt.Errorf("find boards: %w", err)
	}
	return boards, nil
}

// EnsureActiveSession opens a session for the board unless one is active.
func (br *BoardRepository) EnsureActiveSession(ctx context.Context, boardID string) error {
	return br.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Board{}).Where("id = ?", boardID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errs.ErrBoardNotFound
		}
		if err := tx.Model(&models.BoardSession{}).
			Where("board_id = ? AND active = ?", boardID, true).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.Create(&models.BoardSession{BoardID: boardID, Active: true, StartedAt: time.Now().UTC()}).Error
	})
}

// CloseActiveSession ends every active session of the board.
func (br *BoardRepository) CloseActiveSession(ctx context.Context, boardID string) error {
	return closeSessions(br.db.WithContext(ctx), boardID)
}

func closeSessions(tx *gorm.DB, boardID string) error {
	err := tx.Model(&models.BoardSession{}).
		Where("board_id = ? AND active = ?", boardID, true).
		Updates(map[string]any{"active": false, "ended_at": time.Now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("close sessions: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.ErrBoardNotFound
	}
	return err
}
