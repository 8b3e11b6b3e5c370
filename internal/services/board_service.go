package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"syncBoard/internal/errs"
	"syncBoard/internal/models"
	"syncBoard/internal/repositories"
	"syncBoard/internal/validators"
)

// BoardService is the board collaborator of both the REST API and the relay.
type BoardService struct {
	boardRepo   *repositories.BoardRepository
	chatService *ChatService
}

func NewBoardService(boardRepo *repositories.BoardRepository, chatService *ChatService) *BoardService {
	return &BoardService{
		boardRepo:   boardRepo,
		chatService: chatService,
	}
}

func (bs *BoardService) CreateBoard(ctx context.Context, ownerID uint, name string) (*models.BoardResponse, error) {
	if err := validators.ValidateBoardName(name); err != nil {
		return nil, err
	}
	board := &models.Board{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(name),
		OwnerID: ownerID,
	}
	session, err := bs.boardRepo.CreateBoard(ctx, board)
	if err != nil {
		return nil, err
	}
	return &models.BoardResponse{Board: *board, Session: session}, nil
}

// GetBoard returns a board with its most recent session.
func (bs *BoardService) GetBoard(ctx context.Context, id string) (*models.BoardResponse, error) {
	board, err := bs.boardRepo.FindBoard(ctx, id)
	if err != nil {
		return nil, err
	}
	session, err := bs.boardRepo.LatestSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.BoardResponse{Board: *board, Session: session}, nil
}

// SaveBoard replaces the stored document. Only the owner and collaborators
// may save.
func (bs *BoardService) SaveBoard(ctx context.Context, userID uint, id string, data models.BoardData) error {
	if err := validators.ValidateBoardData(data); err != nil {
		return err
	}
	board, err := bs.boardRepo.FindBoard(ctx, id)
	if err != nil {
		return err
	}
	if board.OwnerID != userID {
		ok, err := bs.boardRepo.IsCollaborator(ctx, id, userID)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrBoardForbidden
		}
	}
	return bs.boardRepo.UpdateBoardData(ctx, id, data)
}

// DeleteBoard removes a board. Only the owner may delete.
func (bs *BoardService) DeleteBoard(ctx context.Context, userID uint, id string) error {
	board, err := bs.boardRepo.FindBoard(ctx, id)
	if err != nil {
		return err
	}
	if board.OwnerID != userID {
		return errs.ErrBoardForbidden
	}
	return bs.boardRepo.DeleteBoard(ctx, id)
}

// JoinBoard records the user as a collaborator. Owners are not recorded.
func (bs *BoardService) JoinBoard(ctx context.Context, userID uint, id string) (*models.BoardResponse, error) {
	response, err := bs.GetBoard(ctx, id)
	if err != nil {
		return nil, err
	}
	if response.Board.OwnerID != userID {
		if err := bs.boardRepo.AddCollaborator(ctx, id, userID); err != nil {
			return nil, err
		}
	}
	return response, nil
}

func (bs *BoardService) ChatHistory(ctx context.Context, id string, limit int) ([]models.ChatMessage, error) {
	if _, err := bs.boardRepo.FindBoard(ctx, id); err != nil {
		return nil, err
	}
	return bs.chatService.LoadChatHistory(ctx, id, limit)
}

// Dashboard lists the user's boards and the boards with live participants.
// activeRooms maps room ids to their current member count.
func (bs *BoardService) Dashboard(ctx context.Context, userID uint, activeRooms map[string]int) (*models.DashboardResponse, error) {
	owned, err := bs.boardRepo.OwnedBoards(ctx, userID)
	if err != nil {
		return nil, err
	}
	shared, err := bs.boardRepo.SharedBoards(ctx, userID)
	if err != nil {
		return nil, err
	}

	visible := make(map[string]bool, len(owned)+len(shared))
	for _, b := range owned {
		visible[b.ID] = true
	}
	for _, b := range shared {
		visible[b.ID] = true
	}
	ids := make([]string, 0, len(activeRooms))
	for id, n := range activeRooms {
		if n > 0 && visible[id] {
			ids = append(ids, id)
		}
	}
	active, err := bs.boardRepo.FindBoards(ctx, ids)
	if err != nil {
		return nil, err
	}

	response := &models.DashboardResponse{
		ActiveNow:    make([]models.DashboardBoard, 0, len(active)),
		MyBoards:     owned,
		SharedWithMe: shared,
	}
	for _, b := range active {
		response.ActiveNow = append(response.ActiveNow, models.DashboardBoard{Board: b, ActiveUsers: activeRooms[b.ID]})
	}
	sort.Slice(response.ActiveNow, func(i, j int) bool {
		if response.ActiveNow[i].ActiveUsers != response.ActiveNow[j].ActiveUsers {
			return response.ActiveNow[i].ActiveUsers > response.ActiveNow[j].ActiveUsers
		}
		return response.ActiveNow[i].Board.ID < response.ActiveNow[j].Board.ID
	})
	return response, nil
}

func (bs *BoardService) EnsureActiveSession(ctx context.Context, boardID string) error {
	return bs.boardRepo.EnsureActiveSession(ctx, boardID)
}

func (bs *BoardService) CloseActiveSession(ctx context.Context, boardID string) error {
	return bs.boardRepo.CloseActiveSession(ctx, boardID)
}

func (bs *BoardService) AppendChatMessage(ctx context.Context, message *models.ChatMessage) error {
	return bs.chatService.AppendChatMessage(ctx, message)
}

func (bs *BoardService) LoadChatHistory(ctx context.Context, boardID string, limit int) ([]models.ChatMessage, error) {
	return bs.chatService.LoadChatHistory(ctx, boardID, limit)
}

func (bs *BoardService) LoadBoardData(ctx context.Context, boardID string) (models.BoardData, error) {
	board, err := bs.boardRepo.FindBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return board.Data, nil
}

// SaveBoardData stores the snapshot a room leaves behind. Rooms without a
// board record are not persisted.
func (bs *BoardService) SaveBoardData(ctx context.Context, boardID string, data models.BoardData) error {
	err := bs.boardRepo.UpdateBoardData(ctx, boardID, data)
	if errors.Is(err, errs.ErrBoardNotFound) {
		return nil
	}
	return err
}
