package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"syncBoard/internal/errs"
	"syncBoard/internal/models"
	"syncBoard/internal/msgs"
	"syncBoard/internal/services"
	"syncBoard/internal/utils"
)

const (
	defaultChatLimit = 50
	maxChatLimit     = 500
)

// RoomDirectory reports the rooms that currently have members.
type RoomDirectory interface {
	ActiveRooms(ctx context.Context) (map[string]int, error)
}

type RestHandler struct {
	authService  *services.AuthenticationService
	boardService *services.BoardService
	rooms        RoomDirectory
}

func NewRestHandler(
	authService *services.AuthenticationService,
	boardService *services.BoardService,
	rooms RoomDirectory,
) *RestHandler {
	return &RestHandler{
		authService:  authService,
		boardService: boardService,
		rooms:        rooms,
	}
}

func (rh *RestHandler) Login(ctx *gin.Context) {
	var loginData models.LoginRequestBody
	if err := ctx.BindJSON(&loginData); err != nil {
		log.Println("Error login data json binding:", err)
		abortWithErrors(ctx, http.StatusBadRequest, errs.ErrInvalidRequestBody)
		return
	}

	loginResponse, loginErrs := rh.authService.Login(ctx.Request.Context(), &loginData)
	if len(loginErrs) > 0 {
		abortWithErrors(ctx, http.StatusBadRequest, loginErrs...)
		return
	}

	respond(ctx, http.StatusOK, msgs.MsgOperationSuccessful, loginResponse)
}

func (rh *RestHandler) Register(ctx *gin.Context) {
	var user models.User
	if err := ctx.BindJSON(&user); err != nil {
		abortWithErrors(ctx, http.StatusBadRequest, errs.ErrInvalidRequestBody)
		return
	}

	_, registerErrs := rh.authService.Register(ctx.Request.Context(), &user)
	if len(registerErrs) > 0 {
		abortWithErrors(ctx, http.StatusBadRequest, registerErrs...)
		return
	}

	respond(ctx, http.StatusOK, msgs.MsgUserCreatedSuccessfully, nil)
}

func (rh *RestHandler) CreateBoard(ctx *gin.Context) {
	var body models.CreateBoardRequestBody
	if err := ctx.BindJSON(&body); err != nil {
		abortWithErrors(ctx, http.StatusBadRequest, errs.ErrInvalidRequestBody)
		return
	}

	board, err := rh.boardService.CreateBoard(ctx.Request.Context(), currentUserID(ctx), body.Name)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, msgs.MsgBoardCreated, board)
}

func (rh *RestHandler) GetBoard(ctx *gin.Context) {
	board, err := rh.boardService.GetBoard(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, msgs.MsgOperationSuccessful, board)
}

func (rh *RestHandler) SaveBoard(ctx *gin.Context) {
	var body models.SaveBoardRequestBody
	if err := ctx.BindJSON(&body); err != nil {
		abortWithErrors(ctx, http.StatusBadRequest, errs.ErrInvalidRequestBody)
		return
	}

	if err := rh.boardService.SaveBoard(ctx.Request.Context(), currentUserID(ctx), ctx.Param("id"), body.Data); err != nil {
		abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, msgs.MsgBoardSaved, nil)
}

func (rh *RestHandler) DeleteBoard(ctx *gin.Context) {
	if err := rh.boardService.DeleteBoard(ctx.Request.Context(), currentUserID(ctx), ctx.Param("id")); err != nil {
		abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, msgs.MsgBoardDeleted, nil)
}

func (rh *RestHandler) JoinBoard(ctx *gin.Context) {
	board, err := rh.boardService.JoinBoard(ctx.Request.Context(), currentUserID(ctx), ctx.Param("id"))
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, msgs.MsgOperationSuccessful, board)
}

func (rh *RestHandler) ChatHistory(ctx *gin.Context) {
	limit := utils.ParsePositiveInt(ctx.Query("limit"), defaultChatLimit, maxChatLimit)
	history, err := rh.boardService.ChatHistory(ctx.Request.Context(), ctx.Param("id"), limit)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, msgs.MsgOperationSuccessful, history)
}

// Dashboard lists the caller's boards. Live member counts come from the
// relay and are left out when it cannot answer.
func (rh *RestHandler) Dashboard(ctx *gin.Context) {
	active := map[string]int{}
	if rh.rooms != nil {
		rooms, err := rh.rooms.ActiveRooms(ctx.Request.Context())
		if err != nil {
			log.Printf("RestHandler.Dashboard - active rooms unavailable: %v", err)
		} else {
			active = rooms
		}
	}

	dashboard, err := rh.boardService.Dashboard(ctx.Request.Context(), currentUserID(ctx), active)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, msgs.MsgOperationSuccessful, dashboard)
}

func (rh *RestHandler) Health(ctx *gin.Context) {
	status := gin.H{"status": "ok"}
	if rh.rooms != nil {
		if rooms, err := rh.rooms.ActiveRooms(ctx.Request.Context()); err == nil {
			status["rooms"] = len(rooms)
		} else {
			status["status"] = "degraded"
		}
	}
	ctx.JSON(http.StatusOK, status)
}
