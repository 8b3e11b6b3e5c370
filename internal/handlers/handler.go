package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"syncBoard/internal/errs"
	"syncBoard/internal/models"
	"syncBoard/internal/msgs"
)

const userIDKey = "user_id"

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrBoardNotFound), errors.Is(err, errs.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrBoardForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errs.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrInvalidRequestBody),
		errors.Is(err, errs.ErrInvalidBoardName),
		errors.Is(err, errs.ErrInvalidBoardData),
		errors.Is(err, errs.ErrInvalidParams):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithErrors(ctx *gin.Context, status int, errList ...error) {
	ctx.AbortWithStatusJSON(status, models.Response{
		Success: false,
		Message: msgs.MsgOperationFailed,
		Errors:  errList,
	})
}

// abortWithError answers with the status matching err. Internal errors are
// logged and not exposed.
func abortWithError(ctx *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s - %v", ctx.Request.Method, ctx.FullPath(), err)
		err = errors.New(msgs.MsgOperationFailed)
	}
	abortWithErrors(ctx, status, err)
}

func respond(ctx *gin.Context, status int, message string, data interface{}) {
	ctx.JSON(status, models.Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func currentUserID(ctx *gin.Context) uint {
	return ctx.GetUint(userIDKey)
}
