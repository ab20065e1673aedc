package webapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/parking/pkg/occupancy"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorCodeUnauthorized   = "unauthorized"
	errorCodeForbidden      = "forbidden"
	errorCodeNotFound       = "not_found"
	errorCodeConflict       = "conflict"
	errorCodeInvalidInput   = "invalid_input"
	errorCodeInvalidPayload = "invalid_payload"
	errorCodeInternal       = "internal_error"
)

// statusForError maps an error kind to an HTTP status and error code.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, occupancy.ErrAdminRequired):
		return http.StatusForbidden, errorCodeForbidden
	case errors.Is(err, occupancy.ErrUnauthorized):
		return http.StatusUnauthorized, errorCodeUnauthorized
	case errors.Is(err, occupancy.ErrNotFound):
		return http.StatusNotFound, errorCodeNotFound
	case errors.Is(err, occupancy.ErrConflict):
		return http.StatusConflict, errorCodeConflict
	case errors.Is(err, occupancy.ErrInvalidInput):
		return http.StatusBadRequest, errorCodeInvalidInput
	default:
		return http.StatusInternalServerError, errorCodeInternal
	}
}

// publicMessage drops store operation codes from the message shown to clients.
func publicMessage(err error) string {
	var operationError occupancy.OperationError
	if errors.As(err, &operationError) && operationError.Unwrap() != nil {
		return operationError.Unwrap().Error()
	}
	return err.Error()
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	status, code := statusForError(err)
	if status == http.StatusInternalServerError {
		handler.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		ctx.JSON(status, errorResponse(code, "internal error"))
		return
	}
	ctx.JSON(status, errorResponse(code, publicMessage(err)))
}

func (handler *httpHandler) abortWithError(ctx *gin.Context, err error) {
	handler.respondError(ctx, err)
	ctx.Abort()
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
