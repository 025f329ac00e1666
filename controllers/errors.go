package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langleague/langleague/services"
	"github.com/langleague/langleague/utils"
)

// serviceError maps service layer failures onto the response envelope.
// Validation problems carry their reason code in the message; overlap is a
// conflict the client can resolve by picking another interval; contention
// means retries were exhausted and the client should simply try again.
func serviceError(ctx *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.Error(ctx, http.StatusBadRequest, 40020, verr.Message)
	case errors.Is(err, services.ErrSessionOverlap):
		utils.Error(ctx, http.StatusConflict, 40901, "session overlaps an existing session")
	case errors.Is(err, services.ErrStreakContention):
		utils.Error(ctx, http.StatusServiceUnavailable, 50301, "temporary contention, please retry")
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40404, "not found")
	case errors.Is(err, services.ErrNotOwner):
		utils.Error(ctx, http.StatusForbidden, 40301, "forbidden")
	default:
		utils.Sugar.Errorf("unhandled service error: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal error")
	}
}
