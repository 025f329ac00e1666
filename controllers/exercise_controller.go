package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/langleague/langleague/middleware"
	"github.com/langleague/langleague/services"
	"github.com/langleague/langleague/utils"
)

// ExerciseController accepts scored exercise submissions and exposes
// per-user submission stats. Submitting is the entry point of the
// completion pipeline: the result is stored, then streaks, achievements
// and chapter progress react to it.
type ExerciseController struct {
	results *services.ResultService
}

func NewExerciseController(results *services.ResultService) *ExerciseController {
	return &ExerciseController{results: results}
}

// Submit stores one scored attempt and triggers the completion fan-out.
func (e *ExerciseController) Submit(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var input services.SubmitExerciseInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "invalid request payload")
		return
	}

	result, err := e.results.Submit(userID, input)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, result)
}

// Recent lists the user's latest submissions.
func (e *ExerciseController) Recent(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	limit := 50
	if v := strings.TrimSpace(ctx.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	results, err := e.results.RecentForUser(userID, limit)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, results)
}

// Stats returns submission aggregates for the authenticated user.
func (e *ExerciseController) Stats(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	stats, err := e.results.Stats(userID)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, stats)
}
