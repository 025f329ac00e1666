package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langleague/langleague/middleware"
	"github.com/langleague/langleague/services"
	"github.com/langleague/langleague/utils"
)

// AchievementController lists granted achievements and aggregate stats.
type AchievementController struct {
	achievements *services.AchievementService
}

func NewAchievementController(achievements *services.AchievementService) *AchievementController {
	return &AchievementController{achievements: achievements}
}

// List returns the achievements the user holds, newest first.
func (a *AchievementController) List(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	granted, err := a.achievements.ListForUser(userID)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, granted)
}

// Stats returns per-user achievement aggregates.
func (a *AchievementController) Stats(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	stats, err := a.achievements.Stats(userID)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, stats)
}
