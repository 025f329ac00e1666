package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langleague/langleague/middleware"
	"github.com/langleague/langleague/services"
	"github.com/langleague/langleague/utils"
)

// StreakController exposes the consecutive-day study streak.
type StreakController struct {
	streaks *services.StreakService
}

func NewStreakController(streaks *services.StreakService) *StreakController {
	return &StreakController{streaks: streaks}
}

// Status returns the user's current and longest streak, plus whether the
// streak is still alive and whether today already counted. Evaluation is
// relative to the tz query parameter; invalid or absent falls back to UTC.
func (s *StreakController) Status(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	loc := services.ParseTimezone(ctx.Query("tz"))

	status, err := s.streaks.Status(userID)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	studiedToday, err := s.streaks.HasStudiedToday(userID, loc)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	active, err := s.streaks.IsStreakActive(userID, loc)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{
		"current_streak": status.CurrentStreak,
		"longest_streak": status.LongestStreak,
		"studied_today":  studiedToday,
		"active":         active,
	})
}
