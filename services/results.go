package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/langleague/langleague/models"
	"github.com/langleague/langleague/utils"
)

// SubmitExerciseInput is a scored exercise submission.
type SubmitExerciseInput struct {
	ExerciseID   uint   `json:"exercise_id"`
	ChapterID    uint   `json:"chapter_id"`
	ExerciseType string `json:"exercise_type"`
	Score        int    `json:"score"`
	UserAnswer   string `json:"user_answer"`
	Timezone     string `json:"tz"`
}

// ResultService records exercise results and triggers the completion
// fan-out. The result insert commits first; the gamification side effects
// run afterwards, each on its own best-effort terms.
type ResultService struct {
	db         *gorm.DB
	dispatcher *CompletionDispatcher
}

// NewResultService creates a new service instance.
func NewResultService(db *gorm.DB, dispatcher *CompletionDispatcher) *ResultService {
	return &ResultService{db: db, dispatcher: dispatcher}
}

// Submit validates and stores one exercise result, then fans the completion
// out to the streak, achievement, and progress handlers.
func (r *ResultService) Submit(userID uint, input SubmitExerciseInput) (models.ExerciseResult, error) {
	if !models.IsValidExerciseType(input.ExerciseType) {
		return models.ExerciseResult{}, invalid("exercisetype",
			fmt.Sprintf("unknown exercise type %q", input.ExerciseType))
	}
	if input.Score < 0 || input.Score > 100 {
		return models.ExerciseResult{}, invalid("score", "score must be between 0 and 100")
	}
	if input.ExerciseID == 0 {
		return models.ExerciseResult{}, invalid("exerciseid", "exercise id is required")
	}

	result := models.ExerciseResult{
		UserID:       userID,
		ExerciseID:   input.ExerciseID,
		ChapterID:    input.ChapterID,
		ExerciseType: input.ExerciseType,
		Score:        input.Score,
		UserAnswer:   utils.SanitizeText(input.UserAnswer),
		SubmittedAt:  time.Now(),
	}
	if err := r.db.Create(&result).Error; err != nil {
		return models.ExerciseResult{}, err
	}

	r.dispatcher.Dispatch(ExerciseCompleted{
		UserID:       userID,
		ResultID:     result.ID,
		ChapterID:    result.ChapterID,
		ExerciseType: result.ExerciseType,
		Score:        result.Score,
		Timezone:     ParseTimezone(input.Timezone),
	})

	return result, nil
}

// ResultStats summarizes a user's submission history.
type ResultStats struct {
	TotalSubmissions int64            `json:"total_submissions"`
	AverageScore     float64          `json:"average_score"`
	PerfectScores    int64            `json:"perfect_scores"`
	ByType           map[string]int64 `json:"by_type"`
}

// Stats returns per-user submission aggregates.
func (r *ResultService) Stats(userID uint) (ResultStats, error) {
	stats := ResultStats{ByType: map[string]int64{}}

	if err := r.db.Model(&models.ExerciseResult{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalSubmissions).Error; err != nil {
		return ResultStats{}, err
	}
	if stats.TotalSubmissions == 0 {
		return stats, nil
	}

	if err := r.db.Model(&models.ExerciseResult{}).
		Where("user_id = ?", userID).
		Select("AVG(score)").
		Scan(&stats.AverageScore).Error; err != nil {
		return ResultStats{}, err
	}
	if err := r.db.Model(&models.ExerciseResult{}).
		Where("user_id = ? AND score = 100", userID).
		Count(&stats.PerfectScores).Error; err != nil {
		return ResultStats{}, err
	}

	type typeCount struct {
		ExerciseType string
		N            int64
	}
	var rows []typeCount
	if err := r.db.Model(&models.ExerciseResult{}).
		Where("user_id = ?", userID).
		Select("exercise_type, COUNT(*) AS n").
		Group("exercise_type").
		Scan(&rows).Error; err != nil {
		return ResultStats{}, err
	}
	for _, row := range rows {
		stats.ByType[row.ExerciseType] = row.N
	}
	return stats, nil
}

// RecentForUser returns the user's latest results.
func (r *ResultService) RecentForUser(userID uint, limit int) ([]models.ExerciseResult, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var results []models.ExerciseResult
	err := r.db.Where("user_id = ?", userID).
		Order("submitted_at DESC").
		Limit(limit).
		Find(&results).Error
	return results, err
}
