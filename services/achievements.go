package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/langleague/langleague/models"
	"github.com/langleague/langleague/utils"
)

// Milestone thresholds. Checks are exact-equality on purpose: a user whose
// re-derived count jumps past a threshold between two evaluations does not
// receive that badge retroactively.
var (
	totalExerciseMilestones = []int64{10, 50, 100, 500, 1000}
	typeExerciseMilestones  = []int64{10, 25, 50, 100}
	perfectScoreMilestones  = []int64{10, 50, 100}
	streakMilestones        = []int{1, 7, 30, 60, 100, 300}
)

var streakMilestoneTitles = map[int]string{
	1:   "First Step",
	7:   "One Week Strong",
	30:  "Thirty-Day Scholar",
	60:  "Two-Month Devotee",
	100: "Hundred-Day Habit",
	300: "Living Legend",
}

// ActivityContext describes the activity that triggered an evaluation. The
// engine itself re-derives all counters from storage; the context only
// narrows which rule groups apply.
type ActivityContext struct {
	ExerciseType string
	Score        int
}

// AchievementService grants milestone achievements exactly once per user.
// Uniqueness rides on the (user_id, achievement_id) index: a concurrent
// duplicate insert comes back as gorm.ErrDuplicatedKey and is treated as
// "already granted", never as a failure.
type AchievementService struct {
	db      *gorm.DB
	streaks *StreakService
}

// NewAchievementService creates a new service instance.
func NewAchievementService(db *gorm.DB, streaks *StreakService) *AchievementService {
	return &AchievementService{db: db, streaks: streaks}
}

// Evaluate runs every milestone rule against the user's current aggregate
// counters and returns the achievements granted by this call.
func (a *AchievementService) Evaluate(userID uint, actx ActivityContext) ([]models.Achievement, error) {
	var awarded []models.Achievement

	granted, err := a.checkTotalExercises(userID)
	if err != nil {
		return awarded, err
	}
	awarded = append(awarded, granted...)

	if actx.ExerciseType != "" {
		granted, err = a.checkExerciseType(userID, actx.ExerciseType)
		if err != nil {
			return awarded, err
		}
		awarded = append(awarded, granted...)
	}

	if actx.Score == 100 {
		granted, err = a.checkPerfectScores(userID, actx.ExerciseType)
		if err != nil {
			return awarded, err
		}
		awarded = append(awarded, granted...)
	}

	granted, err = a.checkAverageScore(userID)
	if err != nil {
		return awarded, err
	}
	awarded = append(awarded, granted...)

	granted, err = a.checkStreaks(userID)
	if err != nil {
		return awarded, err
	}
	awarded = append(awarded, granted...)

	return awarded, nil
}

// ListForUser returns every grant the user holds, newest first.
func (a *AchievementService) ListForUser(userID uint) ([]models.UserAchievement, error) {
	var grants []models.UserAchievement
	err := a.db.Preload("Achievement").
		Where("user_id = ?", userID).
		Order("awarded_at DESC").
		Find(&grants).Error
	return grants, err
}

func (a *AchievementService) checkTotalExercises(userID uint) ([]models.Achievement, error) {
	total, err := a.countResults(userID, "")
	if err != nil {
		return nil, err
	}

	var awarded []models.Achievement
	for _, milestone := range totalExerciseMilestones {
		if total != milestone {
			continue
		}
		granted, err := a.award(userID,
			fmt.Sprintf("Completed %d Exercises", milestone),
			fmt.Sprintf("You have completed %d exercises.", milestone))
		if err != nil {
			return awarded, err
		}
		if granted != nil {
			awarded = append(awarded, *granted)
		}
	}
	return awarded, nil
}

func (a *AchievementService) checkExerciseType(userID uint, exerciseType string) ([]models.Achievement, error) {
	count, err := a.countResults(userID, exerciseType)
	if err != nil {
		return nil, err
	}

	var awarded []models.Achievement
	for _, milestone := range typeExerciseMilestones {
		if count != milestone {
			continue
		}
		granted, err := a.award(userID,
			fmt.Sprintf("%s Master %d", typeName(exerciseType), milestone),
			fmt.Sprintf("Completed %d %s exercises.", milestone, typeName(exerciseType)))
		if err != nil {
			return awarded, err
		}
		if granted != nil {
			awarded = append(awarded, *granted)
		}
	}
	return awarded, nil
}

func (a *AchievementService) checkPerfectScores(userID uint, exerciseType string) ([]models.Achievement, error) {
	var awarded []models.Achievement

	var totalPerfect int64
	err := a.db.Model(&models.ExerciseResult{}).
		Where("user_id = ? AND score = 100", userID).
		Count(&totalPerfect).Error
	if err != nil {
		return nil, err
	}

	if totalPerfect == 1 {
		granted, err := a.award(userID, "First Perfect Score", "Scored a perfect 100 for the first time!")
		if err != nil {
			return awarded, err
		}
		if granted != nil {
			awarded = append(awarded, *granted)
		}
	}

	for _, milestone := range perfectScoreMilestones {
		if totalPerfect != milestone {
			continue
		}
		granted, err := a.award(userID,
			fmt.Sprintf("Perfectionist %d", milestone),
			fmt.Sprintf("Scored 100 on %d exercises!", milestone))
		if err != nil {
			return awarded, err
		}
		if granted != nil {
			awarded = append(awarded, *granted)
		}
	}

	if exerciseType != "" {
		var typePerfect int64
		err := a.db.Model(&models.ExerciseResult{}).
			Where("user_id = ? AND exercise_type = ? AND score = 100", userID, exerciseType).
			Count(&typePerfect).Error
		if err != nil {
			return awarded, err
		}
		if typePerfect == 1 {
			granted, err := a.award(userID,
				fmt.Sprintf("%s Perfectionist", typeName(exerciseType)),
				fmt.Sprintf("First perfect score on a %s exercise!", typeName(exerciseType)))
			if err != nil {
				return awarded, err
			}
			if granted != nil {
				awarded = append(awarded, *granted)
			}
		}
	}

	return awarded, nil
}

// checkAverageScore grants at most the single highest qualifying tier per
// invocation, and only once the user has at least 20 results.
func (a *AchievementService) checkAverageScore(userID uint) ([]models.Achievement, error) {
	total, err := a.countResults(userID, "")
	if err != nil {
		return nil, err
	}
	if total < 20 {
		return nil, nil
	}

	var avg *float64
	err = a.db.Model(&models.ExerciseResult{}).
		Where("user_id = ?", userID).
		Select("AVG(score)").
		Scan(&avg).Error
	if err != nil || avg == nil {
		return nil, err
	}

	var title, desc string
	switch {
	case *avg >= 90:
		title, desc = "Excellent Student", "Maintained an average score above 90!"
	case *avg >= 80:
		title, desc = "Good Student", "Maintained an average score above 80!"
	default:
		return nil, nil
	}

	granted, err := a.award(userID, title, desc)
	if err != nil || granted == nil {
		return nil, err
	}
	return []models.Achievement{*granted}, nil
}

// checkStreaks matches milestones against both the current and the longest
// streak, so a broken-then-rebuilt streak cannot miss a longest-streak badge.
func (a *AchievementService) checkStreaks(userID uint) ([]models.Achievement, error) {
	status, err := a.streaks.Status(userID)
	if err != nil {
		return nil, err
	}
	if status.CurrentStreak == 0 && status.LongestStreak == 0 {
		return nil, nil
	}

	var awarded []models.Achievement
	for _, milestone := range streakMilestones {
		if status.CurrentStreak != milestone && status.LongestStreak != milestone {
			continue
		}
		granted, err := a.award(userID,
			streakMilestoneTitles[milestone],
			fmt.Sprintf("Studied %d day(s) in a row.", milestone))
		if err != nil {
			return awarded, err
		}
		if granted != nil {
			awarded = append(awarded, *granted)
			utils.Sugar.Infow("streak achievement awarded",
				"user_id", userID, "milestone", milestone)
		}
	}
	return awarded, nil
}

// award grants the titled achievement to the user unless already held.
// Returns nil without error when the grant already exists.
func (a *AchievementService) award(userID uint, title, description string) (*models.Achievement, error) {
	achievement, err := a.findOrCreate(title, description)
	if err != nil {
		return nil, err
	}

	var existing int64
	err = a.db.Model(&models.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievement.ID).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, nil
	}

	grant := models.UserAchievement{
		UserID:        userID,
		AchievementID: achievement.ID,
		AwardedAt:     time.Now(),
	}
	if err := a.db.Create(&grant).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race to a concurrent evaluation; the grant exists.
			return nil, nil
		}
		return nil, err
	}

	utils.Sugar.Infow("achievement awarded", "user_id", userID, "title", title)
	return &achievement, nil
}

// findOrCreate resolves a catalog entry by its unique title, creating it the
// first time the milestone ever fires anywhere.
func (a *AchievementService) findOrCreate(title, description string) (models.Achievement, error) {
	var achievement models.Achievement
	err := a.db.Where("title = ?", title).First(&achievement).Error
	if err == nil {
		return achievement, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Achievement{}, err
	}

	achievement = models.Achievement{Title: title, Description: description}
	if err := a.db.Create(&achievement).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = a.db.Where("title = ?", title).First(&achievement).Error
		}
		if err != nil {
			return models.Achievement{}, err
		}
	}
	return achievement, nil
}

func (a *AchievementService) countResults(userID uint, exerciseType string) (int64, error) {
	q := a.db.Model(&models.ExerciseResult{}).Where("user_id = ?", userID)
	if exerciseType != "" {
		q = q.Where("exercise_type = ?", exerciseType)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

// AchievementStats aggregates a user's exercise and achievement counters.
type AchievementStats struct {
	TotalExercises     int64    `json:"total_exercises"`
	ListeningExercises int64    `json:"listening_exercises"`
	SpeakingExercises  int64    `json:"speaking_exercises"`
	ReadingExercises   int64    `json:"reading_exercises"`
	WritingExercises   int64    `json:"writing_exercises"`
	PerfectScores      int64    `json:"perfect_scores"`
	AverageScore       *float64 `json:"average_score"`
	TotalAchievements  int64    `json:"total_achievements"`
	CurrentStreak      int      `json:"current_streak"`
	LongestStreak      int      `json:"longest_streak"`
}

// Stats returns the user's aggregate counters used by the milestone rules.
func (a *AchievementService) Stats(userID uint) (AchievementStats, error) {
	var stats AchievementStats
	var err error

	if stats.TotalExercises, err = a.countResults(userID, ""); err != nil {
		return stats, err
	}
	if stats.ListeningExercises, err = a.countResults(userID, models.ExerciseListening); err != nil {
		return stats, err
	}
	if stats.SpeakingExercises, err = a.countResults(userID, models.ExerciseSpeaking); err != nil {
		return stats, err
	}
	if stats.ReadingExercises, err = a.countResults(userID, models.ExerciseReading); err != nil {
		return stats, err
	}
	if stats.WritingExercises, err = a.countResults(userID, models.ExerciseWriting); err != nil {
		return stats, err
	}

	err = a.db.Model(&models.ExerciseResult{}).
		Where("user_id = ? AND score = 100", userID).
		Count(&stats.PerfectScores).Error
	if err != nil {
		return stats, err
	}

	if stats.TotalExercises > 0 {
		err = a.db.Model(&models.ExerciseResult{}).
			Where("user_id = ?", userID).
			Select("AVG(score)").
			Scan(&stats.AverageScore).Error
		if err != nil {
			return stats, err
		}
	}

	err = a.db.Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalAchievements).Error
	if err != nil {
		return stats, err
	}

	status, err := a.streaks.Status(userID)
	if err != nil {
		return stats, err
	}
	stats.CurrentStreak = status.CurrentStreak
	stats.LongestStreak = status.LongestStreak

	return stats, nil
}

func typeName(exerciseType string) string {
	switch exerciseType {
	case models.ExerciseListening:
		return "Listening"
	case models.ExerciseSpeaking:
		return "Speaking"
	case models.ExerciseReading:
		return "Reading"
	case models.ExerciseWriting:
		return "Writing"
	default:
		return exerciseType
	}
}
