package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/langleague/langleague/models"
)

func init() {
	// config.Load fatals without a secret; cache helpers pull config lazily.
	os.Setenv("JWT_SECRET", "test-secret")
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "langleague.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Chapter{},
		&models.ExerciseResult{},
		&models.StudySession{},
		&models.LearningStreak{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.ReviewItem{},
		&models.ChapterProgress{},
		&models.BookProgress{},
	))
	return db
}

func seedResults(t *testing.T, db *gorm.DB, userID uint, exerciseType string, score, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		result := models.ExerciseResult{
			UserID:       userID,
			ExerciseID:   uint(1000 + i),
			ExerciseType: exerciseType,
			Score:        score,
			SubmittedAt:  time.Now(),
		}
		require.NoError(t, db.Create(&result).Error)
	}
}

func TestStreakRecordActivityIdempotentSameDay(t *testing.T) {
	svc := NewStreakService(newTestDB(t))

	first, err := svc.RecordActivity(1, time.UTC)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, 1, first.CurrentStreak)
	assert.Equal(t, 1, first.LongestStreak)

	second, err := svc.RecordActivity(1, time.UTC)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, 1, second.CurrentStreak)

	studied, err := svc.HasStudiedToday(1, time.UTC)
	require.NoError(t, err)
	assert.True(t, studied)

	active, err := svc.IsStreakActive(1, time.UTC)
	require.NoError(t, err)
	assert.True(t, active)
}

// seedStreakRow plants a streak row as of yesterday so the next activity
// must go through the versioned update.
func seedStreakRow(t *testing.T, db *gorm.DB, userID uint, current, longest int) {
	t.Helper()
	yesterday := time.Now().AddDate(0, 0, -1)
	row := models.LearningStreak{
		UserID:        userID,
		CurrentStreak: current,
		LongestStreak: longest,
		LastStudyAt:   &yesterday,
	}
	require.NoError(t, db.Create(&row).Error)
}

// bumpStreakVersion simulates a competing writer touching the row between
// the engine's load and its versioned update.
func bumpStreakVersion(t *testing.T, db *gorm.DB, userID uint) {
	t.Helper()
	require.NoError(t, db.Session(&gorm.Session{NewDB: true}).
		Model(&models.LearningStreak{}).
		Where("user_id = ?", userID).
		Update("version", gorm.Expr("version + 1")).Error)
}

func TestStreakRetriesAfterVersionConflict(t *testing.T) {
	db := newTestDB(t)
	svc := NewStreakService(db)
	seedStreakRow(t, db, 1, 3, 5)

	conflicts := 0
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("competing_writer", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*models.LearningStreak); !ok {
			return
		}
		if conflicts >= 1 {
			return
		}
		conflicts++
		bumpStreakVersion(t, db, 1)
	}))

	status, err := svc.RecordActivity(1, time.UTC)
	require.NoError(t, err, "one stale read must be absorbed by a retry")
	assert.Equal(t, 1, conflicts)
	assert.True(t, status.Changed)
	assert.Equal(t, 4, status.CurrentStreak)
	assert.Equal(t, 5, status.LongestStreak)

	after, err := svc.Status(1)
	require.NoError(t, err)
	assert.Equal(t, 4, after.CurrentStreak, "the increment was not lost")
}

func TestStreakContentionAfterExhaustedRetries(t *testing.T) {
	db := newTestDB(t)
	svc := NewStreakService(db)
	seedStreakRow(t, db, 1, 3, 5)

	// Every load is immediately stale: all three attempts lose the
	// version check.
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("relentless_writer", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*models.LearningStreak); !ok {
			return
		}
		bumpStreakVersion(t, db, 1)
	}))

	_, err := svc.RecordActivity(1, time.UTC)
	assert.ErrorIs(t, err, ErrStreakContention)

	// The drop is loud, never silent: the stored streak is untouched.
	require.NoError(t, db.Callback().Query().Remove("relentless_writer"))
	status, err := svc.Status(1)
	require.NoError(t, err)
	assert.Equal(t, 3, status.CurrentStreak)
}

func TestStreakStatusUnknownUser(t *testing.T) {
	svc := NewStreakService(newTestDB(t))

	status, err := svc.Status(99)
	require.NoError(t, err)
	assert.Equal(t, 0, status.CurrentStreak)
	assert.Equal(t, 0, status.LongestStreak)

	studied, err := svc.HasStudiedToday(99, time.UTC)
	require.NoError(t, err)
	assert.False(t, studied)
}

func collectTitles(achievements []models.Achievement) []string {
	titles := make([]string, 0, len(achievements))
	for _, a := range achievements {
		titles = append(titles, a.Title)
	}
	return titles
}

func TestAchievementExactMilestoneAwardedOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, NewStreakService(db))
	seedResults(t, db, 1, models.ExerciseReading, 80, 10)

	awarded, err := svc.Evaluate(1, ActivityContext{ExerciseType: models.ExerciseReading, Score: 80})
	require.NoError(t, err)
	titles := collectTitles(awarded)
	assert.Contains(t, titles, "Completed 10 Exercises")
	assert.Contains(t, titles, "Reading Master 10")
	assert.Len(t, titles, 2)

	// Same counters, second evaluation: nothing new.
	again, err := svc.Evaluate(1, ActivityContext{ExerciseType: models.ExerciseReading, Score: 80})
	require.NoError(t, err)
	assert.Empty(t, again)

	grants, err := svc.ListForUser(1)
	require.NoError(t, err)
	assert.Len(t, grants, 2)
}

func TestAchievementSkippedMilestoneNotRetroactive(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, NewStreakService(db))

	// The counter lands on 11, having jumped past the 10 milestone.
	seedResults(t, db, 1, models.ExerciseListening, 70, 11)

	awarded, err := svc.Evaluate(1, ActivityContext{ExerciseType: models.ExerciseListening, Score: 70})
	require.NoError(t, err)
	assert.Empty(t, awarded)
}

// A competing completion can insert the grant between the existence check
// and the insert. The unique index catches the loser, and the duplicate key
// must read as "already granted", never as a failure.
func TestAchievementGrantUniqueUnderRace(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, NewStreakService(db))
	seedResults(t, db, 1, models.ExerciseReading, 80, 10)

	injected := false
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("competing_grant", func(tx *gorm.DB) {
		grant, ok := tx.Statement.Dest.(*models.UserAchievement)
		if !ok || injected {
			return
		}
		injected = true
		require.NoError(t, db.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO user_achievements (user_id, achievement_id, awarded_at) VALUES (?, ?, ?)",
			grant.UserID, grant.AchievementID, time.Now()).Error)
	}))

	awarded, err := svc.Evaluate(1, ActivityContext{ExerciseType: models.ExerciseReading, Score: 80})
	require.NoError(t, err, "losing the insert race is not an error")
	require.True(t, injected, "duplicate insert path was taken")

	// The raced grant is reported as already granted; the other one lands.
	titles := collectTitles(awarded)
	assert.NotContains(t, titles, "Completed 10 Exercises")
	assert.Contains(t, titles, "Reading Master 10")

	grants, err := svc.ListForUser(1)
	require.NoError(t, err)
	assert.Len(t, grants, 2, "exactly one row per (user, achievement)")
}

func TestUserAchievementDuplicateInsertRejected(t *testing.T) {
	db := newTestDB(t)

	achievement := models.Achievement{Title: "First Step", Description: "Studied one day."}
	require.NoError(t, db.Create(&achievement).Error)

	grant := models.UserAchievement{UserID: 1, AchievementID: achievement.ID, AwardedAt: time.Now()}
	require.NoError(t, db.Create(&grant).Error)

	dup := models.UserAchievement{UserID: 1, AchievementID: achievement.ID, AwardedAt: time.Now()}
	assert.ErrorIs(t, db.Create(&dup).Error, gorm.ErrDuplicatedKey)
}

func TestAchievementFirstPerfectScore(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, NewStreakService(db))
	seedResults(t, db, 1, models.ExerciseWriting, 100, 1)

	awarded, err := svc.Evaluate(1, ActivityContext{ExerciseType: models.ExerciseWriting, Score: 100})
	require.NoError(t, err)
	titles := collectTitles(awarded)
	assert.Contains(t, titles, "First Perfect Score")
	assert.Contains(t, titles, "Writing Perfectionist")
}

func TestAchievementAverageScoreNeedsTwentyResults(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, NewStreakService(db))

	seedResults(t, db, 1, models.ExerciseReading, 95, 19)
	awarded, err := svc.Evaluate(1, ActivityContext{ExerciseType: models.ExerciseReading, Score: 95})
	require.NoError(t, err)
	assert.NotContains(t, collectTitles(awarded), "Excellent Student")

	seedResults(t, db, 1, models.ExerciseReading, 95, 1)
	awarded, err = svc.Evaluate(1, ActivityContext{ExerciseType: models.ExerciseReading, Score: 95})
	require.NoError(t, err)
	titles := collectTitles(awarded)
	assert.Contains(t, titles, "Excellent Student")
	// Only the highest qualifying tier is granted.
	assert.NotContains(t, titles, "Good Student")
}

func TestAchievementStats(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, NewStreakService(db))
	seedResults(t, db, 1, models.ExerciseReading, 100, 3)
	seedResults(t, db, 1, models.ExerciseWriting, 60, 2)

	stats, err := svc.Stats(1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TotalExercises)
	assert.Equal(t, int64(3), stats.ReadingExercises)
	assert.Equal(t, int64(2), stats.WritingExercises)
	assert.Equal(t, int64(3), stats.PerfectScores)
	require.NotNil(t, stats.AverageScore)
	assert.InDelta(t, 84.0, *stats.AverageScore, 0.01)
}

func TestSessionOverlapRejected(t *testing.T) {
	svc := NewSessionService(newTestDB(t))
	now := time.Now()

	_, err := svc.Create(1, SessionInput{
		StartAt: now.Add(-2 * time.Hour),
		EndAt:   now.Add(-1 * time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.Create(1, SessionInput{
		StartAt: now.Add(-90 * time.Minute),
		EndAt:   now.Add(-30 * time.Minute),
	})
	assert.ErrorIs(t, err, ErrSessionOverlap)

	// Back-to-back intervals do not overlap.
	_, err = svc.Create(1, SessionInput{
		StartAt: now.Add(-1 * time.Hour),
		EndAt:   now.Add(-30 * time.Minute),
	})
	assert.NoError(t, err)

	// Another user is free to use the same interval.
	_, err = svc.Create(2, SessionInput{
		StartAt: now.Add(-2 * time.Hour),
		EndAt:   now.Add(-1 * time.Hour),
	})
	assert.NoError(t, err)
}

func TestSessionUpdateExcludesOwnInterval(t *testing.T) {
	svc := NewSessionService(newTestDB(t))
	now := time.Now()

	session, err := svc.Create(1, SessionInput{
		StartAt: now.Add(-2 * time.Hour),
		EndAt:   now.Add(-1 * time.Hour),
	})
	require.NoError(t, err)

	// Shifting within the session's own old interval must not self-conflict.
	updated, err := svc.Update(1, session.ID, SessionInput{
		StartAt: now.Add(-100 * time.Minute),
		EndAt:   now.Add(-40 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, 60, updated.DurationMinutes)

	other, err := svc.Create(1, SessionInput{
		StartAt: now.Add(-5 * time.Hour),
		EndAt:   now.Add(-4 * time.Hour),
	})
	require.NoError(t, err)

	// But colliding with a different session still fails.
	_, err = svc.Update(1, other.ID, SessionInput{
		StartAt: now.Add(-95 * time.Minute),
		EndAt:   now.Add(-50 * time.Minute),
	})
	assert.ErrorIs(t, err, ErrSessionOverlap)
}

func TestSessionOwnershipFromStorage(t *testing.T) {
	svc := NewSessionService(newTestDB(t))
	now := time.Now()

	session, err := svc.Create(1, SessionInput{
		StartAt: now.Add(-2 * time.Hour),
		EndAt:   now.Add(-1 * time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.Update(2, session.ID, SessionInput{
		StartAt: now.Add(-3 * time.Hour),
		EndAt:   now.Add(-150 * time.Minute),
	})
	assert.ErrorIs(t, err, ErrNotOwner)

	assert.ErrorIs(t, svc.Delete(2, session.ID), ErrNotOwner)
	assert.ErrorIs(t, svc.Delete(1, session.ID+100), ErrNotFound)
	assert.NoError(t, svc.Delete(1, session.ID))
}

func TestSRSSaveDuplicateReturnsExisting(t *testing.T) {
	svc := NewSRSService(newTestDB(t))

	item, err := svc.SaveForReview(1, models.ReviewKindVocabulary, "hund", "dog")
	require.NoError(t, err)
	assert.Equal(t, defaultEaseFactor, item.EaseFactor)

	dup, err := svc.SaveForReview(1, models.ReviewKindVocabulary, "hund", "dog")
	require.NoError(t, err)
	assert.Equal(t, item.ID, dup.ID)

	// Same term for another user is a separate item.
	other, err := svc.SaveForReview(2, models.ReviewKindVocabulary, "hund", "dog")
	require.NoError(t, err)
	assert.NotEqual(t, item.ID, other.ID)

	_, err = svc.SaveForReview(1, "RIDDLE", "hund", "dog")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSRSRecordReviewValidatesAndOwns(t *testing.T) {
	svc := NewSRSService(newTestDB(t))

	item, err := svc.SaveForReview(1, models.ReviewKindGrammar, "dativ", "dative case")
	require.NoError(t, err)

	_, err = svc.RecordReview(1, item.ID, 6)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.RecordReview(2, item.ID, 4)
	assert.ErrorIs(t, err, ErrNotOwner)

	reviewed, err := svc.RecordReview(1, item.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, reviewed.ReviewCount)
	assert.Equal(t, 1, reviewed.IntervalDays)
	assert.True(t, reviewed.IsMemorized)

	due, err := svc.DueItems(1, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "reviewed item moved past today")
}

func TestVocabularyStatsReflectMutations(t *testing.T) {
	svc := NewSRSService(newTestDB(t))

	item, err := svc.SaveForReview(1, models.ReviewKindVocabulary, "katze", "cat")
	require.NoError(t, err)
	_, err = svc.SaveForReview(1, models.ReviewKindVocabulary, "hund", "dog")
	require.NoError(t, err)

	stats, err := svc.Stats(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalItems)
	assert.Equal(t, int64(0), stats.MemorizedItems)
	assert.Equal(t, int64(2), stats.DueToday)

	require.NoError(t, svc.SetMemorized(1, item.ID, true))

	stats, err = svc.Stats(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.MemorizedItems)
}

func TestProgressRecomputeIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewProgressService(db)

	chapter := models.Chapter{BookID: 1, Title: "Der Anfang", ExerciseCount: 4}
	require.NoError(t, db.Create(&chapter).Error)
	sibling := models.Chapter{BookID: 1, Title: "Weiter", ExerciseCount: 4}
	require.NoError(t, db.Create(&sibling).Error)

	// Two distinct exercises answered, one of them twice.
	for _, exerciseID := range []uint{1, 1, 2} {
		result := models.ExerciseResult{
			UserID:       1,
			ExerciseID:   exerciseID,
			ChapterID:    chapter.ID,
			ExerciseType: models.ExerciseReading,
			Score:        90,
			SubmittedAt:  time.Now(),
		}
		require.NoError(t, db.Create(&result).Error)
	}

	require.NoError(t, svc.RecomputeForChapter(1, chapter.ID))
	require.NoError(t, svc.RecomputeForChapter(1, chapter.ID))

	var chapterProgress models.ChapterProgress
	require.NoError(t, db.Where("user_id = ? AND chapter_id = ?", 1, chapter.ID).First(&chapterProgress).Error)
	assert.Equal(t, 50, chapterProgress.CompletionPercent)

	var bookProgress models.BookProgress
	require.NoError(t, db.Where("user_id = ? AND book_id = ?", 1, 1).First(&bookProgress).Error)
	assert.Equal(t, 25, bookProgress.CompletionPercent, "untouched sibling chapter counts as zero")

	var rows int64
	require.NoError(t, db.Model(&models.ChapterProgress{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestProgressUnknownChapterIgnored(t *testing.T) {
	svc := NewProgressService(newTestDB(t))
	assert.NoError(t, svc.RecomputeForChapter(1, 0))
	assert.NoError(t, svc.RecomputeForChapter(1, 12345))
}

func TestResultSubmitTriggersFanOut(t *testing.T) {
	db := newTestDB(t)
	sink := &recordingHandler{name: "sink"}
	svc := NewResultService(db, NewCompletionDispatcher(sink))

	result, err := svc.Submit(7, SubmitExerciseInput{
		ExerciseID:   11,
		ChapterID:    3,
		ExerciseType: models.ExerciseSpeaking,
		Score:        88,
		UserAnswer:   "Guten <script>alert(1)</script>Tag",
		Timezone:     "Europe/Berlin",
	})
	require.NoError(t, err)
	assert.NotZero(t, result.ID)
	assert.Equal(t, "Guten Tag", result.UserAnswer, "markup stripped from the stored answer")

	require.Len(t, sink.events, 1)
	evt := sink.events[0]
	assert.Equal(t, uint(7), evt.UserID)
	assert.Equal(t, result.ID, evt.ResultID)
	assert.Equal(t, models.ExerciseSpeaking, evt.ExerciseType)
	assert.Equal(t, 88, evt.Score)
	assert.Equal(t, "Europe/Berlin", evt.Timezone.String())
}

func TestResultSubmitRejectsInvalidInput(t *testing.T) {
	db := newTestDB(t)
	svc := NewResultService(db, NewCompletionDispatcher())

	var verr *ValidationError
	_, err := svc.Submit(1, SubmitExerciseInput{ExerciseID: 1, ExerciseType: "JUGGLING", Score: 50})
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Submit(1, SubmitExerciseInput{ExerciseID: 1, ExerciseType: models.ExerciseReading, Score: 101})
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Submit(1, SubmitExerciseInput{ExerciseType: models.ExerciseReading, Score: 50})
	assert.ErrorAs(t, err, &verr)

	var count int64
	require.NoError(t, db.Model(&models.ExerciseResult{}).Count(&count).Error)
	assert.Zero(t, count, "rejected submissions must not persist")
}
