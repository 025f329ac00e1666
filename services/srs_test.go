package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langleague/langleague/models"
)

func TestScheduleNextMatureItemGoodRecall(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	item := models.ReviewItem{
		EaseFactor:   250,
		IntervalDays: 6,
		ReviewCount:  2,
	}

	next := scheduleNext(item, 4, now)

	// 250 + (10*1 - 32 + 25) = 253; round(6 * 2.53) = 15
	assert.Equal(t, 253, next.EaseFactor)
	assert.Equal(t, 15, next.IntervalDays)
	assert.Equal(t, time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC), next.NextReviewAt)
	assert.True(t, next.IsMemorized)
	assert.Equal(t, 3, next.ReviewCount)
	require.NotNil(t, next.LastReviewed)
	assert.Equal(t, now, *next.LastReviewed)
}

func TestScheduleNextFirstReviewsUseFixedIntervals(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

	first := scheduleNext(models.ReviewItem{EaseFactor: 250}, 5, now)
	assert.Equal(t, 1, first.IntervalDays)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), first.NextReviewAt)

	second := scheduleNext(models.ReviewItem{EaseFactor: 250, ReviewCount: 1, IntervalDays: 1}, 5, now)
	assert.Equal(t, 6, second.IntervalDays)
}

func TestScheduleNextFailedRecallResetsInterval(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	item := models.ReviewItem{
		EaseFactor:   250,
		IntervalDays: 30,
		ReviewCount:  5,
		IsMemorized:  true,
	}

	next := scheduleNext(item, 2, now)

	assert.Equal(t, 1, next.IntervalDays)
	assert.False(t, next.IsMemorized)
	assert.Equal(t, 6, next.ReviewCount)
}

func TestScheduleNextEaseFactorFloor(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	item := models.ReviewItem{
		EaseFactor:   130,
		IntervalDays: 4,
		ReviewCount:  3,
	}

	// delta at quality 5 is 10*0 - 40 + 25 = -15, which would go below floor
	next := scheduleNext(item, 5, now)
	assert.Equal(t, 130, next.EaseFactor)
}

func TestScheduleNextQualityFourMarksMemorized(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	item := models.ReviewItem{EaseFactor: 250, IntervalDays: 6, ReviewCount: 2}

	assert.False(t, scheduleNext(item, 3, now).IsMemorized)
	assert.True(t, scheduleNext(item, 4, now).IsMemorized)
	assert.True(t, scheduleNext(item, 5, now).IsMemorized)
}
