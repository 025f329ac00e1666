package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/langleague/langleague/models"
)

func TestStreakMilestonesAllTitled(t *testing.T) {
	for _, milestone := range streakMilestones {
		title, ok := streakMilestoneTitles[milestone]
		assert.True(t, ok, "milestone %d has no title", milestone)
		assert.NotEmpty(t, title)
	}
	assert.Len(t, streakMilestoneTitles, len(streakMilestones))
}

func TestMilestonesAreAscending(t *testing.T) {
	ascending := func(vals []int64) bool {
		for i := 1; i < len(vals); i++ {
			if vals[i] <= vals[i-1] {
				return false
			}
		}
		return true
	}
	assert.True(t, ascending(totalExerciseMilestones))
	assert.True(t, ascending(typeExerciseMilestones))
	assert.True(t, ascending(perfectScoreMilestones))
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "Listening", typeName(models.ExerciseListening))
	assert.Equal(t, "Speaking", typeName(models.ExerciseSpeaking))
	assert.Equal(t, "Reading", typeName(models.ExerciseReading))
	assert.Equal(t, "Writing", typeName(models.ExerciseWriting))
	assert.Equal(t, "CUSTOM", typeName("CUSTOM"))
}
