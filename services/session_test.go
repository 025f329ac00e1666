package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Reason
}

func TestValidateIntervalAcceptsRecentSession(t *testing.T) {
	now := time.Now()
	input := SessionInput{
		StartAt: now.Add(-45 * time.Minute),
		EndAt:   now.Add(-5 * time.Minute),
	}
	assert.NoError(t, validateInterval(input, true))
}

func TestValidateIntervalRequiredFields(t *testing.T) {
	now := time.Now()

	err := validateInterval(SessionInput{EndAt: now}, true)
	assert.Equal(t, "startatnull", reasonOf(t, err))

	err = validateInterval(SessionInput{StartAt: now}, true)
	assert.Equal(t, "endatnull", reasonOf(t, err))
}

func TestValidateIntervalRejectsFuture(t *testing.T) {
	now := time.Now()

	err := validateInterval(SessionInput{
		StartAt: now.Add(10 * time.Minute),
		EndAt:   now.Add(40 * time.Minute),
	}, true)
	assert.Equal(t, "startatfuture", reasonOf(t, err))

	err = validateInterval(SessionInput{
		StartAt: now.Add(-10 * time.Minute),
		EndAt:   now.Add(10 * time.Minute),
	}, true)
	assert.Equal(t, "endatfuture", reasonOf(t, err))
}

func TestValidateIntervalToleratesClockSkew(t *testing.T) {
	now := time.Now()
	input := SessionInput{
		StartAt: now.Add(-30 * time.Minute),
		EndAt:   now.Add(30 * time.Second), // within the 60s skew allowance
	}
	assert.NoError(t, validateInterval(input, true))
}

func TestValidateIntervalPastLimitOnlyOnCreate(t *testing.T) {
	old := time.Now().AddDate(0, 0, -40)
	input := SessionInput{
		StartAt: old,
		EndAt:   old.Add(time.Hour),
	}

	err := validateInterval(input, true)
	assert.Equal(t, "startattooold", reasonOf(t, err))

	// Updates may touch sessions older than the create window.
	assert.NoError(t, validateInterval(input, false))
}

func TestValidateIntervalOrderingAndLength(t *testing.T) {
	now := time.Now()

	err := validateInterval(SessionInput{
		StartAt: now.Add(-time.Hour),
		EndAt:   now.Add(-time.Hour),
	}, true)
	assert.Equal(t, "endatbeforestart", reasonOf(t, err))

	err = validateInterval(SessionInput{
		StartAt: now.Add(-26 * time.Hour),
		EndAt:   now.Add(-time.Hour),
	}, true)
	assert.Equal(t, "durationtoolong", reasonOf(t, err))
}

func TestValidateIntervalDurationMismatch(t *testing.T) {
	now := time.Now()
	base := SessionInput{
		StartAt: now.Add(-60 * time.Minute),
		EndAt:   now.Add(-10 * time.Minute),
	}

	base.DurationMinutes = 50
	assert.NoError(t, validateInterval(base, true))

	// One minute of slack either way.
	base.DurationMinutes = 51
	assert.NoError(t, validateInterval(base, true))
	base.DurationMinutes = 49
	assert.NoError(t, validateInterval(base, true))

	base.DurationMinutes = 55
	err := validateInterval(base, true)
	assert.Equal(t, "durationmismatch", reasonOf(t, err))
}

func TestDeriveDuration(t *testing.T) {
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	input := SessionInput{StartAt: start, EndAt: start.Add(50 * time.Minute)}

	assert.Equal(t, 50, deriveDuration(input))

	input.DurationMinutes = 49
	assert.Equal(t, 49, deriveDuration(input), "explicit duration wins when present")
}
