package services

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/langleague/langleague/models"
	"github.com/langleague/langleague/utils"
)

const (
	streakMaxAttempts  = 3
	streakRetryBackoff = 100 * time.Millisecond
)

// StreakStatus is the caller-visible outcome of a streak operation.
type StreakStatus struct {
	CurrentStreak int  `json:"current_streak"`
	LongestStreak int  `json:"longest_streak"`
	Changed       bool `json:"changed"`
}

// StreakService maintains per-user consecutive-day study streaks.
// Writes go through an optimistic version check with bounded retry so two
// near-simultaneous activity completions for one user cannot lose an
// increment.
type StreakService struct {
	db *gorm.DB
}

// NewStreakService creates a new service instance.
func NewStreakService(db *gorm.DB) *StreakService {
	return &StreakService{db: db}
}

// advanceStreak is the pure streak transition. It never touches storage:
// given the stored record, the activity instant, and the user's timezone it
// returns the next record state and whether anything changed. Same-day
// repeats are no-ops, a one-day gap extends the streak, anything longer
// resets the current streak to 1.
func advanceStreak(s models.LearningStreak, now time.Time, loc *time.Location) (models.LearningStreak, bool) {
	if s.LastStudyAt == nil {
		s.CurrentStreak = 1
		if s.LongestStreak < 1 {
			s.LongestStreak = 1
		}
		s.LastStudyAt = &now
		return s, true
	}

	gap := daysBetween(localDate(*s.LastStudyAt, loc), localDate(now, loc))
	switch {
	case gap == 0:
		return s, false
	case gap == 1:
		s.CurrentStreak++
		if s.CurrentStreak > s.LongestStreak {
			s.LongestStreak = s.CurrentStreak
		}
	default:
		s.CurrentStreak = 1
	}
	s.LastStudyAt = &now
	return s, true
}

// RecordActivity advances the user's streak for an activity happening now in
// the given timezone. Calling it twice within one local day is idempotent.
func (s *StreakService) RecordActivity(userID uint, loc *time.Location) (StreakStatus, error) {
	var lastErr error
	for attempt := 1; attempt <= streakMaxAttempts; attempt++ {
		status, err := s.tryRecord(userID, loc)
		if err == nil {
			return status, nil
		}
		if !errors.Is(err, errStreakVersionConflict) {
			return StreakStatus{}, err
		}
		lastErr = err
		utils.Sugar.Debugw("streak version conflict, retrying",
			"user_id", userID, "attempt", attempt)
		if attempt < streakMaxAttempts {
			time.Sleep(streakRetryBackoff)
		}
	}
	utils.Sugar.Warnw("streak update lost version check repeatedly",
		"user_id", userID, "attempts", streakMaxAttempts, "err", lastErr)
	return StreakStatus{}, ErrStreakContention
}

var errStreakVersionConflict = errors.New("streak row version changed")

func (s *StreakService) tryRecord(userID uint, loc *time.Location) (StreakStatus, error) {
	record, err := s.loadOrCreate(userID)
	if err != nil {
		return StreakStatus{}, err
	}

	next, changed := advanceStreak(record, time.Now(), loc)
	if !changed {
		return StreakStatus{
			CurrentStreak: record.CurrentStreak,
			LongestStreak: record.LongestStreak,
			Changed:       false,
		}, nil
	}

	res := s.db.Model(&models.LearningStreak{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Updates(map[string]interface{}{
			"current_streak": next.CurrentStreak,
			"longest_streak": next.LongestStreak,
			"last_study_at":  next.LastStudyAt,
			"version":        record.Version + 1,
		})
	if res.Error != nil {
		return StreakStatus{}, res.Error
	}
	if res.RowsAffected == 0 {
		return StreakStatus{}, errStreakVersionConflict
	}

	return StreakStatus{
		CurrentStreak: next.CurrentStreak,
		LongestStreak: next.LongestStreak,
		Changed:       true,
	}, nil
}

// loadOrCreate fetches the user's streak row, creating the lazy initial row
// (0/0, never studied) on first activity. A concurrent creator losing the
// unique index race falls back to re-reading the winner's row.
func (s *StreakService) loadOrCreate(userID uint) (models.LearningStreak, error) {
	var record models.LearningStreak
	err := s.db.Where("user_id = ?", userID).First(&record).Error
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.LearningStreak{}, err
	}

	record = models.LearningStreak{UserID: userID}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return models.LearningStreak{}, err
	}
	if record.ID == 0 {
		if err := s.db.Where("user_id = ?", userID).First(&record).Error; err != nil {
			return models.LearningStreak{}, err
		}
	}
	return record, nil
}

// Status returns the user's current streak pair without mutating anything.
// Users who never studied report 0/0.
func (s *StreakService) Status(userID uint) (StreakStatus, error) {
	record, err := s.find(userID)
	if err != nil || record == nil {
		return StreakStatus{}, err
	}
	return StreakStatus{
		CurrentStreak: record.CurrentStreak,
		LongestStreak: record.LongestStreak,
	}, nil
}

// HasStudiedToday reports whether the user already recorded activity during
// the current local day in the given timezone.
func (s *StreakService) HasStudiedToday(userID uint, loc *time.Location) (bool, error) {
	record, err := s.find(userID)
	if err != nil {
		return false, err
	}
	if record == nil || record.LastStudyAt == nil {
		return false, nil
	}
	return daysBetween(localDate(*record.LastStudyAt, loc), localDate(time.Now(), loc)) == 0, nil
}

// IsStreakActive reports whether the streak survives to the current local
// day: studied today, or yesterday with today still open.
func (s *StreakService) IsStreakActive(userID uint, loc *time.Location) (bool, error) {
	record, err := s.find(userID)
	if err != nil {
		return false, err
	}
	if record == nil || record.LastStudyAt == nil {
		return false, nil
	}
	gap := daysBetween(localDate(*record.LastStudyAt, loc), localDate(time.Now(), loc))
	return gap >= 0 && gap <= 1, nil
}

func (s *StreakService) find(userID uint) (*models.LearningStreak, error) {
	var record models.LearningStreak
	err := s.db.Where("user_id = ?", userID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// localDate truncates an instant to its calendar date in loc, normalized to
// midnight UTC so that date arithmetic is timezone-free afterwards.
func localDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole calendar days from a to b (both already
// normalized by localDate).
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// ParseTimezone resolves a caller-supplied IANA zone name, falling back to
// UTC when the name is absent or unknown.
func ParseTimezone(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
