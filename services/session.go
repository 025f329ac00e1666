package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/langleague/langleague/models"
	"github.com/langleague/langleague/utils"
)

const (
	maxSessionHours   = 24
	minSessionMinutes = 1
	maxPastDays       = 30
	clockSkewSeconds  = 60
)

// SessionInput is the caller-supplied interval. The owner is never part of
// the input; it is always taken from the authenticated context.
type SessionInput struct {
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	DurationMinutes int       `json:"duration_minutes"`
	ChapterID       *uint     `json:"chapter_id"`
}

// SessionService manages time-tracked study intervals. The overlap check and
// the insert/update run inside one serializable transaction: of two
// concurrent writers proposing overlapping intervals for the same user, the
// one serialized second observes the first's row and fails the check.
type SessionService struct {
	db *gorm.DB
}

// NewSessionService creates a new service instance.
func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{db: db}
}

// Create records a new study interval for the user.
func (s *SessionService) Create(userID uint, input SessionInput) (models.StudySession, error) {
	if err := validateInterval(input, true); err != nil {
		return models.StudySession{}, err
	}

	session := models.StudySession{
		UserID:          userID,
		StartAt:         input.StartAt,
		EndAt:           input.EndAt,
		DurationMinutes: deriveDuration(input),
		ChapterID:       input.ChapterID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.checkOverlap(tx, userID, input.StartAt, input.EndAt, 0); err != nil {
			return err
		}
		return tx.Create(&session).Error
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return models.StudySession{}, err
	}
	return session, nil
}

// Update rewrites an existing interval. The session's own prior identity is
// excluded from the overlap check, and the stored owner decides ownership
// regardless of what the request claims.
func (s *SessionService) Update(userID, sessionID uint, input SessionInput) (models.StudySession, error) {
	if err := validateInterval(input, false); err != nil {
		return models.StudySession{}, err
	}

	var session models.StudySession
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if session.UserID != userID {
			return ErrNotOwner
		}
		if err := s.checkOverlap(tx, userID, input.StartAt, input.EndAt, sessionID); err != nil {
			return err
		}

		session.StartAt = input.StartAt
		session.EndAt = input.EndAt
		session.DurationMinutes = deriveDuration(input)
		session.ChapterID = input.ChapterID
		return tx.Save(&session).Error
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return models.StudySession{}, err
	}
	return session, nil
}

// Start opens a session beginning now; the interval closes later via Update.
func (s *SessionService) Start(userID uint, chapterID *uint) (models.StudySession, error) {
	now := time.Now()
	session := models.StudySession{
		UserID:    userID,
		StartAt:   now,
		EndAt:     now,
		ChapterID: chapterID,
	}
	if err := s.db.Create(&session).Error; err != nil {
		return models.StudySession{}, err
	}
	return session, nil
}

// ListForUser returns the user's sessions, newest first.
func (s *SessionService) ListForUser(userID uint, limit int) ([]models.StudySession, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var sessions []models.StudySession
	err := s.db.Where("user_id = ?", userID).
		Order("start_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// Delete removes one of the user's sessions.
func (s *SessionService) Delete(userID, sessionID uint) error {
	var session models.StudySession
	err := s.db.First(&session, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return ErrNotOwner
	}
	return s.db.Delete(&session).Error
}

// checkOverlap rejects [startAt, endAt) when any committed interval of the
// user satisfies existing.start < endAt AND existing.end > startAt, excluding
// the row being updated.
func (s *SessionService) checkOverlap(tx *gorm.DB, userID uint, startAt, endAt time.Time, excludeID uint) error {
	q := tx.Model(&models.StudySession{}).
		Where("user_id = ? AND start_at < ? AND end_at > ?", userID, endAt, startAt)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var conflicts int64
	if err := q.Count(&conflicts).Error; err != nil {
		return err
	}
	if conflicts > 0 {
		utils.Sugar.Debugw("study session overlap rejected",
			"user_id", userID, "start_at", startAt, "end_at", endAt)
		return ErrSessionOverlap
	}
	return nil
}

// validateInterval applies the interval business rules. Create is strict
// about how far in the past a session may start; update is relaxed so old
// records stay editable.
func validateInterval(input SessionInput, strictPast bool) error {
	if input.StartAt.IsZero() {
		return invalid("startatnull", "start time is required")
	}
	if input.EndAt.IsZero() {
		return invalid("endatnull", "end time is required")
	}

	now := time.Now()
	skew := now.Add(clockSkewSeconds * time.Second)
	if input.StartAt.After(skew) {
		return invalid("startatfuture", "start time cannot be in the future")
	}
	if input.EndAt.After(skew) {
		return invalid("endatfuture", "end time cannot be in the future")
	}
	if strictPast && input.StartAt.Before(now.AddDate(0, 0, -maxPastDays)) {
		return invalid("startattooold",
			fmt.Sprintf("start time cannot be more than %d days in the past", maxPastDays))
	}
	if !input.EndAt.After(input.StartAt) {
		return invalid("endatbeforestart", "end time must be after start time")
	}
	if input.EndAt.Sub(input.StartAt) > maxSessionHours*time.Hour {
		return invalid("durationtoolong",
			fmt.Sprintf("session duration cannot exceed %d hours", maxSessionHours))
	}

	if input.DurationMinutes != 0 {
		if input.DurationMinutes < minSessionMinutes {
			return invalid("durationtooshort",
				fmt.Sprintf("session duration must be at least %d minute(s)", minSessionMinutes))
		}
		derived := int(input.EndAt.Sub(input.StartAt).Minutes())
		diff := input.DurationMinutes - derived
		if diff < -1 || diff > 1 {
			return invalid("durationmismatch",
				fmt.Sprintf("duration minutes (%d) does not match the time range (%d minutes)",
					input.DurationMinutes, derived))
		}
	}
	return nil
}

// deriveDuration trusts the interval, not the caller, when the supplied
// duration is absent.
func deriveDuration(input SessionInput) int {
	if input.DurationMinutes > 0 {
		return input.DurationMinutes
	}
	return int(input.EndAt.Sub(input.StartAt).Minutes())
}
