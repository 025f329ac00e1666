package models

import "time"

// StudySession is a time-tracked study interval [StartAt, EndAt) for a user.
// Intervals of one user never overlap; the session service enforces this
// inside a serializable transaction. DurationMinutes is derived from the
// interval, never trusted from input when absent.
type StudySession struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"index:idx_user_interval;not null" json:"user_id"`
	StartAt         time.Time  `gorm:"index:idx_user_interval;not null" json:"start_at"`
	EndAt           time.Time  `gorm:"index:idx_user_interval" json:"end_at"`
	DurationMinutes int        `json:"duration_minutes"`
	ChapterID       *uint      `gorm:"index" json:"chapter_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
