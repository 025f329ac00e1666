package models

import "time"

// LearningStreak tracks consecutive-day study activity for one user.
// One row per user, created lazily on first activity, never deleted.
// Version backs the optimistic concurrency check in the streak service;
// LongestStreak >= CurrentStreak holds at all times.
type LearningStreak struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	CurrentStreak int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak int        `gorm:"not null;default:0" json:"longest_streak"`
	LastStudyAt   *time.Time `json:"last_study_at"`
	Version       int64      `gorm:"not null;default:0" json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
