package models

import "time"

// Achievement is a catalog entry keyed by title. Entries are created on demand
// the first time a milestone fires and are immutable afterwards.
type Achievement struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null;uniqueIndex" json:"title"`
	Description string    `gorm:"size:512" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserAchievement records one grant of an achievement to a user.
// The composite unique index is load-bearing: two concurrent completions may
// both pass the existence check, and the index turns the loser's insert into
// a benign duplicate-key error.
type UserAchievement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID uint      `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	AwardedAt     time.Time `gorm:"not null" json:"awarded_at"`

	Achievement Achievement `gorm:"foreignKey:AchievementID" json:"achievement"`
}
