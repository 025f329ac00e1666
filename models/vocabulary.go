package models

import "time"

// Review item kinds. Grammar points share the vocabulary review mechanics.
const (
	ReviewKindVocabulary = "VOCABULARY"
	ReviewKindGrammar    = "GRAMMAR"
)

// ReviewItem is one user's spaced-repetition state for a vocabulary word or
// grammar point. EaseFactor is fixed-point with two implied decimals
// (250 == 2.50, floor 130). NextReviewDate always equals the date of the last
// review plus IntervalDays.
type ReviewItem struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;uniqueIndex:idx_user_item" json:"user_id"`
	Kind          string     `gorm:"size:16;not null;uniqueIndex:idx_user_item;default:VOCABULARY" json:"kind"`
	Term          string     `gorm:"size:255;not null;uniqueIndex:idx_user_item" json:"term"`
	Meaning       string     `gorm:"size:512" json:"meaning"`
	EaseFactor    int        `gorm:"not null;default:250" json:"ease_factor"`
	IntervalDays  int        `gorm:"not null;default:0" json:"interval_days"`
	NextReviewAt  time.Time  `gorm:"not null;index" json:"next_review_at"`
	ReviewCount   int        `gorm:"not null;default:0" json:"review_count"`
	IsMemorized   bool       `gorm:"not null;default:false" json:"is_memorized"`
	LastReviewed  *time.Time `json:"last_reviewed"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
