package models

import "time"

// Chapter is a unit of book content carrying a fixed number of exercises.
type Chapter struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	BookID        uint      `gorm:"index;not null" json:"book_id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Position      int       `json:"position"`
	ExerciseCount int       `gorm:"not null;default:0" json:"exercise_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// ChapterProgress is the recomputed completion state of one user in one
// chapter. Rows are derived entirely from exercise results, so recomputing
// them is idempotent and safe to re-run after every completion.
type ChapterProgress struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"not null;uniqueIndex:idx_user_chapter" json:"user_id"`
	ChapterID         uint      `gorm:"not null;uniqueIndex:idx_user_chapter" json:"chapter_id"`
	CompletionPercent int       `gorm:"not null;default:0" json:"completion_percent"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// BookProgress is the per-book rollup of chapter completion, also derived.
type BookProgress struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"not null;uniqueIndex:idx_user_book" json:"user_id"`
	BookID            uint      `gorm:"not null;uniqueIndex:idx_user_book" json:"book_id"`
	CompletionPercent int       `gorm:"not null;default:0" json:"completion_percent"`
	UpdatedAt         time.Time `json:"updated_at"`
}
