package models

import "time"

// Exercise types.
const (
	ExerciseListening = "LISTENING"
	ExerciseSpeaking  = "SPEAKING"
	ExerciseReading   = "READING"
	ExerciseWriting   = "WRITING"
)

// ExerciseTypes lists all exercise types in a stable order.
var ExerciseTypes = []string{ExerciseListening, ExerciseSpeaking, ExerciseReading, ExerciseWriting}

// IsValidExerciseType reports whether t is a known exercise type.
func IsValidExerciseType(t string) bool {
	for _, v := range ExerciseTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ExerciseResult records one scored attempt at an exercise. Results are the
// facts the achievement engine and progress aggregator re-derive from; they
// are written once and never mutated by the completion pipeline.
type ExerciseResult struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	ExerciseID   uint      `gorm:"index;not null" json:"exercise_id"`
	ChapterID    uint      `gorm:"index" json:"chapter_id"`
	ExerciseType string    `gorm:"size:16;not null;index" json:"exercise_type"`
	Score        int       `gorm:"not null" json:"score"`
	UserAnswer   string    `gorm:"type:text" json:"user_answer"`
	SubmittedAt  time.Time `gorm:"not null" json:"submitted_at"`
}
