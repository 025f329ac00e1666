package services

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/langleague/langleague/models"
)

// ProgressService recomputes chapter and book completion percentages from
// exercise-result counts. Every value it writes is derived, so recomputing
// after any completion is idempotent and safe to re-run.
type ProgressService struct {
	db *gorm.DB
}

// NewProgressService creates a new service instance.
func NewProgressService(db *gorm.DB) *ProgressService {
	return &ProgressService{db: db}
}

// RecomputeForChapter refreshes the user's chapter percentage and rolls the
// owning book up. Unknown chapter ids are ignored; results submitted outside
// book content carry no progress.
func (p *ProgressService) RecomputeForChapter(userID, chapterID uint) error {
	if chapterID == 0 {
		return nil
	}

	var chapter models.Chapter
	err := p.db.First(&chapter, chapterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	percent, err := p.chapterPercent(userID, chapter)
	if err != nil {
		return err
	}
	if err := p.upsertChapter(userID, chapterID, percent); err != nil {
		return err
	}
	return p.recomputeBook(userID, chapter.BookID)
}

// chapterPercent counts distinct answered exercises against the chapter's
// exercise total, clamped to [0, 100].
func (p *ProgressService) chapterPercent(userID uint, chapter models.Chapter) (int, error) {
	if chapter.ExerciseCount <= 0 {
		return 0, nil
	}

	var answered int64
	err := p.db.Model(&models.ExerciseResult{}).
		Where("user_id = ? AND chapter_id = ?", userID, chapter.ID).
		Distinct("exercise_id").
		Count(&answered).Error
	if err != nil {
		return 0, err
	}

	percent := int(answered * 100 / int64(chapter.ExerciseCount))
	if percent > 100 {
		percent = 100
	}
	return percent, nil
}

// recomputeBook averages the user's chapter percentages across every chapter
// of the book; chapters never touched count as zero.
func (p *ProgressService) recomputeBook(userID, bookID uint) error {
	var chapterIDs []uint
	err := p.db.Model(&models.Chapter{}).
		Where("book_id = ?", bookID).
		Pluck("id", &chapterIDs).Error
	if err != nil {
		return err
	}
	if len(chapterIDs) == 0 {
		return nil
	}

	var sum int64
	err = p.db.Model(&models.ChapterProgress{}).
		Where("user_id = ? AND chapter_id IN ?", userID, chapterIDs).
		Select("COALESCE(SUM(completion_percent), 0)").
		Scan(&sum).Error
	if err != nil {
		return err
	}

	progress := models.BookProgress{
		UserID:            userID,
		BookID:            bookID,
		CompletionPercent: int(sum / int64(len(chapterIDs))),
		UpdatedAt:         time.Now(),
	}
	return p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "book_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"completion_percent", "updated_at"}),
	}).Create(&progress).Error
}

func (p *ProgressService) upsertChapter(userID, chapterID uint, percent int) error {
	progress := models.ChapterProgress{
		UserID:            userID,
		ChapterID:         chapterID,
		CompletionPercent: percent,
		UpdatedAt:         time.Now(),
	}
	return p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "chapter_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"completion_percent", "updated_at"}),
	}).Create(&progress).Error
}
