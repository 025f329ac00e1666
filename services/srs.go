package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/langleague/langleague/models"
	"github.com/langleague/langleague/utils"
)

const (
	// Ease factors are fixed-point with two implied decimals; 130 == 1.30.
	minEaseFactor     = 130
	defaultEaseFactor = 250

	vocabStatsCacheTTL = 5 * time.Minute
)

// SRSService schedules vocabulary and grammar reviews with the SuperMemo-2
// algorithm. Each item is independent; there are no cross-item invariants.
type SRSService struct {
	db *gorm.DB
}

// NewSRSService creates a new service instance.
func NewSRSService(db *gorm.DB) *SRSService {
	return &SRSService{db: db}
}

// scheduleNext is the pure SM-2 step: given the stored item, the recall
// quality (0..5) and the review instant, it returns the rescheduled item.
// A failed recall (quality < 3) resets the interval to one day; the review
// count still advances, so the item does not restart the 1/6 ladder.
func scheduleNext(item models.ReviewItem, quality int, now time.Time) models.ReviewItem {
	ease := item.EaseFactor + (10*(5-quality) - 8*quality + 25)
	if ease < minEaseFactor {
		ease = minEaseFactor
	}

	var interval int
	switch {
	case quality < 3:
		interval = 1
	case item.ReviewCount == 0:
		interval = 1
	case item.ReviewCount == 1:
		interval = 6
	default:
		interval = int(math.Round(float64(item.IntervalDays) * float64(ease) / 100.0))
	}

	item.EaseFactor = ease
	item.IntervalDays = interval
	item.NextReviewAt = localDate(now, time.UTC).AddDate(0, 0, interval)
	item.IsMemorized = quality >= 4
	item.ReviewCount++
	item.LastReviewed = &now
	return item
}

// SaveForReview puts a term on the user's review schedule, due immediately.
// Saving a term the user already tracks returns the existing item unchanged.
func (s *SRSService) SaveForReview(userID uint, kind, term, meaning string) (models.ReviewItem, error) {
	if kind != models.ReviewKindVocabulary && kind != models.ReviewKindGrammar {
		return models.ReviewItem{}, invalid("itemkind", fmt.Sprintf("unknown review item kind %q", kind))
	}
	if term == "" {
		return models.ReviewItem{}, invalid("termempty", "term is required")
	}

	item := models.ReviewItem{
		UserID:       userID,
		Kind:         kind,
		Term:         term,
		Meaning:      meaning,
		EaseFactor:   defaultEaseFactor,
		IntervalDays: 0,
		NextReviewAt: localDate(time.Now(), time.UTC),
	}
	if err := s.db.Create(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = s.db.Where("user_id = ? AND kind = ? AND term = ?", userID, kind, term).
				First(&item).Error
		}
		if err != nil {
			return models.ReviewItem{}, err
		}
		return item, nil
	}
	utils.InvalidateByPrefix(vocabStatsCacheKey(userID))
	return item, nil
}

// RecordReview applies one review submission to the user's item.
func (s *SRSService) RecordReview(userID, itemID uint, quality int) (models.ReviewItem, error) {
	if quality < 0 || quality > 5 {
		return models.ReviewItem{}, invalid("quality", "quality must be between 0 and 5")
	}

	item, err := s.ownedItem(userID, itemID)
	if err != nil {
		return models.ReviewItem{}, err
	}

	updated := scheduleNext(item, quality, time.Now())
	if err := s.db.Save(&updated).Error; err != nil {
		return models.ReviewItem{}, err
	}

	utils.InvalidateByPrefix(vocabStatsCacheKey(userID))
	utils.Sugar.Debugw("review recorded",
		"user_id", userID, "item_id", itemID, "quality", quality,
		"interval_days", updated.IntervalDays, "ease", updated.EaseFactor)
	return updated, nil
}

// DueItems lists the user's items with nextReviewAt on or before today,
// most overdue first.
func (s *SRSService) DueItems(userID uint, limit int) ([]models.ReviewItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var items []models.ReviewItem
	err := s.db.Where("user_id = ? AND next_review_at <= ?", userID, localDate(time.Now(), time.UTC)).
		Order("next_review_at ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// SetMemorized flips the memorized flag without rescheduling.
func (s *SRSService) SetMemorized(userID, itemID uint, memorized bool) error {
	item, err := s.ownedItem(userID, itemID)
	if err != nil {
		return err
	}
	now := time.Now()
	err = s.db.Model(&item).Updates(map[string]interface{}{
		"is_memorized":  memorized,
		"last_reviewed": &now,
	}).Error
	if err != nil {
		return err
	}
	utils.InvalidateByPrefix(vocabStatsCacheKey(userID))
	return nil
}

// VocabularyStats summarises a user's review schedule.
type VocabularyStats struct {
	TotalItems     int64 `json:"total_items"`
	MemorizedItems int64 `json:"memorized_items"`
	DueToday       int64 `json:"due_today"`
}

// Stats returns schedule counters, cached briefly in Redis since the due
// count is polled by clients far more often than it changes.
func (s *SRSService) Stats(userID uint) (VocabularyStats, error) {
	var stats VocabularyStats
	if utils.CacheGetJSON(vocabStatsCacheKey(userID), &stats) {
		return stats, nil
	}

	err := s.db.Model(&models.ReviewItem{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalItems).Error
	if err != nil {
		return stats, err
	}
	err = s.db.Model(&models.ReviewItem{}).
		Where("user_id = ? AND is_memorized = ?", userID, true).
		Count(&stats.MemorizedItems).Error
	if err != nil {
		return stats, err
	}
	err = s.db.Model(&models.ReviewItem{}).
		Where("user_id = ? AND next_review_at <= ?", userID, localDate(time.Now(), time.UTC)).
		Count(&stats.DueToday).Error
	if err != nil {
		return stats, err
	}

	utils.CacheSetJSON(vocabStatsCacheKey(userID), stats, vocabStatsCacheTTL)
	return stats, nil
}

func (s *SRSService) ownedItem(userID, itemID uint) (models.ReviewItem, error) {
	var item models.ReviewItem
	err := s.db.First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ReviewItem{}, ErrNotFound
	}
	if err != nil {
		return models.ReviewItem{}, err
	}
	if item.UserID != userID {
		return models.ReviewItem{}, ErrNotOwner
	}
	return item, nil
}

func vocabStatsCacheKey(userID uint) string {
	return fmt.Sprintf("vocab:stats:%d", userID)
}
