package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/langleague/langleague/middleware"
	"github.com/langleague/langleague/models"
	"github.com/langleague/langleague/services"
	"github.com/langleague/langleague/utils"
)

// VocabularyController exposes the spaced-repetition review surface.
type VocabularyController struct {
	srs *services.SRSService
}

func NewVocabularyController(srs *services.SRSService) *VocabularyController {
	return &VocabularyController{srs: srs}
}

// Save adds a word or grammar point to the user's review queue.
func (v *VocabularyController) Save(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	type request struct {
		Kind    string `json:"kind"`
		Term    string `json:"term" binding:"required"`
		Meaning string `json:"meaning"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40008, "invalid request payload")
		return
	}
	if req.Kind == "" {
		req.Kind = models.ReviewKindVocabulary
	}

	item, err := v.srs.SaveForReview(userID, req.Kind, strings.TrimSpace(req.Term), strings.TrimSpace(req.Meaning))
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, item)
}

// Review applies one recall grade to an item and reschedules it.
func (v *VocabularyController) Review(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	itemID, ok := pathID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40009, "invalid item id")
		return
	}

	type request struct {
		Quality int `json:"quality"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40008, "invalid request payload")
		return
	}

	item, err := v.srs.RecordReview(userID, itemID, req.Quality)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, item)
}

// Due lists items due for review today.
func (v *VocabularyController) Due(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	limit := 50
	if raw := strings.TrimSpace(ctx.Query("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	items, err := v.srs.DueItems(userID, limit)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, items)
}

// Stats returns vocabulary aggregates, Redis-cached per user.
func (v *VocabularyController) Stats(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	stats, err := v.srs.Stats(userID)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, stats)
}

// SetMemorized flags an item as memorized or puts it back into rotation.
func (v *VocabularyController) SetMemorized(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	itemID, ok := pathID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40009, "invalid item id")
		return
	}

	type request struct {
		Memorized bool `json:"memorized"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40008, "invalid request payload")
		return
	}

	if err := v.srs.SetMemorized(userID, itemID, req.Memorized); err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{"id": itemID, "memorized": req.Memorized})
}
