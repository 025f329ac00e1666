package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/langleague/langleague/middleware"
	"github.com/langleague/langleague/services"
	"github.com/langleague/langleague/utils"
)

// SessionController exposes time-tracked study sessions.
type SessionController struct {
	sessions *services.SessionService
}

func NewSessionController(sessions *services.SessionService) *SessionController {
	return &SessionController{sessions: sessions}
}

// Create records a finished study interval for the authenticated user.
func (s *SessionController) Create(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var input services.SessionInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid request payload")
		return
	}

	session, err := s.sessions.Create(userID, input)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, session)
}

// Update rewrites an existing session's interval.
func (s *SessionController) Update(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	sessionID, ok := pathID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid session id")
		return
	}

	var input services.SessionInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid request payload")
		return
	}

	session, err := s.sessions.Update(userID, sessionID, input)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, session)
}

// Start opens a live session beginning now.
func (s *SessionController) Start(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	type request struct {
		ChapterID *uint `json:"chapter_id"`
	}
	var req request
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40005, "invalid request payload")
			return
		}
	}

	session, err := s.sessions.Start(userID, req.ChapterID)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, session)
}

// List returns the authenticated user's recent sessions.
func (s *SessionController) List(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	limit := 50
	if v := strings.TrimSpace(ctx.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	sessions, err := s.sessions.ListForUser(userID, limit)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, sessions)
}

// Delete removes a session owned by the authenticated user.
func (s *SessionController) Delete(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	sessionID, ok := pathID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid session id")
		return
	}

	if err := s.sessions.Delete(userID, sessionID); err != nil {
		serviceError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{"deleted": sessionID})
}

func pathID(ctx *gin.Context) (uint, bool) {
	raw := strings.TrimSpace(ctx.Param("id"))
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
