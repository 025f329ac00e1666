package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/langleague/langleague/config"
	"github.com/langleague/langleague/controllers"
	"github.com/langleague/langleague/middleware"
	"github.com/langleague/langleague/services"
	"github.com/langleague/langleague/utils"
)

// SetupRouter wires routes, middlewares, services, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rotated file, separate from the app log
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
		r.Use(ginzap.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}
	r.Use(middleware.RequestID())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-Id", "X-Rate-Limit-Remaining", "X-Rate-Limit-Retry-After-Seconds"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	// Services: streaks, achievements and progress hang off the completion
	// dispatcher so one submitted exercise fans out to all three.
	streakService := services.NewStreakService(db)
	achievementService := services.NewAchievementService(db, streakService)
	progressService := services.NewProgressService(db)
	dispatcher := services.NewCompletionPipeline(streakService, achievementService, progressService)
	resultService := services.NewResultService(db, dispatcher)
	sessionService := services.NewSessionService(db)
	srsService := services.NewSRSService(db)

	authController := controllers.NewAuthController(db)
	exerciseController := controllers.NewExerciseController(resultService)
	sessionController := controllers.NewSessionController(sessionService)
	streakController := controllers.NewStreakController(streakService)
	achievementController := controllers.NewAchievementController(achievementService)
	vocabularyController := controllers.NewVocabularyController(srsService)

	limiter := middleware.NewAdmissionLimiter()

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(limiter))

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	exercises := api.Group("/exercises", middleware.AuthRequired())
	exercises.POST("/submit", exerciseController.Submit)
	exercises.GET("/recent", exerciseController.Recent)
	exercises.GET("/stats", exerciseController.Stats)

	sessions := api.Group("/study-sessions", middleware.AuthRequired())
	sessions.POST("", sessionController.Create)
	sessions.POST("/start", sessionController.Start)
	sessions.GET("", sessionController.List)
	sessions.PUT("/:id", sessionController.Update)
	sessions.DELETE("/:id", sessionController.Delete)

	api.GET("/streak", middleware.AuthRequired(), streakController.Status)

	achievements := api.Group("/achievements", middleware.AuthRequired())
	achievements.GET("", achievementController.List)
	achievements.GET("/stats", achievementController.Stats)

	vocabulary := api.Group("/vocabulary", middleware.AuthRequired())
	vocabulary.POST("", vocabularyController.Save)
	vocabulary.POST("/:id/review", vocabularyController.Review)
	vocabulary.GET("/due", vocabularyController.Due)
	vocabulary.GET("/stats", vocabularyController.Stats)
	vocabulary.PATCH("/:id/memorized", vocabularyController.SetMemorized)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
