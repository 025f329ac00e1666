package main

import (
	"github.com/langleague/langleague/config"
	"github.com/langleague/langleague/models"
	"github.com/langleague/langleague/routes"
	"github.com/langleague/langleague/utils"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.Chapter{},
		&models.ExerciseResult{},
		&models.StudySession{},
		&models.LearningStreak{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.ReviewItem{},
		&models.ChapterProgress{},
		&models.BookProgress{},
	)

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
