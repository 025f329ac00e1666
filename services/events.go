package services

import (
	"time"

	"github.com/langleague/langleague/utils"
)

// ExerciseCompleted describes a scored activity that has already been
// durably recorded.
type ExerciseCompleted struct {
	UserID       uint
	ResultID     uint
	ChapterID    uint
	ExerciseType string
	Score        int
	Timezone     *time.Location
}

// CompletionHandler is one gamification side effect of a completed activity.
type CompletionHandler interface {
	Name() string
	HandleCompleted(evt ExerciseCompleted) error
}

// CompletionDispatcher fans a completion event out to its handlers
// synchronously, best-effort. The triggering activity is already committed,
// so a handler failure is logged with full context and swallowed; it never
// rolls back the activity and never stops the remaining handlers. There is
// no redelivery.
type CompletionDispatcher struct {
	handlers []CompletionHandler
}

// NewCompletionDispatcher creates a dispatcher over the given handlers.
func NewCompletionDispatcher(handlers ...CompletionHandler) *CompletionDispatcher {
	return &CompletionDispatcher{handlers: handlers}
}

// Dispatch runs every handler once for the event.
func (d *CompletionDispatcher) Dispatch(evt ExerciseCompleted) {
	for _, h := range d.handlers {
		d.invoke(h, evt)
	}
}

func (d *CompletionDispatcher) invoke(h CompletionHandler, evt ExerciseCompleted) {
	defer func() {
		if r := recover(); r != nil {
			utils.Sugar.Errorw("completion handler panicked",
				"handler", h.Name(), "user_id", evt.UserID, "result_id", evt.ResultID,
				"panic", r)
		}
	}()
	if err := h.HandleCompleted(evt); err != nil {
		utils.Sugar.Errorw("completion handler failed",
			"handler", h.Name(), "user_id", evt.UserID, "result_id", evt.ResultID,
			"err", err)
	}
}

// streakHandler advances the user's daily streak.
type streakHandler struct {
	streaks *StreakService
}

func (h *streakHandler) Name() string { return "streak" }

func (h *streakHandler) HandleCompleted(evt ExerciseCompleted) error {
	loc := evt.Timezone
	if loc == nil {
		loc = time.UTC
	}
	_, err := h.streaks.RecordActivity(evt.UserID, loc)
	return err
}

// achievementHandler evaluates milestone rules after the completion.
type achievementHandler struct {
	achievements *AchievementService
}

func (h *achievementHandler) Name() string { return "achievements" }

func (h *achievementHandler) HandleCompleted(evt ExerciseCompleted) error {
	_, err := h.achievements.Evaluate(evt.UserID, ActivityContext{
		ExerciseType: evt.ExerciseType,
		Score:        evt.Score,
	})
	return err
}

// progressHandler recomputes chapter and book completion.
type progressHandler struct {
	progress *ProgressService
}

func (h *progressHandler) Name() string { return "progress" }

func (h *progressHandler) HandleCompleted(evt ExerciseCompleted) error {
	return h.progress.RecomputeForChapter(evt.UserID, evt.ChapterID)
}

// NewCompletionPipeline wires the standard post-completion fan-out: streak
// continuity, achievement evaluation, and progress aggregation.
func NewCompletionPipeline(streaks *StreakService, achievements *AchievementService, progress *ProgressService) *CompletionDispatcher {
	return NewCompletionDispatcher(
		&streakHandler{streaks: streaks},
		&achievementHandler{achievements: achievements},
		&progressHandler{progress: progress},
	)
}
