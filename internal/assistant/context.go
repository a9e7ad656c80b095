package assistant

import (
	"context"
	"sync"

	"github.com/sandevgo/tutorbot/internal/core"
	"github.com/sandevgo/tutorbot/pkg/log"
)

const (
	defaultCurrentDay = 1
	defaultLanguageID = "python"
)

// ContextAggregator builds the per-request learner snapshot from the
// progress and achievements collaborators. It never caches: learner
// state changes too often, and the reads are cheap.
type ContextAggregator struct {
	progress     core.ProgressReader
	achievements core.AchievementsReader
	content      core.ContentReader // optional
}

func NewContextAggregator(
	progress core.ProgressReader,
	achievements core.AchievementsReader,
	content core.ContentReader,
) *ContextAggregator {
	return &ContextAggregator{
		progress:     progress,
		achievements: achievements,
		content:      content,
	}
}

// Aggregate reads progress and achievements concurrently. A failed read
// degrades its own fields to defaults and never sinks the request; the
// other collaborator's data is still used.
func (a *ContextAggregator) Aggregate(ctx context.Context, learnerID, tier string) core.AssistantContext {
	logger := log.FromCtx(ctx)

	out := core.AssistantContext{
		LearnerID:  learnerID,
		Tier:       tier,
		CurrentDay: defaultCurrentDay,
		LanguageID: defaultLanguageID,
	}

	var (
		wg           sync.WaitGroup
		progress     core.ProgressSnapshot
		achievements core.AchievementsSnapshot
		progressErr  error
		achieveErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		progress, progressErr = a.progress.GetProgress(ctx, learnerID)
	}()
	go func() {
		defer wg.Done()
		achievements, achieveErr = a.achievements.GetAchievements(ctx, learnerID)
	}()
	wg.Wait()

	if progressErr != nil {
		logger.Warn().Err(progressErr).Str("learner_id", learnerID).Msg("progress read failed, using defaults")
	} else {
		if progress.CurrentDay > 0 {
			out.CurrentDay = progress.CurrentDay
		}
		if progress.LanguageID != "" {
			out.LanguageID = progress.LanguageID
		}
		out.CompletedDays = progress.CompletedDays
	}

	if achieveErr != nil {
		logger.Warn().Err(achieveErr).Str("learner_id", learnerID).Msg("achievements read failed, using defaults")
	} else {
		out.CurrentStreak = achievements.CurrentStreak
		out.TotalTasksCompleted = achievements.TotalTasksCompleted
	}

	if a.content != nil {
		day, err := a.content.GetDayContent(ctx, out.LanguageID, out.CurrentDay)
		if err != nil {
			logger.Warn().Err(err).
				Str("language_id", out.LanguageID).
				Int("day", out.CurrentDay).
				Msg("day content read failed, continuing without summaries")
		} else {
			out.DayTheorySummary = day.TheorySummary
			out.DayTasksSummary = day.TasksSummary
		}
	}

	return out
}
