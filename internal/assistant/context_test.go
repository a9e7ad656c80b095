package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sandevgo/tutorbot/internal/core"
)

type fakeProgress struct {
	mu       sync.Mutex
	snapshot core.ProgressSnapshot
	err      error
	calls    int
}

func (f *fakeProgress) GetProgress(ctx context.Context, learnerID string) (core.ProgressSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snapshot, f.err
}

type fakeAchievements struct {
	mu       sync.Mutex
	snapshot core.AchievementsSnapshot
	err      error
	calls    int
}

func (f *fakeAchievements) GetAchievements(ctx context.Context, learnerID string) (core.AchievementsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snapshot, f.err
}

type fakeContent struct {
	day core.DayContent
	err error
}

func (f *fakeContent) GetDayContent(ctx context.Context, languageID string, day int) (core.DayContent, error) {
	return f.day, f.err
}

func TestContextAggregator_AllSourcesHealthy(t *testing.T) {
	progress := &fakeProgress{snapshot: core.ProgressSnapshot{
		CurrentDay:    12,
		LanguageID:    "python",
		CompletedDays: []int{1, 2, 3},
	}}
	achievements := &fakeAchievements{snapshot: core.AchievementsSnapshot{
		CurrentStreak:       7,
		TotalTasksCompleted: 34,
	}}
	content := &fakeContent{day: core.DayContent{
		TheorySummary: "dictionaries",
		TasksSummary:  "build a phone book",
	}}

	a := NewContextAggregator(progress, achievements, content)
	got := a.Aggregate(context.Background(), "learner-1", "premium")

	if got.LearnerID != "learner-1" || got.Tier != "premium" {
		t.Errorf("identity fields = %s/%s", got.LearnerID, got.Tier)
	}
	if got.CurrentDay != 12 || got.LanguageID != "python" {
		t.Errorf("progress fields = day %d, lang %s", got.CurrentDay, got.LanguageID)
	}
	if len(got.CompletedDays) != 3 {
		t.Errorf("completed days = %v", got.CompletedDays)
	}
	if got.CurrentStreak != 7 || got.TotalTasksCompleted != 34 {
		t.Errorf("achievement fields = %d/%d", got.CurrentStreak, got.TotalTasksCompleted)
	}
	if got.DayTheorySummary != "dictionaries" || got.DayTasksSummary != "build a phone book" {
		t.Errorf("content fields = %q/%q", got.DayTheorySummary, got.DayTasksSummary)
	}
}

func TestContextAggregator_ProgressFailureDegradesToDefaults(t *testing.T) {
	progress := &fakeProgress{err: errors.New("progress service down")}
	achievements := &fakeAchievements{snapshot: core.AchievementsSnapshot{CurrentStreak: 5}}

	a := NewContextAggregator(progress, achievements, nil)
	got := a.Aggregate(context.Background(), "learner-1", "free")

	if got.CurrentDay != 1 {
		t.Errorf("current day = %d, want default 1", got.CurrentDay)
	}
	if got.LanguageID != "python" {
		t.Errorf("language = %s, want default python", got.LanguageID)
	}
	// The healthy collaborator's data must still land.
	if got.CurrentStreak != 5 {
		t.Errorf("streak = %d, want 5 from healthy source", got.CurrentStreak)
	}
}

func TestContextAggregator_AchievementsFailureDegradesToZero(t *testing.T) {
	progress := &fakeProgress{snapshot: core.ProgressSnapshot{CurrentDay: 30, LanguageID: "javascript"}}
	achievements := &fakeAchievements{err: errors.New("achievements service down")}

	a := NewContextAggregator(progress, achievements, nil)
	got := a.Aggregate(context.Background(), "learner-1", "free")

	if got.CurrentStreak != 0 || got.TotalTasksCompleted != 0 {
		t.Errorf("achievement fields = %d/%d, want zeros", got.CurrentStreak, got.TotalTasksCompleted)
	}
	if got.CurrentDay != 30 || got.LanguageID != "javascript" {
		t.Errorf("progress fields = day %d, lang %s", got.CurrentDay, got.LanguageID)
	}
}

func TestContextAggregator_ContentFailureDropsSummaries(t *testing.T) {
	progress := &fakeProgress{snapshot: core.ProgressSnapshot{CurrentDay: 12, LanguageID: "python"}}
	achievements := &fakeAchievements{}
	content := &fakeContent{err: errors.New("content service down")}

	a := NewContextAggregator(progress, achievements, content)
	got := a.Aggregate(context.Background(), "learner-1", "free")

	if got.DayTheorySummary != "" || got.DayTasksSummary != "" {
		t.Errorf("summaries = %q/%q, want empty on content failure", got.DayTheorySummary, got.DayTasksSummary)
	}
	if got.CurrentDay != 12 {
		t.Errorf("day = %d, request must not sink with content", got.CurrentDay)
	}
}

func TestContextAggregator_ZeroDaySnapshotKeepsDefault(t *testing.T) {
	progress := &fakeProgress{snapshot: core.ProgressSnapshot{CurrentDay: 0, LanguageID: ""}}
	achievements := &fakeAchievements{}

	a := NewContextAggregator(progress, achievements, nil)
	got := a.Aggregate(context.Background(), "learner-1", "free")

	if got.CurrentDay != 1 || got.LanguageID != "python" {
		t.Errorf("got day %d lang %s, want defaults for empty snapshot", got.CurrentDay, got.LanguageID)
	}
}

func TestContextAggregator_ConcurrentReads(t *testing.T) {
	progress := &fakeProgress{snapshot: core.ProgressSnapshot{CurrentDay: 12, LanguageID: "python"}}
	achievements := &fakeAchievements{}
	a := NewContextAggregator(progress, achievements, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := a.Aggregate(context.Background(), "learner-1", "free")
			if got.CurrentDay != 12 {
				t.Errorf("day = %d", got.CurrentDay)
			}
		}()
	}
	wg.Wait()

	progress.mu.Lock()
	defer progress.mu.Unlock()
	if progress.calls != 10 {
		t.Errorf("progress reads = %d, want one per aggregate", progress.calls)
	}
}
