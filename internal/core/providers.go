package core

import "context"

type ProgressSnapshot struct {
	CurrentDay    int    `json:"currentDay"`
	LanguageID    string `json:"languageId"`
	CompletedDays []int  `json:"completedDays"`
}

type AchievementsSnapshot struct {
	CurrentStreak       int `json:"currentStreak"`
	TotalTasksCompleted int `json:"totalTasksCompleted"`
}

type DayContent struct {
	TheorySummary string `json:"theorySummary"`
	TasksSummary  string `json:"tasksSummary"`
}

type ProgressReader interface {
	GetProgress(ctx context.Context, learnerID string) (ProgressSnapshot, error)
}

type AchievementsReader interface {
	GetAchievements(ctx context.Context, learnerID string) (AchievementsSnapshot, error)
}

type ContentReader interface {
	GetDayContent(ctx context.Context, languageID string, day int) (DayContent, error)
}

type UsageReader interface {
	GetUsage(ctx context.Context, learnerID string) (Usage, error)
}

type PromptMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	Messages       []PromptMessage
	Temperature    float32
	MaxTokens      int
	ResponseFormat string // "text" or "json_object"
}

type CompletionResult struct {
	Content string
}

type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}
