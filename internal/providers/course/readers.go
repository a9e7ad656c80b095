package course

import (
	"context"
	"fmt"
	"strings"

	"github.com/inbucket/html2text"

	"github.com/sandevgo/tutorbot/internal/core"
)

// summaryLimit caps how much of a theory/tasks page makes it into the
// prompt context.
const summaryLimit = 600

var (
	_ core.ProgressReader     = (*Client)(nil)
	_ core.AchievementsReader = (*Client)(nil)
	_ core.ContentReader      = (*Client)(nil)
	_ core.UsageReader        = (*Client)(nil)
)

func (c *Client) GetProgress(ctx context.Context, learnerID string) (core.ProgressSnapshot, error) {
	var out core.ProgressSnapshot
	path := fmt.Sprintf("/internal/learners/%s/progress", learnerID)
	if err := c.get(ctx, path, &out); err != nil {
		return core.ProgressSnapshot{}, fmt.Errorf("get progress: %w", err)
	}
	return out, nil
}

func (c *Client) GetAchievements(ctx context.Context, learnerID string) (core.AchievementsSnapshot, error) {
	var out core.AchievementsSnapshot
	path := fmt.Sprintf("/internal/learners/%s/achievements", learnerID)
	if err := c.get(ctx, path, &out); err != nil {
		return core.AchievementsSnapshot{}, fmt.Errorf("get achievements: %w", err)
	}
	return out, nil
}

func (c *Client) GetUsage(ctx context.Context, learnerID string) (core.Usage, error) {
	var out core.Usage
	path := fmt.Sprintf("/internal/learners/%s/assistant-usage", learnerID)
	if err := c.get(ctx, path, &out); err != nil {
		return core.Usage{}, fmt.Errorf("get usage: %w", err)
	}
	return out, nil
}

// GetDayContent fetches the day's theory and task pages. The platform
// serves them as HTML; they are flattened to short plain-text summaries
// for the prompt.
func (c *Client) GetDayContent(ctx context.Context, languageID string, day int) (core.DayContent, error) {
	var raw struct {
		TheoryHTML string `json:"theoryHtml"`
		TasksHTML  string `json:"tasksHtml"`
	}
	path := fmt.Sprintf("/internal/courses/%s/days/%d", languageID, day)
	if err := c.get(ctx, path, &raw); err != nil {
		return core.DayContent{}, fmt.Errorf("get day content: %w", err)
	}

	return core.DayContent{
		TheorySummary: summarize(raw.TheoryHTML),
		TasksSummary:  summarize(raw.TasksHTML),
	}, nil
}

func summarize(htmlContent string) string {
	if htmlContent == "" {
		return ""
	}
	text, err := html2text.FromString(htmlContent, html2text.Options{TextOnly: true})
	if err != nil {
		// Better no summary than raw markup in the prompt.
		return ""
	}
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > summaryLimit {
		text = string(runes[:summaryLimit]) + "…"
	}
	return text
}
