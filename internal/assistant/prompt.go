package assistant

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sandevgo/tutorbot/internal/core"
)

const defaultHistoryTokenBudget = 1500

var (
	tokenizerOnce sync.Once
	tokenizer     *tiktoken.Tiktoken
)

func getTokenizer() *tiktoken.Tiktoken {
	tokenizerOnce.Do(func() {
		tk, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// Fall back to the rune estimate in countTokens.
			return
		}
		tokenizer = tk
	})
	return tokenizer
}

func countTokens(text string) int {
	if tk := getTokenizer(); tk != nil {
		return len(tk.Encode(text, nil, nil))
	}
	// Rough estimate: ~4 characters per token.
	return utf8.RuneCountInString(text)/4 + 1
}

var personaByType = map[core.RequestType]map[core.Locale]string{
	core.RequestQuestion: {
		core.LocaleEN: "You are a patient programming tutor on a 90-day course. Answer the learner's question clearly, with a short example where it helps.",
		core.LocaleRU: "Ты терпеливый наставник по программированию на 90-дневном курсе. Ответь на вопрос ученика понятно, с коротким примером, если он поможет.",
	},
	core.RequestCodeHelp: {
		core.LocaleEN: "You are a programming tutor on a 90-day course. Review the learner's code, point out the problem and explain how to fix it without writing the full solution for them.",
		core.LocaleRU: "Ты наставник по программированию на 90-дневном курсе. Разбери код ученика, укажи на проблему и объясни, как её исправить, не выписывая полное решение за него.",
	},
	core.RequestAdvice: {
		core.LocaleEN: "You are a supportive mentor on a 90-day programming course. Give practical study advice grounded in the learner's progress.",
		core.LocaleRU: "Ты поддерживающий наставник на 90-дневном курсе программирования. Дай практичный совет по учёбе с учётом прогресса ученика.",
	},
	core.RequestGeneral: {
		core.LocaleEN: "You are a friendly tutor on a 90-day programming course. Keep answers short, concrete and on topic.",
		core.LocaleRU: "Ты дружелюбный наставник на 90-дневном курсе программирования. Отвечай коротко, конкретно и по теме.",
	},
}

// PromptBuilder turns a learner context and a sanitized message into the
// message list sent to the completion service.
type PromptBuilder struct {
	locale        core.Locale
	historyBudget int
}

func NewPromptBuilder(locale core.Locale, historyTokenBudget int) *PromptBuilder {
	if historyTokenBudget <= 0 {
		historyTokenBudget = defaultHistoryTokenBudget
	}
	if !locale.Supported() {
		locale = core.LocaleRU
	}
	return &PromptBuilder{locale: locale, historyBudget: historyTokenBudget}
}

// Build assembles system persona + learner context, a token-bounded
// window of prior conversation, and the new user message. locale picks
// the persona wording; unsupported values fall back to the builder's
// configured locale.
func (b *PromptBuilder) Build(actx core.AssistantContext, sanitized string, requestType core.RequestType, locale core.Locale) []core.PromptMessage {
	if !locale.Supported() {
		locale = b.locale
	}
	persona, ok := personaByType[requestType]
	if !ok {
		persona = personaByType[core.RequestGeneral]
	}

	messages := []core.PromptMessage{
		{Role: core.RoleSystem, Content: persona[locale] + "\n\n" + b.contextBlock(actx)},
	}
	messages = append(messages, b.historyWindow(actx.RecentMessages)...)
	messages = append(messages, core.PromptMessage{Role: core.RoleUser, Content: sanitized})
	return messages
}

func (b *PromptBuilder) contextBlock(actx core.AssistantContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Learner context: day %d of 90, language %s.", actx.CurrentDay, actx.LanguageID)
	fmt.Fprintf(&sb, " Completed days: %d.", len(actx.CompletedDays))
	fmt.Fprintf(&sb, " Current streak: %d. Tasks completed: %d.", actx.CurrentStreak, actx.TotalTasksCompleted)
	if actx.DayTheorySummary != "" {
		fmt.Fprintf(&sb, "\nToday's theory: %s", actx.DayTheorySummary)
	}
	if actx.DayTasksSummary != "" {
		fmt.Fprintf(&sb, "\nToday's tasks: %s", actx.DayTasksSummary)
	}
	return sb.String()
}

// historyWindow keeps the newest messages that fit the token budget,
// returned in chronological order. System messages (rejection notes,
// failure explanations) never feed back into prompts.
func (b *PromptBuilder) historyWindow(recent []core.Message) []core.PromptMessage {
	var window []core.PromptMessage
	budget := b.historyBudget

	for i := len(recent) - 1; i >= 0; i-- {
		msg := recent[i]
		if msg.Role == core.RoleSystem {
			continue
		}
		cost := countTokens(msg.Content)
		if cost > budget {
			break
		}
		budget -= cost
		window = append(window, core.PromptMessage{Role: msg.Role, Content: msg.Content})
	}

	// Reverse back to chronological order.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window
}
