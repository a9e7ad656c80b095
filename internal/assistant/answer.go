package assistant

import (
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"

	"github.com/sandevgo/tutorbot/internal/core"
)

var suggestionsByType = map[core.RequestType]map[core.Locale][]string{
	core.RequestQuestion: {
		core.LocaleEN: {"Show me an example", "Explain it more simply", "Give me a practice task"},
		core.LocaleRU: {"Покажи пример", "Объясни проще", "Дай задачу для практики"},
	},
	core.RequestCodeHelp: {
		core.LocaleEN: {"Check my fixed version", "Why did my code fail?", "Show the idiomatic way"},
		core.LocaleRU: {"Проверь исправленный вариант", "Почему мой код не работал?", "Покажи идиоматичный способ"},
	},
	core.RequestAdvice: {
		core.LocaleEN: {"Make me a study plan", "How do I keep my streak?"},
		core.LocaleRU: {"Составь план занятий", "Как не потерять серию?"},
	},
	core.RequestGeneral: {
		core.LocaleEN: {"What should I learn today?", "Quiz me on today's topic"},
		core.LocaleRU: {"Что изучить сегодня?", "Проверь меня по теме дня"},
	},
}

// AnswerParser turns the model's markdown reply into the answer payload:
// fenced code blocks become typed CodeExamples, and canned follow-up
// suggestions are attached per request type.
type AnswerParser struct {
	locale core.Locale
}

func NewAnswerParser(locale core.Locale) *AnswerParser {
	if !locale.Supported() {
		locale = core.LocaleRU
	}
	return &AnswerParser{locale: locale}
}

// Parse builds the answer payload. locale picks the suggestion wording;
// unsupported values fall back to the parser's configured locale.
func (a *AnswerParser) Parse(content string, requestType core.RequestType, locale core.Locale) core.AssistantAnswer {
	if !locale.Supported() {
		locale = a.locale
	}
	answer := core.AssistantAnswer{
		Message:      content,
		CodeExamples: extractCodeBlocks(content),
		RequestType:  requestType,
	}
	if canned, ok := suggestionsByType[requestType]; ok {
		answer.Suggestions = canned[locale]
	}
	return answer
}

// extractCodeBlocks walks the markdown AST and collects fenced code
// blocks with their info-string language.
func extractCodeBlocks(content string) []core.CodeBlock {
	// Parser instances are single-use.
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.NoEmptyLineBeforeBlock)
	doc := p.Parse([]byte(content))

	var blocks []core.CodeBlock
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if cb, ok := node.(*ast.CodeBlock); ok && entering {
			blocks = append(blocks, core.CodeBlock{
				Language: strings.TrimSpace(string(cb.Info)),
				Code:     strings.TrimRight(string(cb.Literal), "\n"),
			})
		}
		return ast.GoToNext
	})
	return blocks
}
