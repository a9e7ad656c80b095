package assistant

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/sandevgo/tutorbot/internal/core"
)

const DefaultMaxMessageLength = 2000

var (
	stripPolicy = bluemonday.StrictPolicy()

	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)

	// Prompt-injection phrasing: telling the model to drop its
	// instructions, assume a new system role or adopt a persona.
	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+instructions`),
		regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior)\s+instructions`),
		regexp.MustCompile(`(?i)forget\s+(all\s+)?(your|previous)\s+instructions`),
		regexp.MustCompile(`(?i)you\s+are\s+(now|no\s+longer)\s+`),
		regexp.MustCompile(`(?i)act\s+as\s+(a|an|the)\s+`),
		regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)`),
		regexp.MustCompile(`(?i)(new|your)\s+system\s+(prompt|role)`),
		regexp.MustCompile(`(?i)игнорируй\s+(все\s+)?(предыдущие\s+)?инструкции`),
		regexp.MustCompile(`(?i)забудь\s+(все\s+)?(свои\s+)?инструкции`),
		regexp.MustCompile(`(?i)представь,?\s+что\s+ты`),
		regexp.MustCompile(`(?i)теперь\s+ты\s+`),
	}

	blockedTerms = map[core.Locale][]string{
		core.LocaleEN: {
			"stupid bot",
			"shut up",
			"casino",
			"gambling",
			"porn",
			"buy followers",
		},
		core.LocaleRU: {
			"тупой бот",
			"заткнись",
			"казино",
			"ставки на спорт",
			"порно",
			"накрутка",
		},
	}

	rejectReasons = map[core.RejectReason]map[core.Locale]string{
		core.ReasonTooLong: {
			core.LocaleEN: "Your message is too long. Please keep it under 2000 characters.",
			core.LocaleRU: "Сообщение слишком длинное. Пожалуйста, уложитесь в 2000 символов.",
		},
		core.ReasonBlockedContent: {
			core.LocaleEN: "Your message contains content that is not allowed. Please rephrase it.",
			core.LocaleRU: "Сообщение содержит недопустимый контент. Пожалуйста, переформулируйте его.",
		},
		core.ReasonInjection: {
			core.LocaleEN: "Your message looks like an attempt to change how the assistant works. Please ask a course-related question instead.",
			core.LocaleRU: "Сообщение похоже на попытку изменить работу ассистента. Пожалуйста, задайте вопрос по курсу.",
		},
	}
)

// ContentFilter sanitizes raw learner input and rejects abuse and
// prompt-injection attempts. It is pure: no I/O, no mutable state, safe
// for concurrent use.
type ContentFilter struct {
	maxLength int
	locale    core.Locale
}

func NewContentFilter(maxLength int, locale core.Locale) *ContentFilter {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	if !locale.Supported() {
		locale = core.LocaleRU
	}
	return &ContentFilter{maxLength: maxLength, locale: locale}
}

// Filter checks and sanitizes raw. locale selects the blocklist and the
// rejection wording; unsupported values fall back to the filter's
// configured locale. Rejected input carries no sanitized payload; the
// caller must not forward it.
func (f *ContentFilter) Filter(raw string, locale core.Locale) core.FilterResult {
	if !locale.Supported() {
		locale = f.locale
	}

	if utf8.RuneCountInString(raw) > f.maxLength {
		return reject(core.ReasonTooLong, locale, nil)
	}

	// Strip markup, then decode entities the sanitizer left escaped.
	cleaned := html.UnescapeString(stripPolicy.Sanitize(raw))

	if terms := matchBlocked(cleaned, locale); len(terms) > 0 {
		return reject(core.ReasonBlockedContent, locale, terms)
	}

	for _, pattern := range injectionPatterns {
		if pattern.MatchString(cleaned) {
			return reject(core.ReasonInjection, locale, nil)
		}
	}

	return core.FilterResult{
		Allowed:   true,
		Sanitized: normalizeWhitespace(cleaned),
	}
}

func matchBlocked(text string, locale core.Locale) []string {
	lowered := strings.ToLower(text)

	var matched []string
	for _, term := range blockedTerms[locale] {
		if strings.Contains(lowered, term) {
			matched = append(matched, term)
		}
	}
	return matched
}

func reject(code core.RejectReason, locale core.Locale, terms []string) core.FilterResult {
	return core.FilterResult{
		Allowed:      false,
		Code:         code,
		Reason:       rejectReasons[code][locale],
		BlockedTerms: terms,
	}
}

// normalizeWhitespace collapses runs of spaces and tabs, caps consecutive
// newlines at two and trims the edges.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = newlineRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
