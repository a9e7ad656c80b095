package core

import "time"

const (
	TutorName    = "TutorBot"
	TutorVersion = "0.1.0"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type RequestType string

const (
	RequestQuestion RequestType = "question"
	RequestCodeHelp RequestType = "code-help"
	RequestAdvice   RequestType = "advice"
	RequestGeneral  RequestType = "general"
)

type Locale string

const (
	LocaleRU Locale = "ru"
	LocaleEN Locale = "en"
)

// Supported reports whether l is a locale the assistant can answer in.
func (l Locale) Supported() bool {
	return l == LocaleRU || l == LocaleEN
}

type CodeBlock struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// MessageMeta is the optional, typed metadata a pipeline stage may attach
// to a message. Fields are independent; absent fields stay zero.
type MessageMeta struct {
	CodeBlocks    []CodeBlock `json:"codeBlocks,omitempty"`
	Suggestions   []string    `json:"suggestions,omitempty"`
	RelatedTopics []string    `json:"relatedTopics,omitempty"`
	RequestType   RequestType `json:"requestType,omitempty"`
}

// Message is immutable once created. The session store owns every message
// it holds; callers only ever see copies.
type Message struct {
	ID        string       `json:"id"`
	SessionID string       `json:"sessionId"`
	Role      Role         `json:"role"`
	Content   string       `json:"content"`
	Timestamp int64        `json:"timestamp"` // unix milliseconds
	Meta      *MessageMeta `json:"metadata,omitempty"`
}

type Session struct {
	ID           string    `json:"id"`
	LearnerID    string    `json:"learnerId"`
	StartedAt    time.Time `json:"startedAt"`
	LastActivity time.Time `json:"lastActivity"`
	Messages     []Message `json:"messages"`
}

// AssistantContext is a per-request snapshot of the learner's course
// state. It is derived, disposable and never persisted.
type AssistantContext struct {
	LearnerID           string
	Tier                string
	CurrentDay          int
	LanguageID          string
	CompletedDays       []int
	CurrentStreak       int
	TotalTasksCompleted int
	DayTheorySummary    string
	DayTasksSummary     string
	RecentMessages      []Message
}

// FilterResult is the outcome of a single content-filter pass. When
// Allowed is false, Sanitized is empty and must not be forwarded.
type FilterResult struct {
	Allowed      bool
	Sanitized    string
	Reason       string // locale-appropriate, user-presentable
	Code         RejectReason
	BlockedTerms []string // diagnostics only, never shown to the learner
}

type AssistantAnswer struct {
	Message       string      `json:"message"`
	CodeExamples  []CodeBlock `json:"codeExamples,omitempty"`
	Suggestions   []string    `json:"suggestions,omitempty"`
	RelatedTopics []string    `json:"relatedTopics,omitempty"`
	RequestType   RequestType `json:"requestType,omitempty"`
}

type Usage struct {
	RequestsToday int `json:"requestsToday"`
	Limit         int `json:"limit"`
	Remaining     int `json:"remaining"`
}
