package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sandevgo/tutorbot/internal/core"
	"github.com/sandevgo/tutorbot/pkg/log"
)

const DefaultRecentWindow = 5

var serviceErrorMessages = map[bool]map[core.Locale]string{
	true: {
		core.LocaleEN: "The assistant is temporarily unavailable. Please try again in a moment.",
		core.LocaleRU: "Ассистент временно недоступен. Попробуйте ещё раз через минуту.",
	},
	false: {
		core.LocaleEN: "The assistant could not answer this request. Please try rephrasing your question.",
		core.LocaleRU: "Ассистент не смог ответить на этот запрос. Попробуйте переформулировать вопрос.",
	},
}

// HandleRequest is one learner chat turn entering the pipeline.
type HandleRequest struct {
	SessionID   string // empty on the first turn
	LearnerID   string
	Tier        string
	Message     string
	Code        string
	TaskID      string
	RequestType core.RequestType
	Locale      core.Locale // empty means the service default
}

// HandleResult carries the answer plus the session the exchange was
// recorded in (created lazily on the first turn).
type HandleResult struct {
	Answer    core.AssistantAnswer
	SessionID string
	Cached    bool
}

type SessionInfo struct {
	SessionID    string    `json:"sessionId"`
	MessageCount int       `json:"messageCount"`
	StartedAt    time.Time `json:"startedAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Options tune the orchestrator; zero values fall back to defaults.
type Options struct {
	Locale       core.Locale
	RecentWindow int
	CacheTTL     time.Duration
	Temperature  float32
	MaxTokens    int
}

// Orchestrator composes the filter, context aggregator, cache, queue and
// session store into the request/response contract. All completion-service
// calls go through the queue; nothing here calls the service directly.
type Orchestrator struct {
	filter     *ContentFilter
	aggregator *ContextAggregator
	sessions   *SessionStore
	cache      *ResponseCache
	queue      *RequestQueue
	completion core.CompletionClient
	prompts    *PromptBuilder
	answers    *AnswerParser
	opts       Options
}

func NewOrchestrator(
	filter *ContentFilter,
	aggregator *ContextAggregator,
	sessions *SessionStore,
	cache *ResponseCache,
	queue *RequestQueue,
	completion core.CompletionClient,
	opts Options,
) *Orchestrator {
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = DefaultRecentWindow
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if opts.Locale == "" {
		opts.Locale = core.LocaleRU
	}
	return &Orchestrator{
		filter:     filter,
		aggregator: aggregator,
		sessions:   sessions,
		cache:      cache,
		queue:      queue,
		completion: completion,
		prompts:    NewPromptBuilder(opts.Locale, 0),
		answers:    NewAnswerParser(opts.Locale),
		opts:       opts,
	}
}

// Handle runs one turn through the pipeline: filter, context, cache,
// queue, session bookkeeping.
func (o *Orchestrator) Handle(ctx context.Context, req HandleRequest) (*HandleResult, error) {
	logger := log.FromCtx(ctx)

	requestType := req.RequestType
	if requestType == "" {
		requestType = core.RequestGeneral
	}
	locale := req.Locale
	if !locale.Supported() {
		locale = o.opts.Locale
	}

	result := o.filter.Filter(req.Message, locale)
	if !result.Allowed {
		logger.Info().
			Str("learner_id", req.LearnerID).
			Str("reason", string(result.Code)).
			Strs("blocked_terms", result.BlockedTerms).
			Msg("message rejected by content filter")
		if req.SessionID != "" {
			o.sessions.AddMessage(ctx, req.SessionID, core.Message{
				Role:    core.RoleSystem,
				Content: result.Reason,
			})
		}
		return nil, &core.ContentRejectedError{Result: result}
	}

	actx := o.aggregator.Aggregate(ctx, req.LearnerID, req.Tier)
	if req.SessionID != "" {
		actx.RecentMessages = o.sessions.GetRecentMessages(req.SessionID, o.opts.RecentWindow)
	}

	// A request carrying a code payload is never interchangeable with
	// another one, so it bypasses the cache entirely.
	cacheable := req.Code == ""
	key := CacheKey(requestType, actx.LanguageID, actx.CurrentDay, result.Sanitized)

	if cacheable {
		if answer, ok := o.cache.Get(key); ok {
			logger.Debug().Str("key", key).Msg("cache hit")
			sessionID := o.recordExchange(ctx, req, actx, result.Sanitized, answer)
			return &HandleResult{Answer: answer, SessionID: sessionID, Cached: true}, nil
		}
	}

	userContent := result.Sanitized
	if req.Code != "" {
		userContent += "\n\n```\n" + req.Code + "\n```"
	}
	messages := o.prompts.Build(actx, userContent, requestType, locale)

	var completion core.CompletionResult
	err := o.queue.Enqueue(ctx, func(ctx context.Context) error {
		var opErr error
		completion, opErr = o.completion.Complete(ctx, core.CompletionRequest{
			Messages:       messages,
			Temperature:    o.opts.Temperature,
			MaxTokens:      o.opts.MaxTokens,
			ResponseFormat: "text",
		})
		return opErr
	}, EnqueueOptions{
		Priority: priorityFor(requestType),
		Label:    string(requestType),
	})
	if err == nil && strings.TrimSpace(completion.Content) == "" {
		// An empty reply must never become a session message or a
		// cached answer.
		err = core.NewPermanentServiceError(0, "completion returned an empty reply")
	}
	if err != nil {
		svcErr := o.asServiceError(err, locale)
		logger.Error().Err(err).Str("learner_id", req.LearnerID).Msg("completion request failed")
		if req.SessionID != "" {
			o.sessions.AddMessage(ctx, req.SessionID, core.Message{
				Role:    core.RoleSystem,
				Content: svcErr.UserMessage,
			})
		}
		return nil, svcErr
	}

	answer := o.answers.Parse(completion.Content, requestType, locale)
	if cacheable {
		o.cache.Set(key, answer, o.opts.CacheTTL)
	}

	sessionID := o.recordExchange(ctx, req, actx, result.Sanitized, answer)
	return &HandleResult{Answer: answer, SessionID: sessionID}, nil
}

// SessionInfo reports conversation metadata for the session endpoints.
func (o *Orchestrator) SessionInfo(sessionID string) (SessionInfo, error) {
	sess, err := o.sessions.Get(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	return SessionInfo{
		SessionID:    sess.ID,
		MessageCount: len(sess.Messages),
		StartedAt:    sess.StartedAt,
		LastActivity: sess.LastActivity,
	}, nil
}

// ClearSession removes the conversation. Idempotent.
func (o *Orchestrator) ClearSession(sessionID string) {
	o.sessions.Clear(sessionID)
}

// InvalidateDay drops cached answers built on a day's course content.
func (o *Orchestrator) InvalidateDay(languageID string, day int) {
	o.cache.InvalidateDay(languageID, day)
}

// recordExchange appends the user message and the assistant answer to
// the session, creating the session first if none existed.
func (o *Orchestrator) recordExchange(
	ctx context.Context,
	req HandleRequest,
	actx core.AssistantContext,
	sanitized string,
	answer core.AssistantAnswer,
) string {
	sessionID := req.SessionID
	if sessionID == "" {
		sess := o.sessions.Create(ctx, req.LearnerID, SessionInit{
			Day:        actx.CurrentDay,
			LanguageID: actx.LanguageID,
			TaskID:     req.TaskID,
		})
		sessionID = sess.ID
	}

	o.sessions.AddMessage(ctx, sessionID, core.Message{
		Role:    core.RoleUser,
		Content: sanitized,
		Meta:    &core.MessageMeta{RequestType: answer.RequestType},
	})
	o.sessions.AddMessage(ctx, sessionID, core.Message{
		Role:    core.RoleAssistant,
		Content: answer.Message,
		Meta: &core.MessageMeta{
			CodeBlocks:    answer.CodeExamples,
			Suggestions:   answer.Suggestions,
			RelatedTopics: answer.RelatedTopics,
			RequestType:   answer.RequestType,
		},
	})
	return sessionID
}

func (o *Orchestrator) asServiceError(err error, locale core.Locale) *core.ServiceError {
	var svcErr *core.ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = core.NewTransientServiceError(0, err.Error())
	}
	out := *svcErr
	out.Retryable = isRetryableError(svcErr)
	if out.UserMessage == "" {
		out.UserMessage = serviceErrorMessages[out.Retryable][locale]
	}
	return &out
}

// priorityFor infers scheduling priority from caller intent: a learner
// stuck on code gets served first, small talk last.
func priorityFor(requestType core.RequestType) Priority {
	switch requestType {
	case core.RequestCodeHelp:
		return PriorityHigh
	case core.RequestGeneral:
		return PriorityLow
	default:
		return PriorityNormal
	}
}
