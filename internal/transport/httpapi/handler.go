package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sandevgo/tutorbot/internal/assistant"
	"github.com/sandevgo/tutorbot/internal/core"
	"github.com/sandevgo/tutorbot/pkg/log"
)

// Headers set by the upstream auth/tier middleware. Rate limiting per
// tier happens there too; this service never sees over-limit requests.
const (
	headerLearnerID = "X-Learner-Id"
	headerTier      = "X-Learner-Tier"
)

// Assistant is the slice of the orchestrator the transport needs.
type Assistant interface {
	Handle(ctx context.Context, req assistant.HandleRequest) (*assistant.HandleResult, error)
	SessionInfo(sessionID string) (assistant.SessionInfo, error)
	ClearSession(sessionID string)
	InvalidateDay(languageID string, day int)
}

type Handler struct {
	assistant Assistant
	usage     core.UsageReader // optional; usage block is best-effort
	validate  *validator.Validate
}

func NewHandler(a Assistant, usage core.UsageReader) *Handler {
	return &Handler{
		assistant: a,
		usage:     usage,
		validate:  validator.New(),
	}
}

type chatRequest struct {
	Message     string `json:"message" validate:"required,max=2000"`
	RequestType string `json:"requestType" validate:"omitempty,oneof=question code-help advice general"`
	Code        string `json:"code" validate:"omitempty,max=8000"`
	TaskID      string `json:"taskId"`
	SessionID   string `json:"sessionId"`
	Locale      string `json:"locale" validate:"omitempty,oneof=ru en"`
}

type chatResponse struct {
	Message       string           `json:"message"`
	CodeExamples  []core.CodeBlock `json:"codeExamples,omitempty"`
	Suggestions   []string         `json:"suggestions,omitempty"`
	RelatedTopics []string         `json:"relatedTopics,omitempty"`
	SessionID     string           `json:"sessionId"`
	Cached        bool             `json:"cached,omitempty"`
	Usage         *core.Usage      `json:"usage,omitempty"`
}

type errorBody struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	UserMessage string   `json:"userMessage"`
	Retryable   bool     `json:"retryable"`
	Details     []string `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	learnerID := r.Header.Get(headerLearnerID)
	if learnerID == "" {
		writeError(w, http.StatusUnauthorized, errorBody{
			Code:        "unauthorized",
			Message:     "missing learner identity",
			UserMessage: "Авторизуйтесь, чтобы общаться с ассистентом.",
		})
		return
	}

	var req chatRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{
			Code:        string(core.ReasonInvalidRequest),
			Message:     "malformed request body: " + err.Error(),
			UserMessage: "Не удалось разобрать запрос.",
		})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{
			Code:        string(core.ReasonInvalidRequest),
			Message:     "validation failed",
			UserMessage: "Запрос заполнен неверно.",
			Details:     validationDetails(err),
		})
		return
	}

	result, err := h.assistant.Handle(ctx, assistant.HandleRequest{
		SessionID:   req.SessionID,
		LearnerID:   learnerID,
		Tier:        r.Header.Get(headerTier),
		Message:     req.Message,
		Code:        req.Code,
		TaskID:      req.TaskID,
		RequestType: core.RequestType(req.RequestType),
		Locale:      core.Locale(req.Locale),
	})
	if err != nil {
		h.writeHandleError(w, err)
		return
	}

	resp := chatResponse{
		Message:       result.Answer.Message,
		CodeExamples:  result.Answer.CodeExamples,
		Suggestions:   result.Answer.Suggestions,
		RelatedTopics: result.Answer.RelatedTopics,
		SessionID:     result.SessionID,
		Cached:        result.Cached,
	}
	if h.usage != nil {
		if usage, err := h.usage.GetUsage(ctx, learnerID); err == nil {
			resp.Usage = &usage
		} else {
			log.FromCtx(ctx).Warn().Err(err).Msg("usage read failed")
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SessionInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.assistant.SessionInfo(chi.URLParam(r, "sessionID"))
	if errors.Is(err, core.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, errorBody{
			Code:        "session_not_found",
			Message:     "session not found",
			UserMessage: "Диалог не найден или уже завершён.",
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{
			Code:        "internal_error",
			Message:     "session lookup failed",
			UserMessage: "Что-то пошло не так. Попробуйте позже.",
		})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) ClearSession(w http.ResponseWriter, r *http.Request) {
	h.assistant.ClearSession(chi.URLParam(r, "sessionID"))
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

type invalidateRequest struct {
	LanguageID string `json:"languageId" validate:"required"`
	Day        int    `json:"day" validate:"required,min=1,max=90"`
}

func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{
			Code:    string(core.ReasonInvalidRequest),
			Message: "malformed request body: " + err.Error(),
		})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{
			Code:    string(core.ReasonInvalidRequest),
			Message: "validation failed",
			Details: validationDetails(err),
		})
		return
	}
	h.assistant.InvalidateDay(req.LanguageID, req.Day)
	writeJSON(w, http.StatusOK, map[string]bool{"invalidated": true})
}

func (h *Handler) writeHandleError(w http.ResponseWriter, err error) {
	var rejected *core.ContentRejectedError
	if errors.As(err, &rejected) {
		writeError(w, http.StatusBadRequest, errorBody{
			Code:        string(rejected.Result.Code),
			Message:     "message rejected by content filter",
			UserMessage: rejected.Result.Reason,
		})
		return
	}

	var svcErr *core.ServiceError
	if errors.As(err, &svcErr) {
		status := http.StatusInternalServerError
		if svcErr.Retryable {
			status = http.StatusServiceUnavailable
			if svcErr.Status == http.StatusRequestTimeout || svcErr.Status == http.StatusGatewayTimeout {
				status = http.StatusGatewayTimeout
			}
		}
		writeError(w, status, errorBody{
			Code:        svcErr.Code,
			Message:     svcErr.Message,
			UserMessage: svcErr.UserMessage,
			Retryable:   svcErr.Retryable,
		})
		return
	}

	writeError(w, http.StatusInternalServerError, errorBody{
		Code:        "internal_error",
		Message:     "unexpected error",
		UserMessage: "Что-то пошло не так. Попробуйте позже.",
	})
}

func validationDetails(err error) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, fe.Field()+": "+fe.Tag())
	}
	return details
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, errorResponse{Error: body})
}
