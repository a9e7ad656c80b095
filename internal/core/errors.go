package core

import (
	"errors"
	"fmt"
)

type RejectReason string

const (
	ReasonTooLong        RejectReason = "message_too_long"
	ReasonBlockedContent RejectReason = "blocked_content"
	ReasonInjection      RejectReason = "injection_detected"
	ReasonInvalidRequest RejectReason = "invalid_request"
)

var ErrSessionNotFound = errors.New("session not found")

// ContentRejectedError terminates a request before any completion-service
// work happens. Never retried.
type ContentRejectedError struct {
	Result FilterResult
}

func (e *ContentRejectedError) Error() string {
	return fmt.Sprintf("content rejected: %s", e.Result.Code)
}

// ServiceError is a completion-service failure surfaced to the caller.
// Retryable mirrors the queue's classification so the UI can offer a
// retry action.
type ServiceError struct {
	Status      int    `json:"-"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	UserMessage string `json:"userMessage"`
	Retryable   bool   `json:"retryable"`
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("completion service error (%s, status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("completion service error (%s): %s", e.Code, e.Message)
}

// RetryableStatus reports whether an HTTP-equivalent status is worth
// another attempt: request timeout, too-many-requests and 5xx classes.
func RetryableStatus(status int) bool {
	return status == 408 || status == 429 || status >= 500
}

func NewTransientServiceError(status int, msg string) *ServiceError {
	return &ServiceError{
		Status:    status,
		Code:      "service_unavailable",
		Message:   msg,
		Retryable: true,
	}
}

func NewPermanentServiceError(status int, msg string) *ServiceError {
	return &ServiceError{
		Status:    status,
		Code:      "service_error",
		Message:   msg,
		Retryable: false,
	}
}
