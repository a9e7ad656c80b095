package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sandevgo/tutorbot/internal/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewOpenAIClient(OpenAIClientConfig{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: ts.URL + "/v1",
	})
}

func completionJSON(content string) string {
	return `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": ` + mustMarshal(content) + `}, "finish_reason": "stop"}]
	}`
}

func mustMarshal(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestComplete_Success(t *testing.T) {
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("A variable binds a name to a value.")))
	})

	got, err := c.Complete(context.Background(), core.CompletionRequest{
		Messages: []core.PromptMessage{
			{Role: core.RoleSystem, Content: "You are a tutor."},
			{Role: core.RoleUser, Content: "What is a variable?"},
		},
		Temperature: 0.7,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Content != "A variable binds a name to a value." {
		t.Errorf("content = %q", got.Content)
	}
	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", gotBody.Messages)
	}
}

func TestComplete_StatusMapping(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
	}{
		{"rate_limited", http.StatusTooManyRequests, true},
		{"server_error", http.StatusInternalServerError, true},
		{"bad_request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": {"message": "upstream says no", "type": "api_error"}}`))
			})

			_, err := c.Complete(context.Background(), core.CompletionRequest{
				Messages: []core.PromptMessage{{Role: core.RoleUser, Content: "hi"}},
			})
			if err == nil {
				t.Fatal("expected error")
			}

			var svcErr *core.ServiceError
			if !errors.As(err, &svcErr) {
				t.Fatalf("err = %T %v, want ServiceError", err, err)
			}
			if svcErr.Retryable != tt.wantRetryable {
				t.Errorf("retryable = %v, want %v", svcErr.Retryable, tt.wantRetryable)
			}
			if svcErr.Status != tt.status {
				t.Errorf("status = %d, want %d", svcErr.Status, tt.status)
			}
		})
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-1", "object": "chat.completion", "choices": []}`))
	})

	_, err := c.Complete(context.Background(), core.CompletionRequest{
		Messages: []core.PromptMessage{{Role: core.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}

	var svcErr *core.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %T, want ServiceError", err)
	}
	if svcErr.Retryable {
		t.Error("empty choices is not worth retrying")
	}
}

func TestComplete_EmptyContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("")))
	})

	_, err := c.Complete(context.Background(), core.CompletionRequest{
		Messages: []core.PromptMessage{{Role: core.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for empty content")
	}

	var svcErr *core.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %T, want ServiceError", err)
	}
	if svcErr.Retryable {
		t.Error("an empty reply is not worth retrying")
	}
}

func TestComplete_JSONResponseFormat(t *testing.T) {
	var sawFormat atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ResponseFormat *struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.ResponseFormat != nil && body.ResponseFormat.Type == "json_object" {
			sawFormat.Store(true)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON(`{"ok": true}`)))
	})

	_, err := c.Complete(context.Background(), core.CompletionRequest{
		Messages:       []core.PromptMessage{{Role: core.RoleUser, Content: "hi"}},
		ResponseFormat: "json_object",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !sawFormat.Load() {
		t.Error("response_format was not forwarded")
	}
}
