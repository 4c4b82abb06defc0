package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestComplete_ReturnsText(t *testing.T) {
	var gotReq messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key-1" {
			t.Errorf("x-api-key = %q, want key-1", r.Header.Get("x-api-key"))
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(messagesResponse{Content: []contentBlock{{Type: "text", Text: "hello there"}}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key-1", "test-model", srv.URL)
	got := c.Complete(context.Background(), "persona", "say hello", 50)

	if got != "hello there" {
		t.Errorf("Complete = %q, want %q", got, "hello there")
	}
	if gotReq.System != "persona" {
		t.Errorf("system = %q, want %q", gotReq.System, "persona")
	}
	if gotReq.MaxTokens != 50 {
		t.Errorf("max_tokens = %d, want 50", gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "say hello" {
		t.Errorf("messages = %+v, want single user prompt", gotReq.Messages)
	}
}

func TestComplete_FailuresReturnEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"rate limited", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}},
		{"no text blocks", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(messagesResponse{Content: []contentBlock{{Type: "tool_use"}}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClientWithBaseURL("key-1", "test-model", srv.URL)
			if got := c.Complete(context.Background(), "p", "q", 10); got != "" {
				t.Errorf("Complete = %q, want empty on failure", got)
			}
		})
	}
}

func TestComplete_UnreachableServer(t *testing.T) {
	c := NewClientWithBaseURL("key-1", "test-model", "http://127.0.0.1:1")
	if got := c.Complete(context.Background(), "p", "q", 10); got != "" {
		t.Errorf("Complete = %q, want empty when server unreachable", got)
	}
}
