// Package oracle wraps the generative text-completion service. The service is
// treated as unreliable by design: every failure mode (transport error,
// non-200, timeout, empty content) collapses to an empty completion, and all
// parsing of its structured output lives here so callers only ever see fields
// or fallbacks.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultModel   = "claude-haiku-4-5"
	apiVersion     = "2023-06-01"

	// completionTimeout bounds a single oracle call. There is no retry: a
	// slow or failed call degrades to the deterministic fallback instead of
	// hanging the request.
	completionTimeout = 20 * time.Second
)

// Turn is one message of a multi-turn conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client communicates with an Anthropic-style messages endpoint.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client with the given API key and model. An empty model
// selects the default.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: completionTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, model, baseURL string) *Client {
	c := NewClient(apiKey, model)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Complete sends a single-turn prompt under the given system persona and
// returns the completion text. On any failure it logs a warning and returns
// "". Callers treat an empty completion as the fallback trigger, never as an
// error.
func (c *Client) Complete(ctx context.Context, system, prompt string, maxTokens int) string {
	return c.CompleteConversation(ctx, system, []Turn{{Role: "user", Content: prompt}}, maxTokens)
}

// CompleteConversation sends a multi-turn conversation under the given system
// persona. Failure semantics match Complete.
func (c *Client) CompleteConversation(ctx context.Context, system string, turns []Turn, maxTokens int) string {
	if len(turns) == 0 {
		return ""
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}

	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	msgs := make([]message, len(turns))
	for i, tn := range turns {
		msgs[i] = message{Role: tn.Role, Content: tn.Content}
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  msgs,
	})
	if err != nil {
		slog.Warn("oracle request marshalling failed", "error", err)
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		slog.Warn("oracle request creation failed", "error", err)
		return ""
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("oracle request failed", "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("oracle returned non-OK status", "status", resp.StatusCode)
		return ""
	}

	var result messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Warn("oracle response decoding failed", "error", err)
		return ""
	}

	for _, block := range result.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text
		}
	}
	return ""
}

// messagesRequest is the JSON body for POST /v1/messages.
type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the JSON returned by POST /v1/messages.
type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
