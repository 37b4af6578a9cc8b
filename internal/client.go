package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// AISettings is the server-reported assistant configuration.
type AISettings struct {
	IsEnabled bool   `json:"is_enabled"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
}

// Surrogate is one selectable entity from the context selector endpoint.
type Surrogate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChatRequest is the outgoing payload for one streaming chat request.
// SurrogateID is omitted for global chats; ConversationID is included
// when continuing a server-side conversation.
type ChatRequest struct {
	Message        string `json:"message"`
	SurrogateID    string `json:"surrogate_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ConversationHistory is the server-persisted history for one context.
type ConversationHistory struct {
	ConversationID string    `json:"conversation_id,omitempty"`
	Messages       []Message `json:"messages"`
}

// Client talks to the assistant backend.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// NewClient creates a backend client. timeout applies to non-streaming
// requests only; streaming requests are bounded solely by their context.
func NewClient(baseURL, userID string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Settings fetches the assistant configuration.
func (c *Client) Settings(ctx context.Context) (*AISettings, error) {
	var settings AISettings
	if err := c.getJSON(ctx, "/api/ai/settings", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// ListSurrogates fetches the entities available for the context selector.
func (c *Client) ListSurrogates(ctx context.Context) ([]Surrogate, error) {
	var result struct {
		Surrogates []Surrogate `json:"surrogates"`
	}
	if err := c.getJSON(ctx, "/api/surrogates", nil, &result); err != nil {
		return nil, err
	}
	return result.Surrogates, nil
}

// History fetches the server-persisted conversation history for the
// given context.
func (c *Client) History(ctx context.Context, chatCtx Context) (*ConversationHistory, error) {
	query := url.Values{}
	if !chatCtx.IsGlobal() {
		query.Set("entity_type", chatCtx.EntityType)
		query.Set("entity_id", chatCtx.EntityID)
	}

	var history ConversationHistory
	if err := c.getJSON(ctx, "/api/ai/conversations", query, &history); err != nil {
		return nil, err
	}

	// Server history is always terminal; never resume a remote stream.
	for i := range history.Messages {
		if history.Messages[i].Status == "" || history.Messages[i].Status == StatusThinking || history.Messages[i].Status == StatusStreaming {
			history.Messages[i].Status = StatusDone
		}
	}
	return &history, nil
}

// ResolveAction forwards an approve/reject decision for a proposed action.
func (c *Client) ResolveAction(ctx context.Context, approvalID string, approve bool) error {
	verb := "reject"
	if approve {
		verb = "approve"
	}
	endpoint := fmt.Sprintf("/api/ai/actions/%s/%s", url.PathEscape(approvalID), verb)

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}
	return nil
}

// StreamChat issues one streaming chat request and feeds decoded events
// to handler in arrival order. It returns when the stream ends, errors,
// or ctx is cancelled.
func (c *Client) StreamChat(ctx context.Context, chatReq ChatRequest, handler func(StreamEvent) error) error {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return &StreamError{Stage: "connect", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ai/chat/stream", bytes.NewReader(body))
	if err != nil {
		return &StreamError{Stage: "connect", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	// Deliberately not c.httpClient: its timeout would cut long streams.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return &StreamError{Stage: "connect", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StreamError{
			Stage: "connect",
			Err:   fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(payload)),
		}
	}

	return DecodeStream(resp.Body, handler)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Err: err}
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	target := endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Endpoint: endpoint, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}
