// Package backend provides the HTTP client for the education platform's
// assistant service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opencampus/assistant-cli/internal/domain"
)

// ErrMissingToken is returned when no bearer credential is available. The
// call is aborted client-side before any request is sent.
var ErrMissingToken = errors.New("backend: missing bearer token")

// TokenSource supplies the bearer credential attached to every request.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource that always returns the same credential.
type StaticToken string

// Token returns the credential.
func (t StaticToken) Token() string { return string(t) }

// Client talks to the remote assistant service.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a new backend client.
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// envelope is the response wrapper used by every endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// conversationListData is the payload of list and search responses.
type conversationListData struct {
	Conversations []domain.Conversation `json:"conversations"`
}

// createConversationData is the payload of a create response.
type createConversationData struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type starData struct {
	Starred bool `json:"starred"`
}

// AppendMessageRequest is the body of an append-message call.
type AppendMessageRequest struct {
	Role        domain.Role       `json:"role"`
	Content     string            `json:"content"`
	MessageType string            `json:"message_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ChatRequest is the body of a chat completion call.
type ChatRequest struct {
	Message        string              `json:"message"`
	Context        []domain.Message    `json:"context"`
	Settings       domain.ChatSettings `json:"settings"`
	ConversationID string              `json:"conversationId"`
	TemplateID     string              `json:"templateId,omitempty"`
}

type chatData struct {
	Response string `json:"response"`
}

type documentListData struct {
	Documents []domain.Document `json:"documents"`
}

// ListConversations fetches the full conversation list for the
// authenticated user, newest first.
func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var data conversationListData
	if err := c.do(ctx, http.MethodGet, "/api/ai-assistant/conversations", nil, &data); err != nil {
		return nil, err
	}
	return data.Conversations, nil
}

// CreateConversation asks the server to create a conversation and returns
// the server-assigned entry.
func (c *Client) CreateConversation(ctx context.Context, title string) (*domain.Conversation, error) {
	body := map[string]string{"title": title}
	var data createConversationData
	if err := c.do(ctx, http.MethodPost, "/api/ai-assistant/conversations", body, &data); err != nil {
		return nil, err
	}
	return &domain.Conversation{
		ID:        data.ID,
		Title:     data.Title,
		Timestamp: data.CreatedAt,
	}, nil
}

// UpdateConversation sends a partial update for the given conversation.
func (c *Client) UpdateConversation(ctx context.Context, id string, update domain.ConversationUpdate) error {
	return c.do(ctx, http.MethodPut, "/api/ai-assistant/conversations/"+url.PathEscape(id), update, nil)
}

// DeleteConversation requests deletion of the given conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/ai-assistant/conversations/"+url.PathEscape(id), nil, nil)
}

// ToggleStar flips the starred flag server-side and returns the resulting
// value. The server is authoritative.
func (c *Client) ToggleStar(ctx context.Context, id string) (bool, error) {
	var data starData
	if err := c.do(ctx, http.MethodPost, "/api/ai-assistant/conversations/"+url.PathEscape(id)+"/star", nil, &data); err != nil {
		return false, err
	}
	return data.Starred, nil
}

// SearchConversations runs a read-only keyword query.
func (c *Client) SearchConversations(ctx context.Context, keyword string) ([]domain.Conversation, error) {
	path := "/api/ai-assistant/conversations/search?keyword=" + url.QueryEscape(keyword)
	var data conversationListData
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data.Conversations, nil
}

// AppendMessage persists a message to the given conversation.
func (c *Client) AppendMessage(ctx context.Context, conversationID string, req AppendMessageRequest) error {
	path := "/api/ai-assistant/conversations/" + url.PathEscape(conversationID) + "/messages"
	return c.do(ctx, http.MethodPost, path, req, nil)
}

// ChatCompletion issues a completion request and returns the assistant's
// reply text.
func (c *Client) ChatCompletion(ctx context.Context, req *ChatRequest) (string, error) {
	var data chatData
	if err := c.do(ctx, http.MethodPost, "/api/ai-assistant/chat", req, &data); err != nil {
		return "", err
	}
	return data.Response, nil
}

// ListDocuments fetches the user's document list.
func (c *Client) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var data documentListData
	if err := c.do(ctx, http.MethodGet, "/api/documents", nil, &data); err != nil {
		return nil, err
	}
	return data.Documents, nil
}

// DeleteDocument requests deletion of the given document.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/documents/"+url.PathEscape(id), nil, nil)
}

// AnalyticsSummary fetches the aggregate learning-analytics snapshot.
func (c *Client) AnalyticsSummary(ctx context.Context) (*domain.AnalyticsSummary, error) {
	var data domain.AnalyticsSummary
	if err := c.do(ctx, http.MethodGet, "/api/analytics/summary", nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// do performs one request/response round trip. Responses carry the
// {success, data, error} envelope; an empty 2xx body counts as success.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	token := c.tokens.Token()
	if token == "" {
		return ErrMissingToken
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env envelope
		if err := json.Unmarshal(respBody, &env); err == nil && env.Error != "" {
			return fmt.Errorf("backend error [%d]: %s", resp.StatusCode, env.Error)
		}
		return fmt.Errorf("backend error [%d]: %s", resp.StatusCode, string(respBody))
	}

	if len(respBody) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("backend rejected request: %s", env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal response data: %w", err)
		}
	}
	return nil
}
