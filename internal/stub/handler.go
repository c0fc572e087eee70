// Package stub is an in-memory implementation of the assistant backend
// contract, used for offline development and tests. It is not the real
// backend: state lives for the life of the process.
package stub

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/opencampus/assistant-cli/internal/backend"
	"github.com/opencampus/assistant-cli/internal/domain"
)

// response is the {success, data, error} envelope every endpoint returns.
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Handler serves the assistant REST contract from memory.
type Handler struct {
	token string

	mu            sync.Mutex
	conversations []*domain.Conversation
	messages      map[string][]domain.Message
	documents     []domain.Document
}

// NewHandler creates a stub backend. Requests must carry the given bearer
// token; an empty token disables the auth check.
func NewHandler(token string) *Handler {
	return &Handler{
		token:    token,
		messages: make(map[string][]domain.Message),
		documents: []domain.Document{
			{ID: "doc_1", Name: "线性代数讲义.pdf", Size: 1 << 20, ContentType: "application/pdf", UploadedAt: time.Now()},
		},
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("", h.requireToken)

	g.GET("/api/ai-assistant/conversations", h.ListConversations)
	g.POST("/api/ai-assistant/conversations", h.CreateConversation)
	g.GET("/api/ai-assistant/conversations/search", h.SearchConversations)
	g.PUT("/api/ai-assistant/conversations/:id", h.UpdateConversation)
	g.DELETE("/api/ai-assistant/conversations/:id", h.DeleteConversation)
	g.POST("/api/ai-assistant/conversations/:id/star", h.ToggleStar)
	g.POST("/api/ai-assistant/conversations/:id/messages", h.AppendMessage)
	g.POST("/api/ai-assistant/chat", h.Chat)

	g.GET("/api/documents", h.ListDocuments)
	g.DELETE("/api/documents/:id", h.DeleteDocument)
	g.GET("/api/analytics/summary", h.AnalyticsSummary)

	e.GET("/health", h.Health)
}

// requireToken rejects requests without the expected bearer credential.
func (h *Handler) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.token == "" {
			return next(c)
		}
		auth := c.Request().Header.Get("Authorization")
		if auth != "Bearer "+h.token {
			return c.JSON(http.StatusUnauthorized, response{Error: "invalid or missing token"})
		}
		return next(c)
	}
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// ListConversations returns all conversations, newest first.
func (h *Handler) ListConversations(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.JSON(http.StatusOK, response{
		Success: true,
		Data:    map[string]interface{}{"conversations": h.snapshotLocked()},
	})
}

// CreateConversation creates a conversation and returns its identity.
func (h *Handler) CreateConversation(c echo.Context) error {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response{Error: "invalid request body"})
	}
	if req.Title == "" {
		req.Title = domain.DefaultConversationTitle
	}

	conv := &domain.Conversation{
		ID:        "conv_" + uuid.New().String()[:8],
		Title:     req.Title,
		Timestamp: time.Now(),
	}

	h.mu.Lock()
	h.conversations = append([]*domain.Conversation{conv}, h.conversations...)
	h.mu.Unlock()

	return c.JSON(http.StatusOK, response{
		Success: true,
		Data: map[string]interface{}{
			"id":         conv.ID,
			"title":      conv.Title,
			"created_at": conv.Timestamp,
		},
	})
}

// UpdateConversation applies a partial update.
func (h *Handler) UpdateConversation(c echo.Context) error {
	var update domain.ConversationUpdate
	if err := c.Bind(&update); err != nil {
		return c.JSON(http.StatusBadRequest, response{Error: "invalid request body"})
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	conv := h.findLocked(c.Param("id"))
	if conv == nil {
		return c.JSON(http.StatusNotFound, response{Error: "conversation not found"})
	}
	if update.Title != nil {
		conv.Title = *update.Title
	}
	if update.Starred != nil {
		conv.Starred = *update.Starred
	}
	if update.Archived != nil {
		conv.Archived = *update.Archived
	}
	return c.JSON(http.StatusOK, response{Success: true})
}

// DeleteConversation removes a conversation and its messages.
func (h *Handler) DeleteConversation(c echo.Context) error {
	id := c.Param("id")

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, conv := range h.conversations {
		if conv.ID == id {
			h.conversations = append(h.conversations[:i], h.conversations[i+1:]...)
			delete(h.messages, id)
			return c.JSON(http.StatusOK, response{Success: true})
		}
	}
	return c.JSON(http.StatusNotFound, response{Error: "conversation not found"})
}

// ToggleStar flips the starred flag and returns the resulting value.
func (h *Handler) ToggleStar(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	conv := h.findLocked(c.Param("id"))
	if conv == nil {
		return c.JSON(http.StatusNotFound, response{Error: "conversation not found"})
	}
	conv.Starred = !conv.Starred
	return c.JSON(http.StatusOK, response{
		Success: true,
		Data:    map[string]bool{"starred": conv.Starred},
	})
}

// SearchConversations returns conversations whose title or last message
// contains the keyword.
func (h *Handler) SearchConversations(c echo.Context) error {
	keyword := c.QueryParam("keyword")

	h.mu.Lock()
	defer h.mu.Unlock()
	var matches []domain.Conversation
	for _, conv := range h.conversations {
		if strings.Contains(conv.Title, keyword) || strings.Contains(conv.LastMessage, keyword) {
			matches = append(matches, *conv)
		}
	}
	if matches == nil {
		matches = []domain.Conversation{}
	}
	return c.JSON(http.StatusOK, response{
		Success: true,
		Data:    map[string]interface{}{"conversations": matches},
	})
}

// AppendMessage persists a message to a conversation and updates its
// summary fields.
func (h *Handler) AppendMessage(c echo.Context) error {
	id := c.Param("id")
	var req backend.AppendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response{Error: "invalid request body"})
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	conv := h.findLocked(id)
	if conv == nil {
		return c.JSON(http.StatusNotFound, response{Error: "conversation not found"})
	}

	msg := domain.Message{
		ID:        "msg_" + uuid.New().String()[:8],
		Role:      req.Role,
		Content:   req.Content,
		Timestamp: time.Now(),
		Metadata:  req.Metadata,
	}
	h.messages[id] = append(h.messages[id], msg)
	conv.LastMessage = req.Content
	conv.MessageCount = len(h.messages[id])
	conv.Timestamp = msg.Timestamp

	return c.JSON(http.StatusOK, response{Success: true})
}

// Chat returns a canned completion echoing the question.
func (h *Handler) Chat(c echo.Context) error {
	var req backend.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response{Error: "invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, response{Error: "message is required"})
	}

	reply := fmt.Sprintf("这是关于“%s”的回答（开发环境模拟回复，上下文 %d 条）。", req.Message, len(req.Context))
	return c.JSON(http.StatusOK, response{
		Success: true,
		Data:    map[string]string{"response": reply},
	})
}

// ListDocuments returns the document list.
func (h *Handler) ListDocuments(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	docs := make([]domain.Document, len(h.documents))
	copy(docs, h.documents)
	return c.JSON(http.StatusOK, response{
		Success: true,
		Data:    map[string]interface{}{"documents": docs},
	})
}

// DeleteDocument removes a document.
func (h *Handler) DeleteDocument(c echo.Context) error {
	id := c.Param("id")

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, doc := range h.documents {
		if doc.ID == id {
			h.documents = append(h.documents[:i], h.documents[i+1:]...)
			return c.JSON(http.StatusOK, response{Success: true})
		}
	}
	return c.JSON(http.StatusNotFound, response{Error: "document not found"})
}

// AnalyticsSummary returns a fixed learning-analytics snapshot.
func (h *Handler) AnalyticsSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, response{
		Success: true,
		Data: domain.AnalyticsSummary{
			StudyMinutes: 420,
			ExamsTaken:   3,
			AverageScore: 86.5,
			ActiveDays:   12,
		},
	})
}

func (h *Handler) findLocked(id string) *domain.Conversation {
	for _, conv := range h.conversations {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

func (h *Handler) snapshotLocked() []domain.Conversation {
	out := make([]domain.Conversation, 0, len(h.conversations))
	for _, conv := range h.conversations {
		out = append(out, *conv)
	}
	return out
}
