// Package domain defines the core data model for the assistant client.
package domain

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultConversationTitle is used when a conversation is created without
// an explicit title (matches the platform's default).
const DefaultConversationTitle = "新对话"

// Conversation is one named thread of chat messages, persisted server-side.
// Identity is assigned by the remote service on creation; the client never
// invents an id that outlives server confirmation.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LastMessage  string    `json:"last_message"`
	Timestamp    time.Time `json:"timestamp"`
	Starred      bool      `json:"starred"`
	Archived     bool      `json:"archived"`
	MessageCount int       `json:"message_count"`
}

// ConversationUpdate carries a partial conversation update. Nil fields are
// left untouched on both sides.
type ConversationUpdate struct {
	Title    *string `json:"title,omitempty"`
	Starred  *bool   `json:"starred,omitempty"`
	Archived *bool   `json:"archived,omitempty"`
}

// Message is a single entry in a conversation transcript. Transcripts are
// append-only; messages are ordered by insertion.
type Message struct {
	ID        string            `json:"id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ChatSettings are the free-form options forwarded with a completion request.
type ChatSettings struct {
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	UseContext  bool    `json:"use_context"`
}

// AIStats are client-side usage counters. They are persisted in the local
// cache only and never reconciled against the server.
type AIStats struct {
	InteractionsToday int     `json:"interactions_today"`
	TotalInteractions int     `json:"total_interactions"`
	AccuracyPct       float64 `json:"accuracy_pct"`
	StudyMinutes      int     `json:"study_minutes"`
}

// Document is a file managed by the platform's document service.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// AnalyticsSummary is the aggregate learning-analytics snapshot exposed by
// the platform's analytics service.
type AnalyticsSummary struct {
	StudyMinutes int     `json:"study_minutes"`
	ExamsTaken   int     `json:"exams_taken"`
	AverageScore float64 `json:"average_score"`
	ActiveDays   int     `json:"active_days"`
}
