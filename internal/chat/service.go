// Package chat implements the message send flow between the transcript
// view and the assistant backend.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencampus/assistant-cli/internal/backend"
	"github.com/opencampus/assistant-cli/internal/domain"
	"github.com/opencampus/assistant-cli/internal/store"
)

// contextWindow is how many trailing transcript messages accompany a
// completion request.
const contextWindow = 5

// Apology is appended to the transcript when a completion fails. It is
// shown locally only and never persisted.
const Apology = "抱歉，我暂时无法回答您的问题，请稍后再试。"

// ErrNoConversation is returned when no conversation could be created for
// the message.
var ErrNoConversation = errors.New("chat: failed to create a conversation")

// Completer is the subset of the backend the send flow needs.
type Completer interface {
	AppendMessage(ctx context.Context, conversationID string, req backend.AppendMessageRequest) error
	ChatCompletion(ctx context.Context, req *backend.ChatRequest) (string, error)
}

// Service owns the per-conversation transcripts and drives the send flow:
// ensure a current conversation exists, append the user message
// optimistically, persist it, request a completion and record the reply.
//
// Every send carries a monotonic sequence number per conversation. A
// completion that returns after a newer send has started for the same
// conversation is discarded, so a stale response can never overwrite a
// newer transcript.
type Service struct {
	store    *store.ConversationStore
	backend  Completer
	logger   *zap.Logger
	settings domain.ChatSettings

	mu          sync.Mutex
	transcripts map[string][]domain.Message
	latestSeq   map[string]uint64
	nextSeq     uint64
	inflight    int
	stats       domain.AIStats
	templateID  string
}

// NewService creates a chat service bound to the given store and backend.
func NewService(s *store.ConversationStore, b Completer, settings domain.ChatSettings, logger *zap.Logger) *Service {
	return &Service{
		store:       s,
		backend:     b,
		logger:      logger,
		settings:    settings,
		transcripts: make(map[string][]domain.Message),
		latestSeq:   make(map[string]uint64),
	}
}

// Send runs the full send flow for one user message and returns the
// assistant's reply. The user message is appended to the transcript
// immediately and never rolled back. On failure the transcript gets the
// canned apology and the error is returned as the caller's transient
// notice.
func (s *Service) Send(ctx context.Context, text string) (string, error) {
	s.addInflight(1)
	defer s.addInflight(-1)

	conversationID := s.store.CurrentID()
	if conversationID == "" {
		// Exactly one create attempt; no completion is issued when it
		// fails.
		conversationID = s.store.Create(ctx, "")
		if conversationID == "" {
			return "", ErrNoConversation
		}
	}

	seq := s.beginSend(conversationID)

	userMsg := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	}
	s.appendLocal(conversationID, userMsg)
	s.persist(ctx, conversationID, userMsg)

	req := &backend.ChatRequest{
		Message:        text,
		Settings:       s.settings,
		ConversationID: conversationID,
		TemplateID:     s.SelectedTemplate(),
	}
	if s.settings.UseContext {
		req.Context = s.tail(conversationID, contextWindow)
	}

	reply, err := s.backend.ChatCompletion(ctx, req)
	if s.stale(conversationID, seq) {
		s.logger.Warn("discarded stale completion",
			zap.String("conversation_id", conversationID),
			zap.Uint64("seq", seq))
		return "", nil
	}
	if err != nil {
		s.logger.Error("chat completion failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		s.appendLocal(conversationID, domain.Message{
			ID:        uuid.NewString(),
			Role:      domain.RoleAssistant,
			Content:   Apology,
			Timestamp: time.Now(),
		})
		return "", err
	}

	assistantMsg := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now(),
	}
	s.appendLocal(conversationID, assistantMsg)
	s.persist(ctx, conversationID, assistantMsg)
	s.bumpStats()

	return reply, nil
}

// Sending reports whether a send is outstanding; the UI disables the send
// control while it is. It is a loading flag, not a lock: a caller that
// races past it is still protected by the sequence guard.
func (s *Service) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Transcript returns a copy of the visible message history for the given
// conversation.
func (s *Service) Transcript(conversationID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.transcripts[conversationID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// ClearTranscript drops the local history for a conversation, e.g. after
// the caller deletes it.
func (s *Service) ClearTranscript(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transcripts, conversationID)
	delete(s.latestSeq, conversationID)
}

// Stats returns the current usage counters.
func (s *Service) Stats() domain.AIStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// SeedStats installs counters restored from the local cache.
func (s *Service) SeedStats(stats domain.AIStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

// SelectTemplate records the prompt template applied to subsequent sends.
// The selection rides along with every completion request and is persisted
// across sessions by the local cache.
func (s *Service) SelectTemplate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templateID = id
}

// SelectedTemplate returns the active prompt template id, or "" when none
// is selected.
func (s *Service) SelectedTemplate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.templateID
}

func (s *Service) addInflight(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight += delta
}

// beginSend assigns the next sequence number and marks it as the latest
// for the conversation.
func (s *Service) beginSend(conversationID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	s.latestSeq[conversationID] = s.nextSeq
	return s.nextSeq
}

// stale reports whether a newer send has superseded the given sequence.
func (s *Service) stale(conversationID string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestSeq[conversationID] != seq
}

func (s *Service) appendLocal(conversationID string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[conversationID] = append(s.transcripts[conversationID], msg)
}

// persist stores a message server-side. A persistence failure does not
// abort the flow; the transcript already shows the message.
func (s *Service) persist(ctx context.Context, conversationID string, msg domain.Message) {
	err := s.backend.AppendMessage(ctx, conversationID, backend.AppendMessageRequest{
		Role:        msg.Role,
		Content:     msg.Content,
		MessageType: "text",
		Metadata:    msg.Metadata,
	})
	if err != nil {
		s.logger.Error("failed to persist message",
			zap.String("conversation_id", conversationID),
			zap.String("role", string(msg.Role)),
			zap.Error(err))
	}
}

// tail returns the last n transcript messages for the conversation.
func (s *Service) tail(conversationID string, n int) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.transcripts[conversationID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *Service) bumpStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.InteractionsToday++
	s.stats.TotalInteractions++
}
