// Package store keeps the client's view of the conversation list in sync
// with the remote assistant service.
package store

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/opencampus/assistant-cli/internal/backend"
	"github.com/opencampus/assistant-cli/internal/domain"
)

// Backend is the remote conversation API consumed by the store.
type Backend interface {
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	CreateConversation(ctx context.Context, title string) (*domain.Conversation, error)
	UpdateConversation(ctx context.Context, id string, update domain.ConversationUpdate) error
	DeleteConversation(ctx context.Context, id string) error
	ToggleStar(ctx context.Context, id string) (bool, error)
	SearchConversations(ctx context.Context, keyword string) ([]domain.Conversation, error)
}

// ConversationStore is the single source of truth for the set of
// conversations visible to the signed-in user and the currently selected
// one. It is kept approximately in sync with the remote service: every
// operation is a server round trip, nothing is retried, and remote
// failures degrade to "nothing happened" — errors are logged here and
// reported to callers only as a false/empty/sentinel result.
type ConversationStore struct {
	mu            sync.Mutex
	conversations []domain.Conversation
	currentID     string

	backend Backend
	logger  *zap.Logger
}

// New creates a ConversationStore backed by the given remote API.
func New(b Backend, logger *zap.Logger) *ConversationStore {
	return &ConversationStore{
		backend: b,
		logger:  logger,
	}
}

// Load fetches the full conversation list and replaces the local list
// wholesale. A missing credential skips the call with a warning; any other
// failure is logged and leaves the prior list untouched, so stale data
// stays available.
func (s *ConversationStore) Load(ctx context.Context) {
	conversations, err := s.backend.ListConversations(ctx)
	if err != nil {
		s.logRemoteFailure("load conversations", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = conversations
	if s.currentID != "" && s.indexLocked(s.currentID) < 0 {
		s.currentID = ""
	}
}

// Create asks the server for a new conversation, prepends it locally, sets
// it current and returns its id. On any failure the store is left
// unchanged and the empty string is returned; the caller must handle the
// no-conversation case.
func (s *ConversationStore) Create(ctx context.Context, title string) string {
	if title == "" {
		title = domain.DefaultConversationTitle
	}

	created, err := s.backend.CreateConversation(ctx, title)
	if err != nil {
		s.logRemoteFailure("create conversation", err)
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append([]domain.Conversation{*created}, s.conversations...)
	s.currentID = created.ID
	return created.ID
}

// Update sends a partial update to the server and, only after the server
// acknowledges it, merges the same fields into the local entry. There is
// no optimistic update and no retry.
func (s *ConversationStore) Update(ctx context.Context, id string, update domain.ConversationUpdate) bool {
	if err := s.backend.UpdateConversation(ctx, id, update); err != nil {
		s.logRemoteFailure("update conversation", err, zap.String("id", id))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		if update.Title != nil {
			s.conversations[i].Title = *update.Title
		}
		if update.Starred != nil {
			s.conversations[i].Starred = *update.Starred
		}
		if update.Archived != nil {
			s.conversations[i].Archived = *update.Archived
		}
	}
	return true
}

// Delete requests deletion and removes the local entry on acknowledgment.
// If the deleted conversation was current, the current selection is
// cleared; resetting the transcript view is the caller's responsibility.
func (s *ConversationStore) Delete(ctx context.Context, id string) bool {
	if err := s.backend.DeleteConversation(ctx, id); err != nil {
		s.logRemoteFailure("delete conversation", err, zap.String("id", id))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
	}
	if s.currentID == id {
		s.currentID = ""
	}
	return true
}

// ToggleStar flips the starred flag through a server round trip. The local
// entry is set to exactly the value the server returns; the client never
// flips the flag ahead of confirmation.
func (s *ConversationStore) ToggleStar(ctx context.Context, id string) bool {
	starred, err := s.backend.ToggleStar(ctx, id)
	if err != nil {
		s.logRemoteFailure("toggle star", err, zap.String("id", id))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		s.conversations[i].Starred = starred
	}
	return true
}

// Search runs a read-only keyword query. The stored list is never touched;
// the caller decides what to do with the results. Failures return nil.
func (s *ConversationStore) Search(ctx context.Context, keyword string) []domain.Conversation {
	results, err := s.backend.SearchConversations(ctx, keyword)
	if err != nil {
		s.logRemoteFailure("search conversations", err, zap.String("keyword", keyword))
		return nil
	}
	return results
}

// Conversations returns a copy of the current list.
func (s *ConversationStore) Conversations() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// CurrentID returns the id of the current conversation, or "" when none is
// selected.
func (s *ConversationStore) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// SetCurrent selects the given conversation. Selecting an id that is not
// in the list is a no-op and returns false.
func (s *ConversationStore) SetCurrent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) < 0 {
		return false
	}
	s.currentID = id
	return true
}

// Get returns the stored entry for the given id.
func (s *ConversationStore) Get(id string) (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.conversations[i], true
	}
	return domain.Conversation{}, false
}

// Seed installs a last-known-good snapshot, typically read from the local
// cache at startup so the list paints before the first Load completes. The
// snapshot is never treated as authoritative: the next successful Load
// replaces it wholesale.
func (s *ConversationStore) Seed(conversations []domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conversations) > 0 {
		return
	}
	s.conversations = append([]domain.Conversation(nil), conversations...)
}

func (s *ConversationStore) indexLocked(id string) int {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

// logRemoteFailure records a failed round trip. A missing credential is a
// warning (the operation was skipped, not attempted); everything else is
// an error.
func (s *ConversationStore) logRemoteFailure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if errors.Is(err, backend.ErrMissingToken) {
		s.logger.Warn("skipped "+op+": not authenticated", fields...)
		return
	}
	s.logger.Error("failed to "+op, fields...)
}
