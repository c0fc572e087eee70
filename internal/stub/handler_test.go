package stub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencampus/assistant-cli/internal/backend"
	"github.com/opencampus/assistant-cli/internal/domain"
	"github.com/opencampus/assistant-cli/internal/store"
)

func newStubServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	e := echo.New()
	NewHandler(token).RegisterRoutes(e)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server
}

func TestRejectsMissingToken(t *testing.T) {
	server := newStubServer(t, "secret")

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/ai-assistant/conversations", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConversationLifecycle(t *testing.T) {
	server := newStubServer(t, "secret")
	client := backend.NewClient(server.URL, backend.StaticToken("secret"), time.Second)
	ctx := context.Background()

	// Create two, list newest first.
	first, err := client.CreateConversation(ctx, "高数答疑")
	require.NoError(t, err)
	second, err := client.CreateConversation(ctx, "英语作文")
	require.NoError(t, err)

	conversations, err := client.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, second.ID, conversations[0].ID)
	assert.Equal(t, first.ID, conversations[1].ID)

	// Rename.
	title := "英语写作"
	require.NoError(t, client.UpdateConversation(ctx, second.ID, domain.ConversationUpdate{Title: &title}))
	conversations, err = client.ListConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, "英语写作", conversations[0].Title)

	// Star toggles through the server and reports the resulting value.
	starred, err := client.ToggleStar(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, starred)
	starred, err = client.ToggleStar(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, starred)

	// Messages update the conversation summary.
	require.NoError(t, client.AppendMessage(ctx, first.ID, backend.AppendMessageRequest{
		Role: "user", Content: "请讲解洛必达法则", MessageType: "text",
	}))
	conversations, err = client.ListConversations(ctx)
	require.NoError(t, err)
	var found bool
	for _, conv := range conversations {
		if conv.ID == first.ID {
			found = true
			assert.Equal(t, "请讲解洛必达法则", conv.LastMessage)
			assert.Equal(t, 1, conv.MessageCount)
		}
	}
	require.True(t, found)

	// Delete.
	require.NoError(t, client.DeleteConversation(ctx, first.ID))
	conversations, err = client.ListConversations(ctx)
	require.NoError(t, err)
	assert.Len(t, conversations, 1)

	// Deleting twice is a 404 surfaced as an error.
	assert.Error(t, client.DeleteConversation(ctx, first.ID))
}

func TestSearchMatchesTitleAndLastMessage(t *testing.T) {
	server := newStubServer(t, "secret")
	client := backend.NewClient(server.URL, backend.StaticToken("secret"), time.Second)
	ctx := context.Background()

	byTitle, err := client.CreateConversation(ctx, "物理竞赛")
	require.NoError(t, err)
	byMessage, err := client.CreateConversation(ctx, "随便聊聊")
	require.NoError(t, err)
	require.NoError(t, client.AppendMessage(ctx, byMessage.ID, backend.AppendMessageRequest{
		Role: "user", Content: "物理作业怎么写", MessageType: "text",
	}))
	_, err = client.CreateConversation(ctx, "化学笔记")
	require.NoError(t, err)

	results, err := client.SearchConversations(ctx, "物理")
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []string{results[0].ID, results[1].ID}
	assert.Contains(t, ids, byTitle.ID)
	assert.Contains(t, ids, byMessage.ID)

	results, err = client.SearchConversations(ctx, "没有的关键词")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChatReturnsReply(t *testing.T) {
	server := newStubServer(t, "secret")
	client := backend.NewClient(server.URL, backend.StaticToken("secret"), time.Second)

	reply, err := client.ChatCompletion(context.Background(), &backend.ChatRequest{
		Message:        "什么是导数",
		ConversationID: "c1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	_, err = client.ChatCompletion(context.Background(), &backend.ChatRequest{ConversationID: "c1"})
	assert.Error(t, err, "empty message must be rejected")
}

func TestDocumentsAndAnalytics(t *testing.T) {
	server := newStubServer(t, "secret")
	client := backend.NewClient(server.URL, backend.StaticToken("secret"), time.Second)
	ctx := context.Background()

	docs, err := client.ListDocuments(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, docs)

	require.NoError(t, client.DeleteDocument(ctx, docs[0].ID))
	docs, err = client.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	summary, err := client.AnalyticsSummary(ctx)
	require.NoError(t, err)
	assert.Greater(t, summary.StudyMinutes, 0)
}

// TestStoreAgainstStub drives the ConversationStore end to end through the
// real HTTP client against the stub backend.
func TestStoreAgainstStub(t *testing.T) {
	server := newStubServer(t, "secret")
	client := backend.NewClient(server.URL, backend.StaticToken("secret"), time.Second)
	s := store.New(client, zap.NewNop())
	ctx := context.Background()

	id := s.Create(ctx, "期末复习")
	require.NotEmpty(t, id)
	assert.Equal(t, id, s.CurrentID())

	s.Load(ctx)
	conversations := s.Conversations()
	require.Len(t, conversations, 1)
	assert.Equal(t, "期末复习", conversations[0].Title)

	require.True(t, s.ToggleStar(ctx, id))
	conv, ok := s.Get(id)
	require.True(t, ok)
	assert.True(t, conv.Starred)

	require.True(t, s.Delete(ctx, id))
	assert.Empty(t, s.Conversations())
	assert.Empty(t, s.CurrentID())
}
