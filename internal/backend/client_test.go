package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opencampus/assistant-cli/internal/domain"
)

func TestClientListConversations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai-assistant/conversations" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"conversations":[{"id":"1","title":"A","starred":true},{"id":"2","title":"B"}]}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("tok"), time.Second)
	conversations, err := client.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(conversations) != 2 || conversations[0].ID != "1" || !conversations[0].Starred {
		t.Fatalf("unexpected conversations: %+v", conversations)
	}
}

func TestClientMissingToken(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken(""), time.Second)
	_, err := client.ListConversations(context.Background())
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if called {
		t.Fatalf("request must not be sent without a token")
	}
}

func TestClientCreateConversation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["title"] != "新对话" {
			t.Fatalf("unexpected title: %q", req["title"])
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"id":"conv_1","title":"新对话","created_at":"2026-01-02T03:04:05Z"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("tok"), time.Second)
	conv, err := client.CreateConversation(context.Background(), "新对话")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if conv.ID != "conv_1" || conv.Title != "新对话" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
}

func TestClientServerRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":false,"error":"quota exceeded"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("tok"), time.Second)
	_, err := client.CreateConversation(context.Background(), "x")
	if err == nil {
		t.Fatalf("expected error for success=false response")
	}
}

func TestClientHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"boom"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("tok"), time.Second)
	_, err := client.ListConversations(context.Background())
	if err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestClientToggleStar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai-assistant/conversations/c1/star" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"starred":true}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("tok"), time.Second)
	starred, err := client.ToggleStar(context.Background(), "c1")
	if err != nil {
		t.Fatalf("ToggleStar failed: %v", err)
	}
	if !starred {
		t.Fatalf("expected starred=true")
	}
}

func TestClientSearchConversations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai-assistant/conversations/search" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("keyword"); got != "微积分" {
			t.Fatalf("unexpected keyword: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"conversations":[{"id":"7","title":"微积分复习"}]}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("tok"), time.Second)
	results, err := client.SearchConversations(context.Background(), "微积分")
	if err != nil {
		t.Fatalf("SearchConversations failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "7" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestClientChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai-assistant/chat" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req ChatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ConversationID != "c1" || len(req.Context) != 2 {
			t.Fatalf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"response":"答案是 42"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("tok"), time.Second)
	reply, err := client.ChatCompletion(context.Background(), &ChatRequest{
		Message:        "问题",
		ConversationID: "c1",
		Context: []domain.Message{
			{Role: domain.RoleUser, Content: "a"},
			{Role: domain.RoleAssistant, Content: "b"},
		},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if reply != "答案是 42" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestClientUpdateConversationEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	title := "renamed"
	client := NewClient(server.URL, StaticToken("tok"), time.Second)
	err := client.UpdateConversation(context.Background(), "c1", domain.ConversationUpdate{Title: &title})
	if err != nil {
		t.Fatalf("UpdateConversation failed: %v", err)
	}
}
