package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"todo-agent-backend/internal/agent"
	"todo-agent-backend/internal/auth"
	"todo-agent-backend/internal/tasks"
)

// cannedProvider always answers with the same completion.
type cannedProvider struct {
	reply agent.Completion
}

func (c *cannedProvider) Complete(ctx context.Context, messages []agent.Message, tools []agent.ToolDef) (*agent.Completion, error) {
	reply := c.reply
	return &reply, nil
}

type chatEnv struct {
	handler *Handler
	tasks   *tasks.Service
	store   *MemoryStore
	user    uuid.UUID
}

func newChatEnv(t *testing.T, provider agent.CompletionProvider) *chatEnv {
	t.Helper()
	if provider == nil {
		provider = &cannedProvider{reply: agent.Completion{Content: "Hello!"}}
	}
	store := NewMemoryStore()
	svc := tasks.NewService(tasks.NewMemoryStore())
	return &chatEnv{
		handler: NewHandler(store, svc, provider),
		tasks:   svc,
		store:   store,
		user:    uuid.New(),
	}
}

func (e *chatEnv) post(t *testing.T, body map[string]any) (*httptest.ResponseRecorder, chatResponse) {
	t.Helper()
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", "/api/chat", bytes.NewReader(payload))
	req = req.WithContext(auth.WithUserID(req.Context(), e.user))
	rec := httptest.NewRecorder()
	e.handler.ChatHandler()(rec, req)

	var resp chatResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rec, resp
}

func TestChatValidation(t *testing.T) {
	env := newChatEnv(t, nil)

	rec, _ := env.post(t, map[string]any{"message": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank message: status = %d", rec.Code)
	}

	rec, _ = env.post(t, map[string]any{"message": strings.Repeat("x", MaxMessageLen+1)})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized message: status = %d", rec.Code)
	}
}

func TestChatCreatesConversation(t *testing.T) {
	env := newChatEnv(t, nil)

	rec, resp := env.post(t, map[string]any{"message": "hello there"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !resp.Success || resp.ConversationID == "" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.AgentResponse != "Hello!" {
		t.Errorf("agent_response = %q", resp.AgentResponse)
	}
	// Transcript holds the user message and the reply.
	if len(resp.Messages) != 2 || resp.Messages[0].Role != "user" || resp.Messages[1].Role != "assistant" {
		t.Errorf("messages = %+v", resp.Messages)
	}

	conv, err := env.store.GetConversation(context.Background(), env.user, uuid.MustParse(resp.ConversationID))
	if err != nil {
		t.Fatalf("conversation not stored: %v", err)
	}
	if conv.Title != "hello there" {
		t.Errorf("title = %q", conv.Title)
	}
}

func TestChatReusesConversation(t *testing.T) {
	env := newChatEnv(t, nil)

	_, first := env.post(t, map[string]any{"message": "first message"})
	_, second := env.post(t, map[string]any{"message": "second message", "conversation_id": first.ConversationID})

	if second.ConversationID != first.ConversationID {
		t.Errorf("conversation changed: %s vs %s", second.ConversationID, first.ConversationID)
	}
	if len(second.Messages) != 4 {
		t.Errorf("transcript length = %d, want 4", len(second.Messages))
	}

	// An unknown conversation id silently starts a new thread.
	_, third := env.post(t, map[string]any{"message": "third", "conversation_id": uuid.New().String()})
	if third.ConversationID == first.ConversationID {
		t.Error("unknown id must start a fresh conversation")
	}
}

func TestChatTitleTruncation(t *testing.T) {
	env := newChatEnv(t, nil)

	long := strings.Repeat("a", 80)
	_, resp := env.post(t, map[string]any{"message": long})
	conv, _ := env.store.GetConversation(context.Background(), env.user, uuid.MustParse(resp.ConversationID))
	want := strings.Repeat("a", 50) + "..."
	if conv.Title != want {
		t.Errorf("title = %q, want %q", conv.Title, want)
	}
}

func TestChatDirectUpdateAction(t *testing.T) {
	env := newChatEnv(t, &cannedProvider{reply: agent.Completion{Content: "should not be used"}})
	ctx := context.Background()

	if _, err := env.tasks.Create(ctx, env.user, tasks.CreateParams{Title: "Groceries"}); err != nil {
		t.Fatal(err)
	}

	rec, resp := env.post(t, map[string]any{"message": "add description buy milk to task groceries"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := "Done! I updated task 'Groceries' - set description to 'buy milk'."
	if resp.AgentResponse != want {
		t.Errorf("agent_response = %q, want %q", resp.AgentResponse, want)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ToolName != "update_task" {
		t.Fatalf("tool_calls = %+v", resp.ToolCalls)
	}

	// The mutation actually happened.
	list, _, err := env.tasks.List(ctx, env.user, tasks.Filter{}, 0, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v", err)
	}
	if list[0].Description == nil || *list[0].Description != "buy milk" {
		t.Errorf("description = %v", list[0].Description)
	}
}

func TestChatDirectDeleteAction(t *testing.T) {
	env := newChatEnv(t, nil)
	ctx := context.Background()

	if _, err := env.tasks.Create(ctx, env.user, tasks.CreateParams{Title: "Laundry"}); err != nil {
		t.Fatal(err)
	}

	_, resp := env.post(t, map[string]any{"message": "delete laundry task with reason duplicate"})
	want := "Done! Task 'Laundry' has been deleted. Reason: duplicate"
	if resp.AgentResponse != want {
		t.Errorf("agent_response = %q, want %q", resp.AgentResponse, want)
	}

	active, _, _ := env.tasks.List(ctx, env.user, tasks.Filter{}, 0, 0)
	if len(active) != 0 {
		t.Errorf("task still active after direct delete")
	}
}

func TestChatDirectCreateAction(t *testing.T) {
	env := newChatEnv(t, nil)

	_, resp := env.post(t, map[string]any{"message": "create task buy milk with high priority with tags food, weekly due 2025-03-15"})
	if !strings.HasPrefix(resp.AgentResponse, "Done! Created task 'buy milk' with HIGH priority.") {
		t.Errorf("agent_response = %q", resp.AgentResponse)
	}
	if !strings.Contains(resp.AgentResponse, "Tags: food, weekly.") || !strings.Contains(resp.AgentResponse, "Due: 2025-03-15.") {
		t.Errorf("agent_response = %q", resp.AgentResponse)
	}

	list, _, _ := env.tasks.List(context.Background(), env.user, tasks.Filter{}, 0, 0)
	if len(list) != 1 || list[0].Title != "buy milk" || list[0].Priority != tasks.PriorityHigh {
		t.Fatalf("created task = %+v", list)
	}
}

func TestListConversationsAndMessages(t *testing.T) {
	env := newChatEnv(t, nil)

	_, resp := env.post(t, map[string]any{"message": "hello"})

	req := httptest.NewRequest("GET", "/api/conversations", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), env.user))
	rec := httptest.NewRecorder()
	env.handler.ListConversationsHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listResp struct {
		Conversations []map[string]any `json:"conversations"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &listResp)
	if len(listResp.Conversations) != 1 {
		t.Fatalf("conversations = %+v", listResp.Conversations)
	}

	// Messages endpoint resolves the id through the path.
	req = httptest.NewRequest("GET", "/api/conversations/"+resp.ConversationID+"/messages", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), env.user))
	req.SetPathValue("id", resp.ConversationID)
	rec = httptest.NewRecorder()
	env.handler.ConversationMessagesHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("messages status = %d", rec.Code)
	}
	var msgResp struct {
		Messages []map[string]any `json:"messages"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &msgResp)
	if len(msgResp.Messages) != 2 {
		t.Errorf("messages = %+v", msgResp.Messages)
	}

	// Another user's conversation is invisible.
	req = httptest.NewRequest("GET", "/api/conversations/"+resp.ConversationID+"/messages", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), uuid.New()))
	req.SetPathValue("id", resp.ConversationID)
	rec = httptest.NewRecorder()
	env.handler.ConversationMessagesHandler()(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-user messages status = %d", rec.Code)
	}
}
