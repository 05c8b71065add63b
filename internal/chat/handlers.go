package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"todo-agent-backend/internal/agent"
	"todo-agent-backend/internal/auth"
	"todo-agent-backend/internal/tasks"
)

// Handler serves the conversational surface. Each inbound message runs
// through the deterministic preprocessor first; only messages it does
// not claim reach the model loop.
type Handler struct {
	store    Store
	tasks    *tasks.Service
	provider agent.CompletionProvider
	maxTurns int
	now      func() time.Time
}

func NewHandler(store Store, tasksSvc *tasks.Service, provider agent.CompletionProvider) *Handler {
	return &Handler{
		store:    store,
		tasks:    tasksSvc,
		provider: provider,
		maxTurns: agent.DefaultMaxTurns,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type toolCallInfo struct {
	ToolName string         `json:"tool_name"`
	Input    map[string]any `json:"input"`
	Output   map[string]any `json:"output"`
}

type messageInfo struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type chatResponse struct {
	Success        bool           `json:"success"`
	ConversationID string         `json:"conversation_id"`
	AgentResponse  string         `json:"agent_response"`
	ToolCalls      []toolCallInfo `json:"tool_calls"`
	Messages       []messageInfo  `json:"messages"`
}

// ChatHandler handles POST /api/chat.
func (h *Handler) ChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}
		if len([]rune(req.Message)) > MaxMessageLen {
			http.Error(w, fmt.Sprintf("message must be at most %d characters", MaxMessageLen), http.StatusBadRequest)
			return
		}

		ctx := r.Context()

		conversation, err := h.resolveConversation(ctx, uid, req)
		if err != nil {
			log.Printf("[WARN] chat: resolve conversation: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		// History is captured before the new message lands so the
		// model sees it exactly once, as the user turn.
		history, err := h.store.RecentMessages(ctx, conversation.ID, 20)
		if err != nil {
			log.Printf("[WARN] chat: load history: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if err := h.saveMessage(ctx, conversation.ID, "user", req.Message); err != nil {
			log.Printf("[WARN] chat: save user message: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		exec := agent.NewExecutor(h.tasks, uid)

		var result agent.Result
		if action := agent.NewPreprocessor(h.tasks, uid).Preprocess(ctx, req.Message); action != nil {
			result = h.runDirectAction(ctx, action, exec)
		} else {
			modelHistory := make([]agent.Message, 0, len(history))
			for _, m := range history {
				modelHistory = append(modelHistory, agent.Message{Role: m.Role, Content: m.Content})
			}
			a := agent.NewWithMaxTurns(h.provider, h.maxTurns)
			result = a.ProcessMessage(ctx, req.Message, modelHistory, exec)
		}

		if err := h.saveMessage(ctx, conversation.ID, "assistant", result.Content); err != nil {
			log.Printf("[WARN] chat: save assistant message: %v", err)
		}
		if err := h.store.TouchConversation(ctx, uid, conversation.ID, h.now()); err != nil {
			log.Printf("[WARN] chat: touch conversation: %v", err)
		}

		toolCalls := make([]toolCallInfo, 0, len(result.ToolCalls))
		for _, tc := range result.ToolCalls {
			toolCalls = append(toolCalls, toolCallInfo{
				ToolName: tc.Name,
				Input:    tc.Arguments,
				Output:   tc.Result,
			})
		}

		recent, err := h.store.RecentMessages(ctx, conversation.ID, 10)
		if err != nil {
			log.Printf("[WARN] chat: load recent messages: %v", err)
		}
		messages := make([]messageInfo, 0, len(recent))
		for _, m := range recent {
			messages = append(messages, messageInfo{
				Role:      m.Role,
				Content:   m.Content,
				Timestamp: m.CreatedAt.Format(time.RFC3339),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse{
			Success:        true,
			ConversationID: conversation.ID.String(),
			AgentResponse:  result.Content,
			ToolCalls:      toolCalls,
			Messages:       messages,
		})
	}
}

func (h *Handler) resolveConversation(ctx context.Context, uid uuid.UUID, req chatRequest) (*Conversation, error) {
	if req.ConversationID != "" {
		if id, err := uuid.Parse(req.ConversationID); err == nil {
			c, err := h.store.GetConversation(ctx, uid, id)
			if err == nil {
				return c, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			// Unknown IDs silently start a fresh thread.
		}
	}

	now := h.now()
	c := &Conversation{
		ID:        uuid.New(),
		UserID:    uid,
		Title:     TitleFromMessage(req.Message),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.InsertConversation(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (h *Handler) saveMessage(ctx context.Context, conversation uuid.UUID, role, content string) error {
	return h.store.InsertMessage(ctx, &ChatMessage{
		ID:             uuid.New(),
		ConversationID: conversation,
		Role:           role,
		Content:        content,
		CreatedAt:      h.now(),
	})
}

// runDirectAction executes a preprocessor-detected intent without any
// model round trip and phrases the reply deterministically.
func (h *Handler) runDirectAction(ctx context.Context, action *agent.DirectAction, exec *agent.Executor) agent.Result {
	var (
		toolName string
		args     map[string]any
	)

	switch action.Type {
	case agent.ActionUpdateTask:
		toolName = "update_task"
		args = map[string]any{
			"task_id":           action.Update.TaskID.String(),
			action.Update.Field: action.Update.Value,
		}
	case agent.ActionDeleteTask:
		toolName = "delete_task"
		args = map[string]any{
			"task_id": action.Delete.TaskID.String(),
			"reason":  action.Delete.Reason,
		}
	case agent.ActionAddTask:
		toolName = "add_task"
		args = map[string]any{
			"title":    action.Add.Title,
			"priority": string(action.Add.Priority),
		}
		if len(action.Add.Tags) > 0 {
			args["tags"] = action.Add.Tags
		}
		if action.Add.DueDate != "" {
			args["due_date"] = action.Add.DueDate
		}
	default:
		return agent.Result{Content: "Sorry, I didn't understand that request."}
	}

	out := exec.Execute(ctx, toolName, args)

	var content string
	if errMsg, failed := out["error"]; failed {
		switch action.Type {
		case agent.ActionUpdateTask:
			content = fmt.Sprintf("Sorry, I couldn't update the task: %v", errMsg)
		case agent.ActionDeleteTask:
			content = fmt.Sprintf("Sorry, I couldn't delete the task: %v", errMsg)
		default:
			content = fmt.Sprintf("Sorry, I couldn't create the task: %v", errMsg)
		}
	} else {
		switch action.Type {
		case agent.ActionUpdateTask:
			content = fmt.Sprintf("Done! I updated task '%s' - set %s to '%s'.",
				action.Update.TaskTitle, action.Update.Field, action.Update.Value)
		case agent.ActionDeleteTask:
			content = fmt.Sprintf("Done! Task '%s' has been deleted. Reason: %s",
				action.Delete.TaskTitle, action.Delete.Reason)
		default:
			content = fmt.Sprintf("Done! Created task '%s' with %s priority.",
				action.Add.Title, action.Add.Priority)
			if len(action.Add.Tags) > 0 {
				content += fmt.Sprintf(" Tags: %s.", strings.Join(action.Add.Tags, ", "))
			}
			if action.Add.DueDate != "" {
				content += fmt.Sprintf(" Due: %s.", action.Add.DueDate)
			}
		}
	}

	return agent.Result{
		Content: content,
		ToolCalls: []agent.ExecutedCall{{
			Type:      "function",
			Name:      toolName,
			Arguments: args,
			Result:    out,
		}},
	}
}

// ListConversationsHandler handles GET /api/conversations.
func (h *Handler) ListConversationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		list, err := h.store.ListConversations(r.Context(), uid)
		if err != nil {
			log.Printf("[WARN] chat: list conversations: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]map[string]any, 0, len(list))
		for _, c := range list {
			out = append(out, map[string]any{
				"id":         c.ID.String(),
				"title":      c.Title,
				"created_at": c.CreatedAt.Format(time.RFC3339),
				"updated_at": c.UpdatedAt.Format(time.RFC3339),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"conversations": out})
	}
}

// ConversationMessagesHandler handles GET /api/conversations/{id}/messages.
func (h *Handler) ConversationMessagesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid conversation id", http.StatusBadRequest)
			return
		}

		if _, err := h.store.GetConversation(r.Context(), uid, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "conversation not found", http.StatusNotFound)
				return
			}
			log.Printf("[WARN] chat: get conversation: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		messages, err := h.store.RecentMessages(r.Context(), id, 0)
		if err != nil {
			log.Printf("[WARN] chat: load messages: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]map[string]any, 0, len(messages))
		for _, m := range messages {
			out = append(out, map[string]any{
				"id":        m.ID.String(),
				"role":      m.Role,
				"content":   m.Content,
				"timestamp": m.CreatedAt.Format(time.RFC3339),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"conversation_id": id.String(),
			"messages":        out,
		})
	}
}
