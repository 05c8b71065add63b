package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"todo-agent-backend/internal/tasks"
)

// ToolDefs returns the tool catalogue advertised to the model.
func ToolDefs() []ToolDef {
	return []ToolDef{
		{
			Name:        "list_tasks",
			Description: "List tasks owned by the authenticated user with optional filters",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"filters": {
						"type": "object",
						"description": "Optional filters for tasks",
						"properties": {
							"completed": {"type": "boolean", "description": "Filter by completion status"},
							"deleted": {"type": "boolean", "description": "Filter by deletion status"},
							"priority": {"type": "string", "enum": ["HIGH", "MEDIUM", "LOW"], "description": "Filter by priority"},
							"search": {"type": "string", "description": "Search keyword to match in task title or description (case-insensitive). Use this for keyword searches like 'search sun' or 'find meeting'."},
							"tag": {"type": "string", "description": "Filter by exact tag/label. ONLY use when user explicitly says 'tag' or 'label'."},
							"due_before": {"type": "string", "format": "date", "description": "Filter tasks due before this date (YYYY-MM-DD format)"},
							"due_after": {"type": "string", "format": "date", "description": "Filter tasks due after this date (YYYY-MM-DD format)"},
							"due_today": {"type": "boolean", "description": "Filter tasks due today"},
							"due_this_week": {"type": "boolean", "description": "Filter tasks due within the current week (Monday to Sunday)"},
							"overdue": {"type": "boolean", "description": "Filter tasks that are past their due date and not completed"}
						}
					}
				}
			}`),
		},
		{
			Name:        "get_task",
			Description: "Fetch one task by ID",
			Parameters: json.RawMessage(`{
				"type": "object",
				"required": ["task_id"],
				"properties": {
					"task_id": {"type": "string", "format": "uuid", "description": "UUID of the task to fetch"}
				}
			}`),
		},
		{
			Name:        "add_task",
			Description: "Create a new task",
			Parameters: json.RawMessage(`{
				"type": "object",
				"required": ["title"],
				"properties": {
					"title": {"type": "string", "description": "Task title (1-256 characters)"},
					"description": {"type": "string", "description": "Optional task description"},
					"priority": {"type": "string", "enum": ["HIGH", "MEDIUM", "LOW"], "description": "Task priority", "default": "MEDIUM"},
					"tags": {"type": "array", "items": {"type": "string"}, "description": "Optional list of tags/labels for the task (e.g., ['work', 'urgent'])"},
					"due_date": {"type": "string", "format": "date", "description": "Optional due date in YYYY-MM-DD format (e.g., '2024-03-15')"},
					"recurrence": {"type": "string", "enum": ["NONE", "DAILY", "WEEKLY", "MONTHLY"], "description": "Optional recurrence interval", "default": "NONE"}
				}
			}`),
		},
		{
			Name:        "update_task",
			Description: "Update fields on an existing task",
			Parameters: json.RawMessage(`{
				"type": "object",
				"required": ["task_id"],
				"properties": {
					"task_id": {"type": "string", "format": "uuid", "description": "UUID of the task to update"},
					"title": {"type": "string", "description": "New title (1-256 characters)"},
					"description": {"type": "string", "description": "New description"},
					"priority": {"type": "string", "enum": ["HIGH", "MEDIUM", "LOW"], "description": "New priority"},
					"completed": {"type": "boolean", "description": "New completion status"},
					"tags": {"type": "array", "items": {"type": "string"}, "description": "Replacement tag list"},
					"due_date": {"type": "string", "format": "date", "description": "New due date in YYYY-MM-DD format, empty string to clear"}
				}
			}`),
		},
		{
			Name:        "delete_task",
			Description: "Soft-delete a task, optionally recording a reason",
			Parameters: json.RawMessage(`{
				"type": "object",
				"required": ["task_id"],
				"properties": {
					"task_id": {"type": "string", "format": "uuid", "description": "UUID of the task to delete"},
					"reason": {"type": "string", "description": "Optional reason for the deletion"}
				}
			}`),
		},
		{
			Name:        "restore_task",
			Description: "Restore a soft-deleted task",
			Parameters: json.RawMessage(`{
				"type": "object",
				"required": ["task_id"],
				"properties": {
					"task_id": {"type": "string", "format": "uuid", "description": "UUID of the task to restore"}
				}
			}`),
		},
		{
			Name:        "complete_task",
			Description: "Toggle a task's completion status",
			Parameters: json.RawMessage(`{
				"type": "object",
				"required": ["task_id"],
				"properties": {
					"task_id": {"type": "string", "format": "uuid", "description": "UUID of the task to toggle"}
				}
			}`),
		},
	}
}

// Executor runs model-requested tools against one user's tasks. It
// never returns a Go error to the loop: every failure becomes an
// {"error": ...} payload so the model can read it and recover.
type Executor struct {
	svc   *tasks.Service
	owner uuid.UUID
}

func NewExecutor(svc *tasks.Service, owner uuid.UUID) *Executor {
	return &Executor{svc: svc, owner: owner}
}

func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) map[string]any {
	log.Printf("Executing tool: %s", name)

	switch name {
	case "add_task":
		return e.addTask(ctx, args)
	case "list_tasks":
		return e.listTasks(ctx, args)
	case "get_task":
		return e.getTask(ctx, args)
	case "update_task":
		return e.updateTask(ctx, args)
	case "delete_task":
		return e.deleteTask(ctx, args)
	case "restore_task":
		return e.restoreTask(ctx, args)
	case "complete_task":
		return e.completeTask(ctx, args)
	default:
		return errPayload("Unknown tool: %s", name)
	}
}

func errPayload(format string, args ...any) map[string]any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}

func taskPayload(t *tasks.Task) map[string]any {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	var due any
	if t.DueDate != nil {
		due = t.DueDate.Format(time.RFC3339)
	}
	var desc any
	if t.Description != nil {
		desc = *t.Description
	}
	return map[string]any{
		"id":          t.ID.String(),
		"title":       t.Title,
		"description": desc,
		"completed":   t.Completed,
		"priority":    string(t.Priority),
		"tags":        tags,
		"due_date":    due,
	}
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func taskIDArg(args map[string]any) (uuid.UUID, map[string]any) {
	raw := argString(args, "task_id")
	if raw == "" {
		return uuid.Nil, errPayload("task_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errPayload("Invalid task_id format")
	}
	return id, nil
}

// parseTags accepts the formats models actually emit: a JSON array, a
// bracketed string like "['food', 'weekly']", or a plain
// comma-separated string.
func parseTags(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
			var arr []string
			if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &arr); err == nil {
				return arr
			}
			s = s[1 : len(s)-1]
		}
		var out []string
		for _, part := range strings.Split(s, ",") {
			part = strings.Trim(strings.TrimSpace(part), `'"`)
			if part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}

func (e *Executor) addTask(ctx context.Context, args map[string]any) map[string]any {
	title := strings.TrimSpace(argString(args, "title"))
	if title == "" || utf8.RuneCountInString(title) > tasks.MaxTitleLen {
		return errPayload("Title must be between 1 and %d characters", tasks.MaxTitleLen)
	}

	params := tasks.CreateParams{
		Title:    title,
		Priority: tasks.NormalizePriority(argString(args, "priority")),
		Tags:     parseTags(args["tags"]),
	}
	if desc := argString(args, "description"); desc != "" {
		params.Description = &desc
	}
	if rec := argString(args, "recurrence"); rec != "" {
		params.Recurrence = tasks.NormalizeRecurrence(rec)
	}
	// Unparseable due dates are dropped, not rejected: the task still
	// gets created with whatever the model got right.
	if raw := argString(args, "due_date"); raw != "" {
		if due, err := tasks.ParseDueDate(raw); err == nil {
			params.DueDate = &due
		}
	}

	task, err := e.svc.Create(ctx, e.owner, params)
	if err != nil {
		return errPayload("%s", err.Error())
	}

	payload := taskPayload(task)
	payload["created_at"] = task.CreatedAt.Format(time.RFC3339)
	payload["message"] = fmt.Sprintf("Task '%s' created successfully", task.Title)
	return payload
}

func (e *Executor) listTasks(ctx context.Context, args map[string]any) map[string]any {
	filters, _ := args["filters"].(map[string]any)

	var f tasks.Filter
	if v, ok := filters["completed"].(bool); ok {
		f.Completed = &v
	}
	if v, ok := filters["deleted"].(bool); ok {
		f.Deleted = &v
	}
	if v, ok := filters["priority"].(string); ok && v != "" {
		p := tasks.Priority(strings.ToUpper(v))
		if p.IsValid() {
			f.Priority = &p
		}
	}
	if v, ok := filters["search"].(string); ok {
		f.Search = v
	}
	if v, ok := filters["tag"].(string); ok {
		f.Tag = v
	}
	if v, ok := filters["due_today"].(bool); ok && v {
		f.DueToday = true
	}
	if v, ok := filters["due_this_week"].(bool); ok && v {
		f.DueThisWeek = true
	}
	if v, ok := filters["due_before"].(string); ok && v != "" {
		if ts, err := tasks.ParseDueDate(v); err == nil {
			f.DueBefore = &ts
		}
	}
	if v, ok := filters["due_after"].(string); ok && v != "" {
		if ts, err := tasks.ParseDueDate(v); err == nil {
			f.DueAfter = &ts
		}
	}
	if v, ok := filters["overdue"].(bool); ok && v {
		f.Overdue = true
	}

	list, _, err := e.svc.List(ctx, e.owner, f, 0, 0)
	if err != nil {
		return errPayload("%s", err.Error())
	}

	out := make([]map[string]any, 0, len(list))
	for _, t := range list {
		out = append(out, taskPayload(t))
	}
	return map[string]any{"tasks": out, "count": len(out)}
}

func (e *Executor) getTask(ctx context.Context, args map[string]any) map[string]any {
	id, errResp := taskIDArg(args)
	if errResp != nil {
		return errResp
	}
	task, err := e.svc.Get(ctx, e.owner, id)
	if err != nil {
		return errPayload("Task with ID %s not found", id)
	}
	return taskPayload(task)
}

func (e *Executor) updateTask(ctx context.Context, args map[string]any) map[string]any {
	id, errResp := taskIDArg(args)
	if errResp != nil {
		return errResp
	}

	var params tasks.UpdateParams
	if _, present := args["title"]; present {
		title := strings.TrimSpace(argString(args, "title"))
		if title == "" || utf8.RuneCountInString(title) > tasks.MaxTitleLen {
			return errPayload("Title must be between 1 and %d characters", tasks.MaxTitleLen)
		}
		params.Title = &title
	}
	if raw, present := args["description"]; present {
		params.DescriptionSet = true
		if s, ok := raw.(string); ok {
			params.Description = &s
		}
	}
	if _, present := args["priority"]; present {
		p := tasks.Priority(strings.ToUpper(argString(args, "priority")))
		if p.IsValid() {
			params.Priority = &p
		}
	}
	if v, ok := args["completed"].(bool); ok {
		params.Completed = &v
	}
	if raw, present := args["tags"]; present {
		params.TagsSet = true
		params.Tags = parseTags(raw)
	}
	if raw, present := args["due_date"]; present {
		s, _ := raw.(string)
		if s == "" {
			params.DueDateSet = true
		} else if due, err := tasks.ParseDueDate(s); err == nil {
			params.DueDateSet = true
			params.DueDate = &due
		}
		// Unparseable due dates leave the field untouched.
	}
	if _, present := args["recurrence"]; present {
		r := tasks.Recurrence(strings.ToUpper(argString(args, "recurrence")))
		if r.IsValid() {
			params.Recurrence = &r
		}
	}

	task, err := e.svc.Update(ctx, e.owner, id, params)
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			return errPayload("Task with ID %s not found", id)
		}
		return errPayload("%s", err.Error())
	}

	payload := taskPayload(task)
	payload["message"] = fmt.Sprintf("Task '%s' updated successfully", task.Title)
	return payload
}

func (e *Executor) deleteTask(ctx context.Context, args map[string]any) map[string]any {
	id, errResp := taskIDArg(args)
	if errResp != nil {
		return errResp
	}

	task, err := e.svc.Delete(ctx, e.owner, id, argString(args, "reason"))
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			return errPayload("Task with ID %s not found", id)
		}
		if tasks.IsConflict(err) {
			return errPayload("Task is already deleted")
		}
		return errPayload("%s", err.Error())
	}

	return map[string]any{
		"id":         task.ID.String(),
		"title":      task.Title,
		"deleted_at": task.DeletedAt.Format(time.RFC3339),
		"message":    fmt.Sprintf("Task '%s' deleted successfully", task.Title),
	}
}

func (e *Executor) restoreTask(ctx context.Context, args map[string]any) map[string]any {
	id, errResp := taskIDArg(args)
	if errResp != nil {
		return errResp
	}

	task, err := e.svc.Restore(ctx, e.owner, id)
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			return errPayload("Task with ID %s not found", id)
		}
		if tasks.IsConflict(err) {
			return errPayload("Task is not deleted")
		}
		return errPayload("%s", err.Error())
	}

	return map[string]any{
		"id":      task.ID.String(),
		"title":   task.Title,
		"message": fmt.Sprintf("Task '%s' restored successfully", task.Title),
	}
}

func (e *Executor) completeTask(ctx context.Context, args map[string]any) map[string]any {
	id, errResp := taskIDArg(args)
	if errResp != nil {
		return errResp
	}

	task, _, err := e.svc.ToggleComplete(ctx, e.owner, id)
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) || tasks.IsConflict(err) {
			return errPayload("Task with ID %s not found or is deleted", id)
		}
		return errPayload("%s", err.Error())
	}

	state := "incomplete"
	if task.Completed {
		state = "completed"
	}
	return map[string]any{
		"id":        task.ID.String(),
		"title":     task.Title,
		"completed": task.Completed,
		"message":   fmt.Sprintf("Task '%s' marked as %s", task.Title, state),
	}
}
