package tasks

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"todo-agent-backend/internal/auth"
)

// taskResponse is the wire shape for a task, with the derived flags the
// frontend renders next to each row.
type taskResponse struct {
	*Task
	IsOverdue   bool `json:"is_overdue"`
	IsDueToday  bool `json:"is_due_today"`
	IsRecurring bool `json:"is_recurring"`
}

func toResponse(t *Task, now time.Time) taskResponse {
	return taskResponse{
		Task:        t,
		IsOverdue:   t.IsOverdue(now),
		IsDueToday:  t.IsDueToday(now),
		IsRecurring: t.IsRecurring(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "task not found", http.StatusNotFound)
	case IsConflict(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("[WARN] task handler error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func ownerFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return uid, true
}

func taskIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// ListTasksHandler handles GET /api/tasks.
func ListTasksHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := ownerFromRequest(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		var f Filter

		if v := q.Get("completed"); v != "" {
			b := v == "true"
			f.Completed = &b
		}
		if v := q.Get("priority"); v != "" {
			p := NormalizePriority(v)
			f.Priority = &p
		}
		f.Search = q.Get("search")
		f.Tag = q.Get("tag")
		switch q.Get("due") {
		case "today":
			f.DueToday = true
		case "week":
			f.DueThisWeek = true
		case "overdue":
			f.Overdue = true
		}
		if v := q.Get("due_before"); v != "" {
			ts, err := ParseDueDate(v)
			if err != nil {
				http.Error(w, "invalid due_before date", http.StatusBadRequest)
				return
			}
			f.DueBefore = &ts
		}
		if v := q.Get("due_after"); v != "" {
			ts, err := ParseDueDate(v)
			if err != nil {
				http.Error(w, "invalid due_after date", http.StatusBadRequest)
				return
			}
			f.DueAfter = &ts
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		var (
			tasks []*Task
			total int
			err   error
		)
		if q.Get("include_deleted") == "true" {
			// Active plus deleted: run the active query, then the
			// deleted one, preserving creation order within each.
			active, activeTotal, aerr := svc.List(r.Context(), uid, f, 0, 0)
			if aerr != nil {
				writeTaskError(w, aerr)
				return
			}
			del := true
			f.Deleted = &del
			deleted, deletedTotal, derr := svc.List(r.Context(), uid, f, 0, 0)
			if derr != nil {
				writeTaskError(w, derr)
				return
			}
			tasks = append(active, deleted...)
			total = activeTotal + deletedTotal
			if offset > 0 && offset < len(tasks) {
				tasks = tasks[offset:]
			} else if offset >= len(tasks) {
				tasks = nil
			}
			if limit > 0 && limit < len(tasks) {
				tasks = tasks[:limit]
			}
		} else {
			tasks, total, err = svc.List(r.Context(), uid, f, limit, offset)
			if err != nil {
				writeTaskError(w, err)
				return
			}
		}

		now := time.Now().UTC()
		out := make([]taskResponse, 0, len(tasks))
		overdueCount, dueTodayCount := 0, 0
		for _, t := range tasks {
			resp := toResponse(t, now)
			if resp.IsOverdue {
				overdueCount++
			}
			if resp.IsDueToday {
				dueTodayCount++
			}
			out = append(out, resp)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"tasks":           out,
			"total":           total,
			"overdue_count":   overdueCount,
			"due_today_count": dueTodayCount,
		})
	}
}

// DeletedTasksHandler handles GET /api/tasks/deleted.
func DeletedTasksHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := ownerFromRequest(w, r)
		if !ok {
			return
		}
		del := true
		tasks, total, err := svc.List(r.Context(), uid, Filter{Deleted: &del}, 0, 0)
		if err != nil {
			writeTaskError(w, err)
			return
		}
		now := time.Now().UTC()
		out := make([]taskResponse, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, toResponse(t, now))
		}
		writeJSON(w, http.StatusOK, map[string]any{"tasks": out, "total": total})
	}
}

type taskWriteRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Priority    *string  `json:"priority"`
	Tags        []string `json:"tags"`
	DueDate     *string  `json:"due_date"`
	Recurrence  *string  `json:"recurrence"`
	Completed   *bool    `json:"completed"`
}

// CreateTaskHandler handles POST /api/tasks. Malformed due dates are a
// hard 400 here; only the agent tool path drops them silently.
func CreateTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := ownerFromRequest(w, r)
		if !ok {
			return
		}

		var body taskWriteRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.Title == nil {
			http.Error(w, "title is required", http.StatusBadRequest)
			return
		}

		params := CreateParams{
			Title:       *body.Title,
			Description: body.Description,
			Tags:        body.Tags,
		}
		if body.Priority != nil {
			params.Priority = NormalizePriority(*body.Priority)
		}
		if body.Recurrence != nil {
			params.Recurrence = NormalizeRecurrence(*body.Recurrence)
		}
		if body.DueDate != nil && *body.DueDate != "" {
			due, err := ParseDueDate(*body.DueDate)
			if err != nil {
				http.Error(w, "invalid due_date format", http.StatusBadRequest)
				return
			}
			params.DueDate = &due
		}

		task, err := svc.Create(r.Context(), uid, params)
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(task, time.Now().UTC()))
	}
}

// GetTaskHandler handles GET /api/tasks/{id}.
func GetTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := ownerFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := taskIDFromPath(w, r)
		if !ok {
			return
		}

		task, err := svc.Get(r.Context(), uid, id)
		if err != nil {
			writeTaskError(w, err)
			return
		}
		if task.IsDeleted() && r.URL.Query().Get("include_deleted") != "true" {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(task, time.Now().UTC()))
	}
}

// UpdateTaskHandler handles PUT /api/tasks/{id}. Absent fields stay
// untouched; explicit nulls clear the nullable fields.
func UpdateTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := ownerFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := taskIDFromPath(w, r)
		if !ok {
			return
		}

		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var params UpdateParams
		if v, present := raw["title"]; present {
			var title string
			if err := json.Unmarshal(v, &title); err != nil {
				http.Error(w, "invalid title", http.StatusBadRequest)
				return
			}
			params.Title = &title
		}
		if v, present := raw["description"]; present {
			params.DescriptionSet = true
			if string(v) != "null" {
				var desc string
				if err := json.Unmarshal(v, &desc); err != nil {
					http.Error(w, "invalid description", http.StatusBadRequest)
					return
				}
				params.Description = &desc
			}
		}
		if v, present := raw["priority"]; present {
			var p string
			if err := json.Unmarshal(v, &p); err != nil {
				http.Error(w, "invalid priority", http.StatusBadRequest)
				return
			}
			norm := NormalizePriority(p)
			params.Priority = &norm
		}
		if v, present := raw["completed"]; present {
			var c bool
			if err := json.Unmarshal(v, &c); err != nil {
				http.Error(w, "invalid completed flag", http.StatusBadRequest)
				return
			}
			params.Completed = &c
		}
		if v, present := raw["tags"]; present {
			params.TagsSet = true
			if string(v) != "null" {
				var tags []string
				if err := json.Unmarshal(v, &tags); err != nil {
					http.Error(w, "invalid tags", http.StatusBadRequest)
					return
				}
				params.Tags = tags
			}
		}
		if v, present := raw["due_date"]; present {
			params.DueDateSet = true
			if string(v) != "null" {
				var s string
				if err := json.Unmarshal(v, &s); err != nil {
					http.Error(w, "invalid due_date", http.StatusBadRequest)
					return
				}
				if s != "" {
					due, err := ParseDueDate(s)
					if err != nil {
						http.Error(w, "invalid due_date format", http.StatusBadRequest)
						return
					}
					params.DueDate = &due
				}
			}
		}
		if v, present := raw["recurrence"]; present {
			var rec string
			if err := json.Unmarshal(v, &rec); err != nil {
				http.Error(w, "invalid recurrence", http.StatusBadRequest)
				return
			}
			norm := NormalizeRecurrence(rec)
			params.Recurrence = &norm
		}

		task, err := svc.Update(r.Context(), uid, id, params)
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(task, time.Now().UTC()))
	}
}

// DeleteTaskHandler handles DELETE /api/tasks/{id}. A reason is
// mandatory on the REST surface.
func DeleteTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := ownerFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := taskIDFromPath(w, r)
		if !ok {
			return
		}

		var body struct {
			DeletionReason string `json:"deletion_reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(body.DeletionReason) == "" {
			http.Error(w, "deletion reason is required", http.StatusBadRequest)
			return
		}

		if _, err := svc.Delete(r.Context(), uid, id, body.DeletionReason); err != nil {
			writeTaskError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RestoreTaskHandler handles POST /api/tasks/{id}/restore.
func RestoreTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := ownerFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := taskIDFromPath(w, r)
		if !ok {
			return
		}

		task, err := svc.Restore(r.Context(), uid, id)
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(task, time.Now().UTC()))
	}
}

// CompleteTaskHandler handles PATCH /api/tasks/{id}/complete.
func CompleteTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := ownerFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := taskIDFromPath(w, r)
		if !ok {
			return
		}

		task, _, err := svc.ToggleComplete(r.Context(), uid, id)
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(task, time.Now().UTC()))
	}
}
