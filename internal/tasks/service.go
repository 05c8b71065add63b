package tasks

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Service applies every task mutation for the system: the REST handlers,
// the chat preprocessor and the agent tool layer all call into it. Each
// operation is scoped to one owner; cross-owner access is impossible by
// construction.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type CreateParams struct {
	Title       string
	Description *string
	Priority    Priority
	Tags        []string
	DueDate     *time.Time
	Recurrence  Recurrence
}

func (s *Service) Create(ctx context.Context, owner uuid.UUID, p CreateParams) (*Task, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" || utf8.RuneCountInString(title) > MaxTitleLen {
		return nil, validationf("title must be between 1 and %d characters", MaxTitleLen)
	}
	if p.Description != nil && utf8.RuneCountInString(*p.Description) > MaxDescriptionLen {
		return nil, validationf("description must be at most %d characters", MaxDescriptionLen)
	}

	priority := p.Priority
	if !priority.IsValid() {
		priority = PriorityMedium
	}
	recurrence := p.Recurrence
	if !recurrence.IsValid() {
		recurrence = RecurrenceNone
	}

	now := s.now()
	task := &Task{
		ID:          uuid.New(),
		OwnerID:     owner,
		Title:       title,
		Description: p.Description,
		Priority:    priority,
		Tags:        p.Tags,
		DueDate:     p.DueDate,
		Recurrence:  recurrence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Insert(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns the matching page of tasks plus the total match count
// before pagination. limit <= 0 disables pagination.
func (s *Service) List(ctx context.Context, owner uuid.UUID, f Filter, limit, offset int) ([]*Task, int, error) {
	all, err := s.store.Query(ctx, owner, f, s.now())
	if err != nil {
		return nil, 0, err
	}
	total := len(all)
	if offset > 0 {
		if offset >= len(all) {
			return []*Task{}, total, nil
		}
		all = all[offset:]
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

// Get returns a task regardless of deletion state; callers that hide
// deleted tasks filter on DeletedAt themselves.
func (s *Service) Get(ctx context.Context, owner, id uuid.UUID) (*Task, error) {
	return s.store.Get(ctx, owner, id)
}

// UpdateParams carries a partial update. Nil pointers leave the field
// untouched; the Set flags distinguish "clear this field" from "not
// supplied" for the nullable fields.
type UpdateParams struct {
	Title          *string
	Description    *string
	DescriptionSet bool
	Priority       *Priority
	Completed      *bool
	Tags           []string
	TagsSet        bool
	DueDate        *time.Time
	DueDateSet     bool
	Recurrence     *Recurrence
}

func (s *Service) Update(ctx context.Context, owner, id uuid.UUID, p UpdateParams) (*Task, error) {
	task, err := s.store.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if task.IsDeleted() {
		return nil, conflictf("task %s is deleted; restore it before updating", id)
	}

	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" || utf8.RuneCountInString(title) > MaxTitleLen {
			return nil, validationf("title must be between 1 and %d characters", MaxTitleLen)
		}
		task.Title = title
	}
	if p.DescriptionSet || p.Description != nil {
		if p.Description != nil && utf8.RuneCountInString(*p.Description) > MaxDescriptionLen {
			return nil, validationf("description must be at most %d characters", MaxDescriptionLen)
		}
		task.Description = p.Description
	}
	if p.Priority != nil && p.Priority.IsValid() {
		task.Priority = *p.Priority
	}
	if p.Completed != nil {
		task.Completed = *p.Completed
	}
	if p.TagsSet || p.Tags != nil {
		task.Tags = p.Tags
	}
	if p.DueDateSet || p.DueDate != nil {
		task.DueDate = p.DueDate
	}
	if p.Recurrence != nil && p.Recurrence.IsValid() {
		task.Recurrence = *p.Recurrence
	}

	task.UpdatedAt = s.now()
	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Delete soft-deletes a task. The reason is optional here; transports
// that require one enforce that before calling in.
func (s *Service) Delete(ctx context.Context, owner, id uuid.UUID, reason string) (*Task, error) {
	task, err := s.store.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if task.IsDeleted() {
		return nil, conflictf("task %s is already deleted", id)
	}

	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > MaxDeletionReasonLen {
		return nil, validationf("deletion reason must be at most %d characters", MaxDeletionReasonLen)
	}

	now := s.now()
	task.DeletedAt = &now
	if reason != "" {
		task.DeletionReason = &reason
	} else {
		task.DeletionReason = nil
	}
	task.UpdatedAt = now
	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) Restore(ctx context.Context, owner, id uuid.UUID) (*Task, error) {
	task, err := s.store.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !task.IsDeleted() {
		return nil, conflictf("task %s is not deleted", id)
	}

	task.DeletedAt = nil
	task.DeletionReason = nil
	task.UpdatedAt = s.now()
	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ToggleComplete flips the completion flag and reports the previous
// state. Completing a recurring task with a due date also creates the
// next occurrence, linked back through ParentID. The side effect fires
// only on the incomplete-to-complete transition.
func (s *Service) ToggleComplete(ctx context.Context, owner, id uuid.UUID) (*Task, bool, error) {
	task, err := s.store.Get(ctx, owner, id)
	if err != nil {
		return nil, false, err
	}
	if task.IsDeleted() {
		return nil, false, conflictf("task %s is deleted", id)
	}

	previous := task.Completed
	task.Completed = !task.Completed
	now := s.now()
	task.UpdatedAt = now
	if err := s.store.Update(ctx, task); err != nil {
		return nil, false, err
	}

	if task.Completed && task.IsRecurring() && task.DueDate != nil {
		nextDue := task.Recurrence.NextDueDate(*task.DueDate)
		next := &Task{
			ID:          uuid.New(),
			OwnerID:     task.OwnerID,
			Title:       task.Title,
			Description: task.Description,
			Priority:    task.Priority,
			Tags:        append([]string(nil), task.Tags...),
			DueDate:     &nextDue,
			Recurrence:  task.Recurrence,
			ParentID:    &task.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.Insert(ctx, next); err != nil {
			return nil, false, err
		}
	}

	return task, previous, nil
}
