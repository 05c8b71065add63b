package tasks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps tasks in process memory, in insertion order. It
// backs dev mode (no DB_HOST configured) and the package tests. Not a
// durable store; everything is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks []*Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(ctx context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, cloneTask(t))
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, owner, id uuid.UUID) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id && t.OwnerID == owner {
			return cloneTask(t), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Query(ctx context.Context, owner uuid.UUID, f Filter, now time.Time) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Task, 0)
	for _, t := range s.tasks {
		if t.OwnerID != owner {
			continue
		}
		if matchesFilter(t, f, now) {
			out = append(out, cloneTask(t))
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, in *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == in.ID && t.OwnerID == in.OwnerID {
			s.tasks[i] = cloneTask(in)
			return nil
		}
	}
	return ErrNotFound
}

func matchesFilter(t *Task, f Filter, now time.Time) bool {
	wantDeleted := f.Deleted != nil && *f.Deleted
	if t.IsDeleted() != wantDeleted {
		return false
	}
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		desc := ""
		if t.Description != nil {
			desc = *t.Description
		}
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(desc), needle) {
			return false
		}
	}
	if f.Tag != "" {
		found := false
		for _, tag := range t.Tags {
			if tag == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DueToday {
		start, end := todayBounds(now)
		if !dueWithin(t, start, end) {
			return false
		}
	}
	if f.DueThisWeek {
		start, end := weekBounds(now)
		if !dueWithin(t, start, end) {
			return false
		}
	}
	if f.DueBefore != nil && (t.DueDate == nil || !t.DueDate.Before(*f.DueBefore)) {
		return false
	}
	if f.DueAfter != nil && (t.DueDate == nil || !t.DueDate.After(*f.DueAfter)) {
		return false
	}
	if f.Overdue && !t.IsOverdue(now) {
		return false
	}
	return true
}

func dueWithin(t *Task, start, end time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return !t.DueDate.Before(start) && !t.DueDate.After(end)
}

func cloneTask(t *Task) *Task {
	c := *t
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	c.Description = clonePtr(t.Description)
	c.DueDate = clonePtr(t.DueDate)
	c.ParentID = clonePtr(t.ParentID)
	c.DeletedAt = clonePtr(t.DeletedAt)
	c.DeletionReason = clonePtr(t.DeletionReason)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
