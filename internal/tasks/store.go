package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows a Query. Zero value means "all non-deleted tasks".
// Deleted defaults to excluding soft-deleted tasks; set it to filter
// explicitly either way. Overdue always excludes deleted tasks.
type Filter struct {
	Completed   *bool
	Priority    *Priority
	Deleted     *bool
	Search      string
	Tag         string
	DueToday    bool
	DueThisWeek bool
	DueBefore   *time.Time
	DueAfter    *time.Time
	Overdue     bool
}

// Store is the persistence boundary for tasks. Every call is scoped by
// owner; implementations must never return another owner's task. Query
// results come back in creation order.
type Store interface {
	Insert(ctx context.Context, t *Task) error
	Get(ctx context.Context, owner, id uuid.UUID) (*Task, error)
	Query(ctx context.Context, owner uuid.UUID, f Filter, now time.Time) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
}

// todayBounds returns the UTC day window [start, end] around now.
func todayBounds(now time.Time) (time.Time, time.Time) {
	y, m, d := now.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
}

// weekBounds returns the UTC week window around now, Monday 00:00:00
// through Sunday 23:59:59.
func weekBounds(now time.Time) (time.Time, time.Time) {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	weekday := int(today.Weekday()+6) % 7 // Monday=0
	start := today.AddDate(0, 0, -weekday)
	return start, start.AddDate(0, 0, 6).Add(23*time.Hour + 59*time.Minute + 59*time.Second)
}
