package tasks

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxTitleLen          = 256
	MaxDescriptionLen    = 2000
	MaxDeletionReasonLen = 500
)

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// NormalizePriority maps free-form priority strings onto the enum.
// Unrecognized values fall back to MEDIUM rather than erroring: the
// assistant feeds this with whatever the model produced.
func NormalizePriority(s string) Priority {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if p.IsValid() {
		return p
	}
	return PriorityMedium
}

type Recurrence string

const (
	RecurrenceNone    Recurrence = "NONE"
	RecurrenceDaily   Recurrence = "DAILY"
	RecurrenceWeekly  Recurrence = "WEEKLY"
	RecurrenceMonthly Recurrence = "MONTHLY"
)

func (r Recurrence) IsValid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	default:
		return false
	}
}

func NormalizeRecurrence(s string) Recurrence {
	r := Recurrence(strings.ToUpper(strings.TrimSpace(s)))
	if r.IsValid() {
		return r
	}
	return RecurrenceNone
}

// NextDueDate advances a due date by one recurrence step. MONTHLY is a
// fixed 30-day offset, not a calendar month; clients rely on that.
func (r Recurrence) NextDueDate(due time.Time) time.Time {
	switch r {
	case RecurrenceDaily:
		return due.AddDate(0, 0, 1)
	case RecurrenceWeekly:
		return due.AddDate(0, 0, 7)
	case RecurrenceMonthly:
		return due.AddDate(0, 0, 30)
	default:
		return due
	}
}

// Task is the unit of work. Deletion is soft only: DeletedAt marks a
// task inactive and DeletionReason is never set without it.
type Task struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	Title          string     `json:"title"`
	Description    *string    `json:"description"`
	Completed      bool       `json:"completed"`
	Priority       Priority   `json:"priority"`
	Tags           []string   `json:"tags"`
	DueDate        *time.Time `json:"due_date"`
	Recurrence     Recurrence `json:"recurrence"`
	ParentID       *uuid.UUID `json:"parent_id"`
	DeletedAt      *time.Time `json:"deleted_at"`
	DeletionReason *string    `json:"deletion_reason"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (t *Task) IsDeleted() bool {
	return t.DeletedAt != nil
}

func (t *Task) IsRecurring() bool {
	return t.Recurrence != RecurrenceNone
}

func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Completed || t.IsDeleted() {
		return false
	}
	return t.DueDate.Before(now)
}

func (t *Task) IsDueToday(now time.Time) bool {
	if t.DueDate == nil || t.Completed || t.IsDeleted() {
		return false
	}
	y1, m1, d1 := t.DueDate.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// ParseDueDate accepts either a full RFC 3339 timestamp or a bare
// YYYY-MM-DD date. Bare dates mean "any time that day", so they resolve
// to the end of the day in UTC.
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	day, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, time.UTC), nil
}
