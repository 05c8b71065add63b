package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) // a Sunday

func newTestService() *Service {
	svc := NewService(NewMemoryStore())
	svc.now = func() time.Time { return testNow }
	return svc
}

func strPtr(s string) *string { return &s }

func TestCreateValidation(t *testing.T) {
	svc := newTestService()
	owner := uuid.New()
	ctx := context.Background()

	long := make([]byte, MaxTitleLen+1)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name    string
		params  CreateParams
		wantErr bool
	}{
		{"valid", CreateParams{Title: "Buy groceries"}, false},
		{"empty title", CreateParams{Title: ""}, true},
		{"whitespace title", CreateParams{Title: "   "}, true},
		{"title too long", CreateParams{Title: string(long)}, true},
		{"title at limit", CreateParams{Title: string(long[:MaxTitleLen])}, false},
		// Limits count characters, not bytes.
		{"multibyte title under limit", CreateParams{Title: strings.Repeat("я", 200)}, false},
		{"multibyte title at limit", CreateParams{Title: strings.Repeat("я", MaxTitleLen)}, false},
		{"multibyte title too long", CreateParams{Title: strings.Repeat("я", MaxTitleLen+1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, owner, tt.params)
			if tt.wantErr && !IsValidation(err) {
				t.Errorf("want validation error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateDefaults(t *testing.T) {
	svc := newTestService()
	owner := uuid.New()

	task, err := svc.Create(context.Background(), owner, CreateParams{
		Title:      "  Pay rent  ",
		Priority:   Priority("URGENT"),
		Recurrence: Recurrence("YEARLY"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Title != "Pay rent" {
		t.Errorf("title = %q, want trimmed", task.Title)
	}
	if task.Priority != PriorityMedium {
		t.Errorf("priority = %s, want MEDIUM fallback", task.Priority)
	}
	if task.Recurrence != RecurrenceNone {
		t.Errorf("recurrence = %s, want NONE fallback", task.Recurrence)
	}
	if task.Completed || task.IsDeleted() {
		t.Error("new task must start active and incomplete")
	}
}

func TestUpdateFieldIsolation(t *testing.T) {
	svc := newTestService()
	owner := uuid.New()
	ctx := context.Background()

	due := time.Date(2025, 7, 1, 23, 59, 59, 0, time.UTC)
	task, err := svc.Create(ctx, owner, CreateParams{
		Title:       "Write report",
		Description: strPtr("quarterly numbers"),
		Priority:    PriorityHigh,
		Tags:        []string{"work"},
		DueDate:     &due,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Updating just the title leaves everything else alone.
	updated, err := svc.Update(ctx, owner, task.ID, UpdateParams{Title: strPtr("Write annual report")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Write annual report" {
		t.Errorf("title = %q", updated.Title)
	}
	if updated.Description == nil || *updated.Description != "quarterly numbers" {
		t.Error("description changed by title-only update")
	}
	if updated.Priority != PriorityHigh {
		t.Error("priority changed by title-only update")
	}
	if updated.DueDate == nil || !updated.DueDate.Equal(due) {
		t.Error("due date changed by title-only update")
	}

	// Explicitly clearing the due date.
	updated, err = svc.Update(ctx, owner, task.ID, UpdateParams{DueDateSet: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DueDate != nil {
		t.Error("due date not cleared")
	}
	if updated.Title != "Write annual report" {
		t.Error("title changed by due-date clear")
	}
}

func TestUpdateInvalidEnumIgnored(t *testing.T) {
	svc := newTestService()
	owner := uuid.New()
	ctx := context.Background()

	task, _ := svc.Create(ctx, owner, CreateParams{Title: "Call dentist", Priority: PriorityLow})
	bad := Priority("CRITICAL")
	updated, err := svc.Update(ctx, owner, task.ID, UpdateParams{Priority: &bad})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Priority != PriorityLow {
		t.Errorf("priority = %s, want unchanged LOW", updated.Priority)
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc := newTestService()
	_, err := svc.Update(context.Background(), uuid.New(), uuid.New(), UpdateParams{Title: strPtr("x")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestOwnerIsolation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	task, _ := svc.Create(ctx, alice, CreateParams{Title: "Alice's task"})

	if _, err := svc.Get(ctx, bob, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-owner get: want ErrNotFound, got %v", err)
	}
	if _, err := svc.Update(ctx, bob, task.ID, UpdateParams{Title: strPtr("stolen")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-owner update: want ErrNotFound, got %v", err)
	}
	got, _, err := svc.List(ctx, bob, Filter{}, 0, 0)
	if err != nil || len(got) != 0 {
		t.Errorf("cross-owner list: got %d tasks, err %v", len(got), err)
	}
}

func TestDeleteRestoreLifecycle(t *testing.T) {
	svc := newTestService()
	owner := uuid.New()
	ctx := context.Background()

	task, _ := svc.Create(ctx, owner, CreateParams{Title: "Old chore"})

	deleted, err := svc.Delete(ctx, owner, task.ID, "  no longer needed  ")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted.IsDeleted() {
		t.Fatal("task not marked deleted")
	}
	if deleted.DeletionReason == nil || *deleted.DeletionReason != "no longer needed" {
		t.Errorf("deletion reason = %v, want trimmed reason", deleted.DeletionReason)
	}

	// Double delete conflicts.
	if _, err := svc.Delete(ctx, owner, task.ID, "again"); !IsConflict(err) {
		t.Errorf("double delete: want conflict, got %v", err)
	}
	// So does updating while deleted.
	if _, err := svc.Update(ctx, owner, task.ID, UpdateParams{Title: strPtr("x")}); !IsConflict(err) {
		t.Errorf("update deleted: want conflict, got %v", err)
	}
	if _, _, err := svc.ToggleComplete(ctx, owner, task.ID); !IsConflict(err) {
		t.Errorf("complete deleted: want conflict, got %v", err)
	}

	// Deleted tasks stay fetchable directly but drop out of lists.
	if _, err := svc.Get(ctx, owner, task.ID); err != nil {
		t.Errorf("get deleted: %v", err)
	}
	active, _, _ := svc.List(ctx, owner, Filter{}, 0, 0)
	if len(active) != 0 {
		t.Errorf("deleted task visible in default list")
	}
	del := true
	deletedList, _, _ := svc.List(ctx, owner, Filter{Deleted: &del}, 0, 0)
	if len(deletedList) != 1 {
		t.Errorf("deleted list has %d tasks, want 1", len(deletedList))
	}

	restored, err := svc.Restore(ctx, owner, task.ID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.IsDeleted() || restored.DeletionReason != nil {
		t.Error("restore must clear both deleted_at and deletion_reason")
	}
	if _, err := svc.Restore(ctx, owner, task.ID); !IsConflict(err) {
		t.Errorf("restore active: want conflict, got %v", err)
	}
}

func TestDeleteReasonOptionalAtService(t *testing.T) {
	svc := newTestService()
	owner := uuid.New()
	task, _ := svc.Create(context.Background(), owner, CreateParams{Title: "Scratch"})

	deleted, err := svc.Delete(context.Background(), owner, task.ID, "")
	if err != nil {
		t.Fatalf("delete without reason: %v", err)
	}
	if deleted.DeletionReason != nil {
		t.Error("empty reason must store as null, not empty string")
	}
}

func TestToggleCompleteRecurrence(t *testing.T) {
	svc := newTestService()
	owner := uuid.New()
	ctx := context.Background()

	due := time.Date(2025, 6, 20, 23, 59, 59, 0, time.UTC)
	task, _ := svc.Create(ctx, owner, CreateParams{
		Title:      "Water plants",
		Tags:       []string{"home"},
		DueDate:    &due,
		Recurrence: RecurrenceWeekly,
	})

	completed, wasCompleted, err := svc.ToggleComplete(ctx, owner, task.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if wasCompleted {
		t.Error("previous state should be incomplete")
	}
	if !completed.Completed {
		t.Error("task should now be complete")
	}

	all, total, _ := svc.List(ctx, owner, Filter{}, 0, 0)
	if total != 2 {
		t.Fatalf("want 2 tasks after recurring completion, got %d", total)
	}
	next := all[1]
	if next.ID == task.ID {
		t.Fatal("next occurrence must be a new task")
	}
	wantDue := due.AddDate(0, 0, 7)
	if next.DueDate == nil || !next.DueDate.Equal(wantDue) {
		t.Errorf("next due = %v, want %v", next.DueDate, wantDue)
	}
	if next.ParentID == nil || *next.ParentID != task.ID {
		t.Error("next occurrence must link back to its parent")
	}
	if next.Completed {
		t.Error("next occurrence must start incomplete")
	}
	if next.Recurrence != RecurrenceWeekly {
		t.Error("next occurrence must keep the recurrence")
	}

	// Un-completing must not spawn another occurrence, and neither
	// must re-completing count double overall.
	if _, _, err := svc.ToggleComplete(ctx, owner, task.ID); err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	_, total, _ = svc.List(ctx, owner, Filter{}, 0, 0)
	if total != 2 {
		t.Errorf("un-completing spawned a task: total = %d", total)
	}
}

func TestToggleCompleteNoRecurrenceWithoutDueDate(t *testing.T) {
	svc := newTestService()
	owner := uuid.New()
	ctx := context.Background()

	task, _ := svc.Create(ctx, owner, CreateParams{Title: "Stretch", Recurrence: RecurrenceDaily})
	if _, _, err := svc.ToggleComplete(ctx, owner, task.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	_, total, _ := svc.List(ctx, owner, Filter{}, 0, 0)
	if total != 1 {
		t.Errorf("recurring task without due date spawned an occurrence: total = %d", total)
	}
}

func TestListFilters(t *testing.T) {
	svc := newTestService()
	owner := uuid.New()
	ctx := context.Background()

	mk := func(title string, p CreateParams) *Task {
		p.Title = title
		task, err := svc.Create(ctx, owner, p)
		if err != nil {
			t.Fatalf("create %q: %v", title, err)
		}
		return task
	}

	overdueDue := testNow.AddDate(0, 0, -2)
	todayDue := time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)
	weekDue := time.Date(2025, 6, 12, 23, 59, 59, 0, time.UTC) // Thursday same week
	farDue := testNow.AddDate(0, 1, 0)

	mk("Overdue report", CreateParams{DueDate: &overdueDue, Priority: PriorityHigh})
	mk("Due today", CreateParams{DueDate: &todayDue, Tags: []string{"urgent"}})
	mk("Due this week", CreateParams{DueDate: &weekDue})
	mk("Far future", CreateParams{DueDate: &farDue})
	done := mk("Finished late", CreateParams{DueDate: &overdueDue})
	trashed := mk("Trashed late", CreateParams{DueDate: &overdueDue})

	if _, _, err := svc.ToggleComplete(ctx, owner, done.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Delete(ctx, owner, trashed.ID, "dup"); err != nil {
		t.Fatal(err)
	}

	titles := func(f Filter) []string {
		got, _, err := svc.List(ctx, owner, f, 0, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		out := make([]string, len(got))
		for i, task := range got {
			out[i] = task.Title
		}
		return out
	}

	// Overdue excludes completed and deleted tasks even when their due
	// dates are past. "Due this week" is past now too, so it counts.
	if got := titles(Filter{Overdue: true}); len(got) != 2 ||
		got[0] != "Overdue report" || got[1] != "Due this week" {
		t.Errorf("overdue = %v", got)
	}
	if got := titles(Filter{DueToday: true}); len(got) != 1 || got[0] != "Due today" {
		t.Errorf("due today = %v", got)
	}
	// Week window: Monday Jun 9 through Sunday Jun 15. Completed tasks
	// stay in the due windows; only deleted ones drop out.
	if got := titles(Filter{DueThisWeek: true}); len(got) != 4 {
		t.Errorf("due this week = %v, want 4", got)
	}
	high := PriorityHigh
	if got := titles(Filter{Priority: &high}); len(got) != 1 || got[0] != "Overdue report" {
		t.Errorf("priority high = %v", got)
	}
	if got := titles(Filter{Tag: "urgent"}); len(got) != 1 || got[0] != "Due today" {
		t.Errorf("tag urgent = %v", got)
	}
	if got := titles(Filter{Search: "FUTURE"}); len(got) != 1 || got[0] != "Far future" {
		t.Errorf("search = %v", got)
	}
	fls := false
	if got := titles(Filter{Completed: &fls}); len(got) != 4 {
		t.Errorf("incomplete = %v, want 4", got)
	}
}

func TestListPagination(t *testing.T) {
	svc := newTestService()
	owner := uuid.New()
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three", "four", "five"} {
		if _, err := svc.Create(ctx, owner, CreateParams{Title: title}); err != nil {
			t.Fatal(err)
		}
	}

	page, total, err := svc.List(ctx, owner, Filter{}, 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5 regardless of pagination", total)
	}
	if len(page) != 2 || page[0].Title != "three" || page[1].Title != "four" {
		t.Errorf("page = %v", page)
	}

	page, total, err = svc.List(ctx, owner, Filter{}, 10, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(page) != 0 {
		t.Errorf("past-end page: len=%d total=%d", len(page), total)
	}
}

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2025-07-01", time.Date(2025, 7, 1, 23, 59, 59, 0, time.UTC), false},
		{"2025-07-01T08:30:00Z", time.Date(2025, 7, 1, 8, 30, 0, 0, time.UTC), false},
		{"2025-07-01T08:30:00+02:00", time.Date(2025, 7, 1, 6, 30, 0, 0, time.UTC), false},
		{"July 1st", time.Time{}, true},
		{"2025/07/01", time.Time{}, true},
		{"", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDueDate(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("want error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextDueDate(t *testing.T) {
	due := time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)
	tests := []struct {
		rec  Recurrence
		want time.Time
	}{
		{RecurrenceDaily, due.AddDate(0, 0, 1)},
		{RecurrenceWeekly, due.AddDate(0, 0, 7)},
		{RecurrenceMonthly, due.AddDate(0, 0, 30)},
		{RecurrenceNone, due},
	}
	for _, tt := range tests {
		t.Run(string(tt.rec), func(t *testing.T) {
			if got := tt.rec.NextDueDate(due); !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
