package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore persists tasks in a tasks table, tags as TEXT[].
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const taskColumns = `id, owner_id, title, description, completed, priority, tags, due_date,
	recurrence, parent_id, deleted_at, deletion_reason, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, t *Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID, t.OwnerID, t.Title, t.Description, t.Completed, t.Priority,
		pq.Array(t.Tags), t.DueDate, t.Recurrence, t.ParentID,
		t.DeletedAt, t.DeletionReason, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, owner, id uuid.UUID) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1 AND owner_id = $2`,
		id, owner,
	)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *PostgresStore) Query(ctx context.Context, owner uuid.UUID, f Filter, now time.Time) ([]*Task, error) {
	clauses := []string{"owner_id = $1"}
	args := []any{owner}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case f.Deleted == nil || !*f.Deleted:
		clauses = append(clauses, "deleted_at IS NULL")
	default:
		clauses = append(clauses, "deleted_at IS NOT NULL")
	}

	if f.Completed != nil {
		clauses = append(clauses, "completed = "+arg(*f.Completed))
	}
	if f.Priority != nil {
		clauses = append(clauses, "priority = "+arg(string(*f.Priority)))
	}
	if f.Search != "" {
		p := arg("%" + strings.ToLower(f.Search) + "%")
		clauses = append(clauses, "(LOWER(title) LIKE "+p+" OR LOWER(COALESCE(description, '')) LIKE "+p+")")
	}
	if f.Tag != "" {
		clauses = append(clauses, arg(f.Tag)+" = ANY(tags)")
	}
	if f.DueToday {
		start, end := todayBounds(now)
		clauses = append(clauses, "due_date >= "+arg(start), "due_date <= "+arg(end))
	}
	if f.DueThisWeek {
		start, end := weekBounds(now)
		clauses = append(clauses, "due_date >= "+arg(start), "due_date <= "+arg(end))
	}
	if f.DueBefore != nil {
		clauses = append(clauses, "due_date < "+arg(*f.DueBefore))
	}
	if f.DueAfter != nil {
		clauses = append(clauses, "due_date > "+arg(*f.DueAfter))
	}
	if f.Overdue {
		clauses = append(clauses, "due_date IS NOT NULL", "due_date < "+arg(now),
			"completed = FALSE", "deleted_at IS NULL")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	out := make([]*Task, 0)
	for rows.Next() {
		t, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, t *Task) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, completed = $3, priority = $4, tags = $5,
			due_date = $6, recurrence = $7, parent_id = $8, deleted_at = $9,
			deletion_reason = $10, updated_at = $11
		WHERE id = $12 AND owner_id = $13`,
		t.Title, t.Description, t.Completed, t.Priority, pq.Array(t.Tags),
		t.DueDate, t.Recurrence, t.ParentID, t.DeletedAt, t.DeletionReason,
		t.UpdatedAt, t.ID, t.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var tags pq.StringArray
	if err := s.Scan(
		&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Completed, &t.Priority,
		&tags, &t.DueDate, &t.Recurrence, &t.ParentID,
		&t.DeletedAt, &t.DeletionReason, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Tags = []string(tags)
	return &t, nil
}
