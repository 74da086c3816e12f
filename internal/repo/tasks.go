package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agencyops/internal/domain"
)

const taskColumns = `id,title,description,department,status,priority,due_date,assignee_id,project_id,created_by,created_at,updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var (
		t                          domain.Task
		due, assigneeID, projectID sql.NullString
		created, updated           string
	)
	if err := scan(&t.ID, &t.Title, &t.Description, &t.Department, &t.Status, &t.Priority, &due, &assigneeID, &projectID, &t.CreatedBy, &created, &updated); err != nil {
		return t, err
	}
	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return t, err
	}
	if t.DueDate, err = parseNullTime(due); err != nil {
		return t, err
	}
	t.AssigneeID = stringPtr(assigneeID)
	t.ProjectID = stringPtr(projectID)
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Description, t.Department, t.Status, t.Priority, formatTimePtr(t.DueDate),
		nullableStringPtr(t.AssigneeID), nullableStringPtr(t.ProjectID), t.CreatedBy, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	return err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE tasks SET title=?, description=?, department=?, status=?, priority=?, due_date=?, assignee_id=?, project_id=?, updated_at=? WHERE id=?`,
		t.Title, t.Description, t.Department, t.Status, t.Priority, formatTimePtr(t.DueDate),
		nullableStringPtr(t.AssigneeID), nullableStringPtr(t.ProjectID), formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return err
	}
	return notFoundIfNone(res)
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	return notFoundIfNone(res)
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return r.GetTaskTx(ctx, nil, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	t, err := scanTask(r.q(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

type TaskFilters struct {
	Department domain.Department
	Status     domain.TaskStatus
	ProjectID  string
	AssigneeID string
}

// ListTasks returns tasks newest first.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Department != "" {
		clauses = append(clauses, "department=?")
		args = append(args, f.Department)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "assignee_id=?")
		args = append(args, f.AssigneeID)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks`+where(clauses)+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ListDependencies returns every edge, or only those touching taskID when set.
func (r Repo) ListDependencies(ctx context.Context, tx *sql.Tx, taskID string) ([]domain.TaskDependency, error) {
	query := `SELECT parent_task_id, dependent_task_id FROM task_dependencies`
	var args []any
	if taskID != "" {
		query += ` WHERE parent_task_id=? OR dependent_task_id=?`
		args = append(args, taskID, taskID)
	}
	rows, err := r.q(tx).QueryContext(ctx, query+` ORDER BY parent_task_id, dependent_task_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.TaskDependency{}
	for rows.Next() {
		var d domain.TaskDependency
		if err := rows.Scan(&d.ParentTaskID, &d.DependentTaskID); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) AddDependency(ctx context.Context, tx *sql.Tx, d domain.TaskDependency) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO task_dependencies(parent_task_id, dependent_task_id) VALUES (?,?)`, d.ParentTaskID, d.DependentTaskID)
	if isUniqueViolation(err) {
		return fmt.Errorf("dependency %s -> %s: %w", d.ParentTaskID, d.DependentTaskID, ErrConflict)
	}
	return err
}

func (r Repo) RemoveDependency(ctx context.Context, tx *sql.Tx, d domain.TaskDependency) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM task_dependencies WHERE parent_task_id=? AND dependent_task_id=?`, d.ParentTaskID, d.DependentTaskID)
	if err != nil {
		return err
	}
	return notFoundIfNone(res)
}
