package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agencyops/internal/access"
	"agencyops/internal/depgraph"
	"agencyops/internal/domain"
	"agencyops/internal/events"
	"agencyops/internal/repo"
	"agencyops/internal/validate"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title       string            `json:"title" validate:"notblank,max=200"`
	Description string            `json:"description,omitempty" validate:"max=5000"`
	Department  domain.Department `json:"department" validate:"department"`
	Status      domain.TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=todo in-progress review completed"`
	Priority    domain.Priority   `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time        `json:"due_date,omitempty"`
	AssigneeID  string            `json:"assignee_id,omitempty"`
	ProjectID   string            `json:"project_id,omitempty"`
}

func (e Engine) CreateTask(ctx context.Context, id *domain.Identity, opts TaskCreateOptions) (domain.Task, error) {
	if id == nil {
		return domain.Task{}, ForbiddenError{Action: "create tasks"}
	}
	// An unknown department is a validation issue, not a permission one.
	if opts.Department.Valid() && !access.CanCreateTask(id, opts.Department) {
		return domain.Task{}, ForbiddenError{Action: "create tasks in " + string(opts.Department)}
	}
	verr := validate.Struct("task", opts)
	if verr == nil {
		verr = &domain.ValidationError{}
	}
	if err := e.checkTaskProject(ctx, id, verr, opts.ProjectID); err != nil {
		return domain.Task{}, err
	}
	if err := e.checkTaskAssignee(ctx, verr, opts.Department, opts.AssigneeID); err != nil {
		return domain.Task{}, err
	}
	if err := verr.OrNil(); err != nil {
		return domain.Task{}, err
	}
	if opts.Status == "" {
		opts.Status = domain.TaskTodo
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	now := e.now()
	t := domain.Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(opts.Title),
		Description: opts.Description,
		Department:  opts.Department,
		Status:      opts.Status,
		Priority:    opts.Priority,
		DueDate:     opts.DueDate,
		AssigneeID:  optionalString(opts.AssigneeID),
		ProjectID:   optionalString(opts.ProjectID),
		CreatedBy:   id.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return e.appendEvent(ctx, tx, events.TaskCreated, "task", t.ID, id, events.Payload{
			"title": t.Title, "department": t.Department, "project_id": opts.ProjectID,
		})
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// checkTaskProject enforces the project policy. A project the actor cannot
// see is reported exactly like one that does not exist.
func (e Engine) checkTaskProject(ctx context.Context, id *domain.Identity, verr *domain.ValidationError, projectID string) error {
	if projectID == "" {
		if e.cfg().Tasks.ProjectRequired {
			verr.Add("task", "", "project_id", "is required")
		}
		return nil
	}
	if _, err := e.GetProject(ctx, id, projectID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		verr.Add("task", "", "project_id", "unknown project "+projectID)
	}
	return nil
}

// checkTaskAssignee requires the assignee to be eligible for the task's
// department.
func (e Engine) checkTaskAssignee(ctx context.Context, verr *domain.ValidationError, department domain.Department, assigneeID string) error {
	if assigneeID == "" {
		return nil
	}
	stored, err := e.Repo.GetIdentity(ctx, assigneeID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		verr.Add("task", "", "assignee_id", "unknown identity "+assigneeID)
		return nil
	}
	if len(access.EligibleAssignees([]domain.Identity{stored.Identity}, department)) == 0 {
		verr.Add("task", "", "assignee_id", "not eligible for department "+string(department))
	}
	return nil
}

// TaskUpdateOptions encapsulates allowed updates. An empty AssigneeID
// unassigns the task.
type TaskUpdateOptions struct {
	Title       *string            `json:"title,omitempty" validate:"omitempty,notblank,max=200"`
	Description *string            `json:"description,omitempty" validate:"omitempty,max=5000"`
	Status      *domain.TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=todo in-progress review completed"`
	Priority    *domain.Priority   `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	AssigneeID  *string            `json:"assignee_id,omitempty"`
	ProjectID   *string            `json:"project_id,omitempty"`
}

func (e Engine) UpdateTask(ctx context.Context, id *domain.Identity, taskID string, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.GetTask(ctx, id, taskID)
	if err != nil {
		return t, err
	}
	if !access.CanEditTask(id, t) {
		return t, ForbiddenError{Action: "edit this task"}
	}
	verr := validate.Struct("task", opts)
	if verr == nil {
		verr = &domain.ValidationError{}
	}
	if opts.ProjectID != nil {
		if err := e.checkTaskProject(ctx, id, verr, *opts.ProjectID); err != nil {
			return t, err
		}
	}
	if opts.AssigneeID != nil {
		if err := e.checkTaskAssignee(ctx, verr, t.Department, *opts.AssigneeID); err != nil {
			return t, err
		}
	}
	if err := verr.OrNil(); err != nil {
		return t, err
	}
	from := t.Status
	if opts.Title != nil {
		t.Title = strings.TrimSpace(*opts.Title)
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Status != nil {
		t.Status = *opts.Status
	}
	if opts.Priority != nil {
		t.Priority = *opts.Priority
	}
	if opts.DueDate != nil {
		t.DueDate = opts.DueDate
	}
	if opts.AssigneeID != nil {
		t.AssigneeID = optionalString(*opts.AssigneeID)
	}
	if opts.ProjectID != nil {
		t.ProjectID = optionalString(*opts.ProjectID)
	}
	t.UpdatedAt = e.now()
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.TaskUpdated, "task", t.ID, id, events.Payload{
			"from_status": from, "to_status": t.Status,
		})
	})
	return t, err
}

func (e Engine) DeleteTask(ctx context.Context, id *domain.Identity, taskID string) error {
	t, err := e.GetTask(ctx, id, taskID)
	if err != nil {
		return err
	}
	if !access.CanDeleteTask(id, t) {
		return ForbiddenError{Action: "delete this task"}
	}
	return e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteTask(ctx, tx, t.ID); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.TaskDeleted, "task", t.ID, id, events.Payload{"title": t.Title})
	})
}

// GetTask returns a task the identity can see; others are not found.
func (e Engine) GetTask(ctx context.Context, id *domain.Identity, taskID string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return t, err
	}
	if len(access.VisibleTasks(id, []domain.Task{t})) == 0 {
		return domain.Task{}, repo.ErrNotFound
	}
	return t, nil
}

func (e Engine) ListTasks(ctx context.Context, id *domain.Identity, f repo.TaskFilters) ([]domain.Task, error) {
	if id == nil {
		return []domain.Task{}, nil
	}
	all, err := e.Repo.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}
	return access.VisibleTasks(id, all), nil
}

// AddDependency records that dependentID cannot finish before parentID. The
// caller must be able to edit the dependent task. Edges closing a cycle are
// rejected with a *depgraph.CycleError.
func (e Engine) AddDependency(ctx context.Context, id *domain.Identity, parentID, dependentID string) (domain.TaskDependency, error) {
	edge := domain.TaskDependency{ParentTaskID: parentID, DependentTaskID: dependentID}
	dependent, err := e.GetTask(ctx, id, dependentID)
	if err != nil {
		return edge, err
	}
	if _, err := e.GetTask(ctx, id, parentID); err != nil {
		return edge, err
	}
	if !access.CanEditTask(id, dependent) {
		return edge, ForbiddenError{Action: "edit this task"}
	}
	if parentID == dependentID {
		return edge, &depgraph.CycleError{Path: []string{parentID, dependentID}}
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if e.cfg().Tasks.RejectDependencyCycles {
			existing, err := e.Repo.ListDependencies(ctx, tx, "")
			if err != nil {
				return err
			}
			if err := depgraph.CheckEdge(existing, edge); err != nil {
				return err
			}
		}
		if err := e.Repo.AddDependency(ctx, tx, edge); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.DependencyAdded, "task", dependentID, id, events.Payload{"parent_task_id": parentID})
	})
	return edge, err
}

func (e Engine) RemoveDependency(ctx context.Context, id *domain.Identity, parentID, dependentID string) error {
	dependent, err := e.GetTask(ctx, id, dependentID)
	if err != nil {
		return err
	}
	if !access.CanEditTask(id, dependent) {
		return ForbiddenError{Action: "edit this task"}
	}
	edge := domain.TaskDependency{ParentTaskID: parentID, DependentTaskID: dependentID}
	return e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.RemoveDependency(ctx, tx, edge); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.DependencyRemoved, "task", dependentID, id, events.Payload{"parent_task_id": parentID})
	})
}

// ListDependencies returns edges touching taskID, or all edges between
// visible tasks when taskID is empty.
func (e Engine) ListDependencies(ctx context.Context, id *domain.Identity, taskID string) ([]domain.TaskDependency, error) {
	if taskID != "" {
		if _, err := e.GetTask(ctx, id, taskID); err != nil {
			return nil, err
		}
		return e.Repo.ListDependencies(ctx, nil, taskID)
	}
	tasks, err := e.ListTasks(ctx, id, repo.TaskFilters{})
	if err != nil {
		return nil, err
	}
	visible := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		visible[t.ID] = true
	}
	all, err := e.Repo.ListDependencies(ctx, nil, "")
	if err != nil {
		return nil, err
	}
	out := make([]domain.TaskDependency, 0, len(all))
	for _, d := range all {
		if visible[d.ParentTaskID] && visible[d.DependentTaskID] {
			out = append(out, d)
		}
	}
	return out, nil
}
