package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"agencyops/internal/access"
	"agencyops/internal/domain"
	"agencyops/internal/events"
	"agencyops/internal/repo"
	"agencyops/internal/validate"
)

type ProjectCreateOptions struct {
	Name        string               `json:"name" validate:"notblank,max=200"`
	Description string               `json:"description,omitempty" validate:"max=5000"`
	Department  domain.Department    `json:"department" validate:"department"`
	Status      domain.ProjectStatus `json:"status,omitempty" validate:"omitempty,oneof=planning in-progress review completed on-hold failed canceled"`
	Progress    int                  `json:"progress,omitempty" validate:"min=0,max=100"`
	Deadline    *time.Time           `json:"deadline,omitempty"`
	Assignees   []string             `json:"assignees,omitempty" validate:"dive,notblank"`
	ClientID    string               `json:"client_id,omitempty"`
}

func (e Engine) CreateProject(ctx context.Context, id *domain.Identity, opts ProjectCreateOptions) (domain.Project, error) {
	if !access.CanCreateProject(id) {
		return domain.Project{}, ForbiddenError{Action: "create projects"}
	}
	if opts.Department.Valid() && !access.CanCreateProjectIn(id, opts.Department) {
		return domain.Project{}, ForbiddenError{Action: "create projects in " + string(opts.Department)}
	}
	verr := validate.Struct("project", opts)
	if verr == nil {
		verr = &domain.ValidationError{}
	}
	if err := e.checkReferences(ctx, verr, opts.ClientID, opts.Assignees); err != nil {
		return domain.Project{}, err
	}
	if err := verr.OrNil(); err != nil {
		return domain.Project{}, err
	}
	if opts.Status == "" {
		opts.Status = domain.ProjectPlanning
	}
	now := e.now()
	p := domain.Project{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(opts.Name),
		Description: opts.Description,
		Department:  opts.Department,
		Status:      opts.Status,
		Progress:    opts.Progress,
		Deadline:    opts.Deadline,
		Assignees:   dedupe(opts.Assignees),
		ClientID:    optionalString(opts.ClientID),
		CreatedBy:   id.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.ProjectCreated, "project", p.ID, id, events.Payload{
			"name": p.Name, "department": p.Department, "status": p.Status,
		})
	})
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// ProjectUpdateOptions holds the fields to change; nil leaves a field as is.
// An empty ClientID clears the client.
type ProjectUpdateOptions struct {
	Name        *string               `json:"name,omitempty" validate:"omitempty,notblank,max=200"`
	Description *string               `json:"description,omitempty" validate:"omitempty,max=5000"`
	Status      *domain.ProjectStatus `json:"status,omitempty" validate:"omitempty,oneof=planning in-progress review completed on-hold failed canceled"`
	Progress    *int                  `json:"progress,omitempty" validate:"omitempty,min=0,max=100"`
	Deadline    *time.Time            `json:"deadline,omitempty"`
	Assignees   *[]string             `json:"assignees,omitempty" validate:"omitempty,dive,notblank"`
	ClientID    *string               `json:"client_id,omitempty"`
}

func (e Engine) UpdateProject(ctx context.Context, id *domain.Identity, projectID string, opts ProjectUpdateOptions) (domain.Project, error) {
	p, err := e.GetProject(ctx, id, projectID)
	if err != nil {
		return p, err
	}
	if !access.CanEditProject(id, p) {
		return p, ForbiddenError{Action: "edit this project"}
	}
	verr := validate.Struct("project", opts)
	if verr == nil {
		verr = &domain.ValidationError{}
	}
	var assignees []string
	if opts.Assignees != nil {
		assignees = *opts.Assignees
	}
	if err := e.checkReferences(ctx, verr, derefString(opts.ClientID), assignees); err != nil {
		return p, err
	}
	if err := verr.OrNil(); err != nil {
		return p, err
	}
	from := p.Status
	if opts.Name != nil {
		p.Name = strings.TrimSpace(*opts.Name)
	}
	if opts.Description != nil {
		p.Description = *opts.Description
	}
	if opts.Status != nil {
		p.Status = *opts.Status
	}
	if opts.Progress != nil {
		p.Progress = *opts.Progress
	}
	if opts.Deadline != nil {
		p.Deadline = opts.Deadline
	}
	if opts.Assignees != nil {
		p.Assignees = dedupe(*opts.Assignees)
	}
	if opts.ClientID != nil {
		p.ClientID = optionalString(*opts.ClientID)
	}
	p.UpdatedAt = e.now()
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.ProjectUpdated, "project", p.ID, id, events.Payload{
			"from_status": from, "to_status": p.Status, "progress": p.Progress,
		})
	})
	return p, err
}

// GetProject returns a project the identity can see. Invisible projects are
// reported as not found.
func (e Engine) GetProject(ctx context.Context, id *domain.Identity, projectID string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return p, err
	}
	if len(access.VisibleProjects(id, []domain.Project{p})) == 0 {
		return domain.Project{}, repo.ErrNotFound
	}
	return p, nil
}

func (e Engine) ListProjects(ctx context.Context, id *domain.Identity, f repo.ProjectFilters) ([]domain.Project, error) {
	if id == nil {
		return []domain.Project{}, nil
	}
	all, err := e.Repo.ListProjects(ctx, f)
	if err != nil {
		return nil, err
	}
	return access.VisibleProjects(id, all), nil
}

// checkReferences adds issues for an unknown client or assignee.
func (e Engine) checkReferences(ctx context.Context, verr *domain.ValidationError, clientID string, assignees []string) error {
	if clientID != "" {
		if _, err := e.Repo.GetClient(ctx, clientID); err != nil {
			if !errors.Is(err, repo.ErrNotFound) {
				return err
			}
			verr.Add("project", "", "client_id", "unknown client "+clientID)
		}
	}
	for _, a := range assignees {
		if strings.TrimSpace(a) == "" {
			continue
		}
		if _, err := e.Repo.GetIdentity(ctx, a); err != nil {
			if !errors.Is(err, repo.ErrNotFound) {
				return err
			}
			verr.Add("project", "", "assignees", "unknown identity "+a)
		}
	}
	return nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
