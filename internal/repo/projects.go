package repo

import (
	"context"
	"database/sql"
	"errors"

	"agencyops/internal/domain"
)

const projectColumns = `id,name,description,department,status,progress,deadline,client_id,created_by,created_at,updated_at`

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var (
		p                  domain.Project
		deadline, clientID sql.NullString
		created, updated   string
	)
	if err := scan(&p.ID, &p.Name, &p.Description, &p.Department, &p.Status, &p.Progress, &deadline, &clientID, &p.CreatedBy, &created, &updated); err != nil {
		return p, err
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return p, err
	}
	if p.Deadline, err = parseNullTime(deadline); err != nil {
		return p, err
	}
	p.ClientID = stringPtr(clientID)
	p.Assignees = []string{}
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO projects(`+projectColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Description, p.Department, p.Status, p.Progress, formatTimePtr(p.Deadline), nullableStringPtr(p.ClientID),
		p.CreatedBy, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return err
	}
	return r.setAssignees(ctx, tx, p.ID, p.Assignees)
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE projects SET name=?, description=?, department=?, status=?, progress=?, deadline=?, client_id=?, updated_at=? WHERE id=?`,
		p.Name, p.Description, p.Department, p.Status, p.Progress, formatTimePtr(p.Deadline), nullableStringPtr(p.ClientID), formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	if err := notFoundIfNone(res); err != nil {
		return err
	}
	return r.setAssignees(ctx, tx, p.ID, p.Assignees)
}

func (r Repo) setAssignees(ctx context.Context, tx *sql.Tx, projectID string, assignees []string) error {
	q := r.q(tx)
	if _, err := q.ExecContext(ctx, `DELETE FROM project_assignees WHERE project_id=?`, projectID); err != nil {
		return err
	}
	for i, a := range assignees {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO project_assignees(project_id, identity_id, position) VALUES (?,?,?)`, projectID, a, i); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return r.GetProjectTx(ctx, nil, id)
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	q := r.q(tx)
	p, err := scanProject(q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	assignees, err := r.assignees(ctx, q, []string{id})
	if err != nil {
		return p, err
	}
	if a, ok := assignees[id]; ok {
		p.Assignees = a
	}
	return p, nil
}

type ProjectFilters struct {
	Department domain.Department
	Status     domain.ProjectStatus
	ClientID   string
}

// ListProjects returns projects newest first with their assignees loaded.
func (r Repo) ListProjects(ctx context.Context, f ProjectFilters) ([]domain.Project, error) {
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
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects`+where(clauses)+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Project{}
	ids := []string{}
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(ids) == 0 {
		return res, nil
	}
	assignees, err := r.assignees(ctx, r.DB, nil)
	if err != nil {
		return nil, err
	}
	for i := range res {
		if a, ok := assignees[res[i].ID]; ok {
			res[i].Assignees = a
		}
	}
	return res, nil
}

// assignees loads assignee lists keyed by project, all projects when ids is nil.
func (r Repo) assignees(ctx context.Context, q querier, ids []string) (map[string][]string, error) {
	query := `SELECT project_id, identity_id FROM project_assignees`
	var args []any
	if ids != nil {
		query += ` WHERE project_id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` ORDER BY project_id, position`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]string)
	for rows.Next() {
		var pid, iid string
		if err := rows.Scan(&pid, &iid); err != nil {
			return nil, err
		}
		out[pid] = append(out[pid], iid)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
