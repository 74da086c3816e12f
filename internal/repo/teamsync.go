package repo

import (
	"context"
	"database/sql"
	"errors"

	"agencyops/internal/domain"
)

func (r Repo) InsertPosting(ctx context.Context, tx *sql.Tx, p domain.JobPosting) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO job_postings(id,title,department,status,created_by,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.Title, p.Department, p.Status, p.CreatedBy, formatTime(p.CreatedAt))
	return err
}

func (r Repo) GetPosting(ctx context.Context, tx *sql.Tx, id string) (domain.JobPosting, error) {
	var (
		p       domain.JobPosting
		created string
	)
	err := r.q(tx).QueryRowContext(ctx, `SELECT id,title,department,status,created_by,created_at FROM job_postings WHERE id=?`, id).
		Scan(&p.ID, &p.Title, &p.Department, &p.Status, &p.CreatedBy, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.CreatedAt, err = parseTime(created)
	return p, err
}

func (r Repo) ListPostings(ctx context.Context, status domain.PostingStatus) ([]domain.JobPosting, error) {
	var (
		clauses []string
		args    []any
	)
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,department,status,created_by,created_at FROM job_postings`+where(clauses)+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.JobPosting{}
	for rows.Next() {
		var (
			p       domain.JobPosting
			created string
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Department, &p.Status, &p.CreatedBy, &created); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

const candidateColumns = `id,posting_id,name,email,stage,created_at,updated_at`

func scanCandidate(scan func(dest ...any) error) (domain.Candidate, error) {
	var (
		c                domain.Candidate
		created, updated string
	)
	if err := scan(&c.ID, &c.PostingID, &c.Name, &c.Email, &c.Stage, &created, &updated); err != nil {
		return c, err
	}
	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return c, err
	}
	c.UpdatedAt, err = parseTime(updated)
	return c, err
}

func (r Repo) InsertCandidate(ctx context.Context, tx *sql.Tx, c domain.Candidate) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO candidates(`+candidateColumns+`) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.PostingID, c.Name, c.Email, c.Stage, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	return err
}

func (r Repo) GetCandidate(ctx context.Context, tx *sql.Tx, id string) (domain.Candidate, error) {
	c, err := scanCandidate(r.q(tx).QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id=?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) UpdateCandidateStage(ctx context.Context, tx *sql.Tx, c domain.Candidate) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE candidates SET stage=?, updated_at=? WHERE id=?`, c.Stage, formatTime(c.UpdatedAt), c.ID)
	if err != nil {
		return err
	}
	return notFoundIfNone(res)
}

func (r Repo) ListCandidates(ctx context.Context, postingID string) ([]domain.Candidate, error) {
	var (
		clauses []string
		args    []any
	)
	if postingID != "" {
		clauses = append(clauses, "posting_id=?")
		args = append(args, postingID)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+candidateColumns+` FROM candidates`+where(clauses)+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) InsertContract(ctx context.Context, tx *sql.Tx, c domain.Contract) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO contracts(id,identity_id,kind,starts_at,ends_at,salary_cents,created_by,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.IdentityID, c.Kind, formatTime(c.StartsAt), formatTimePtr(c.EndsAt), c.SalaryCents, c.CreatedBy, formatTime(c.CreatedAt))
	return err
}

func (r Repo) ListContracts(ctx context.Context, identityID string) ([]domain.Contract, error) {
	var (
		clauses []string
		args    []any
	)
	if identityID != "" {
		clauses = append(clauses, "identity_id=?")
		args = append(args, identityID)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,identity_id,kind,starts_at,ends_at,salary_cents,created_by,created_at FROM contracts`+where(clauses)+` ORDER BY starts_at DESC, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Contract{}
	for rows.Next() {
		var (
			c               domain.Contract
			starts, created string
			ends            sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.IdentityID, &c.Kind, &starts, &ends, &c.SalaryCents, &c.CreatedBy, &created); err != nil {
			return nil, err
		}
		if c.StartsAt, err = parseTime(starts); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if c.EndsAt, err = parseNullTime(ends); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) InsertBenefit(ctx context.Context, tx *sql.Tx, b domain.Benefit) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO benefits(id,identity_id,name,enrolled_at) VALUES (?,?,?,?)`,
		b.ID, b.IdentityID, b.Name, formatTime(b.EnrolledAt))
	return err
}

func (r Repo) ListBenefits(ctx context.Context, identityID string) ([]domain.Benefit, error) {
	var (
		clauses []string
		args    []any
	)
	if identityID != "" {
		clauses = append(clauses, "identity_id=?")
		args = append(args, identityID)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,identity_id,name,enrolled_at FROM benefits`+where(clauses)+` ORDER BY enrolled_at DESC, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Benefit{}
	for rows.Next() {
		var (
			b        domain.Benefit
			enrolled string
		)
		if err := rows.Scan(&b.ID, &b.IdentityID, &b.Name, &enrolled); err != nil {
			return nil, err
		}
		if b.EnrolledAt, err = parseTime(enrolled); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func (r Repo) InsertReview(ctx context.Context, tx *sql.Tx, pr domain.PerformanceReview) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO performance_reviews(id,identity_id,reviewer_id,period,rating,summary,created_at) VALUES (?,?,?,?,?,?,?)`,
		pr.ID, pr.IdentityID, pr.ReviewerID, pr.Period, pr.Rating, pr.Summary, formatTime(pr.CreatedAt))
	return err
}

func (r Repo) ListReviews(ctx context.Context, identityID string) ([]domain.PerformanceReview, error) {
	var (
		clauses []string
		args    []any
	)
	if identityID != "" {
		clauses = append(clauses, "identity_id=?")
		args = append(args, identityID)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,identity_id,reviewer_id,period,rating,summary,created_at FROM performance_reviews`+where(clauses)+` ORDER BY created_at DESC, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.PerformanceReview{}
	for rows.Next() {
		var (
			pr      domain.PerformanceReview
			created string
		)
		if err := rows.Scan(&pr.ID, &pr.IdentityID, &pr.ReviewerID, &pr.Period, &pr.Rating, &pr.Summary, &created); err != nil {
			return nil, err
		}
		if pr.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		res = append(res, pr)
	}
	return res, rows.Err()
}

const budgetColumns = `id,department,title,amount_cents,status,requested_by,decided_by,created_at,decided_at`

func scanBudget(scan func(dest ...any) error) (domain.BudgetRequest, error) {
	var (
		b                  domain.BudgetRequest
		decidedBy, decided sql.NullString
		created            string
	)
	if err := scan(&b.ID, &b.Department, &b.Title, &b.AmountCents, &b.Status, &b.RequestedBy, &decidedBy, &created, &decided); err != nil {
		return b, err
	}
	var err error
	if b.CreatedAt, err = parseTime(created); err != nil {
		return b, err
	}
	if b.DecidedAt, err = parseNullTime(decided); err != nil {
		return b, err
	}
	b.DecidedBy = stringPtr(decidedBy)
	return b, nil
}

func (r Repo) InsertBudgetRequest(ctx context.Context, tx *sql.Tx, b domain.BudgetRequest) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO budget_requests(`+budgetColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		b.ID, b.Department, b.Title, b.AmountCents, b.Status, b.RequestedBy, nullableStringPtr(b.DecidedBy), formatTime(b.CreatedAt), formatTimePtr(b.DecidedAt))
	return err
}

func (r Repo) GetBudgetRequest(ctx context.Context, tx *sql.Tx, id string) (domain.BudgetRequest, error) {
	b, err := scanBudget(r.q(tx).QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budget_requests WHERE id=?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrNotFound
	}
	return b, err
}

func (r Repo) DecideBudgetRequest(ctx context.Context, tx *sql.Tx, b domain.BudgetRequest) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE budget_requests SET status=?, decided_by=?, decided_at=? WHERE id=?`,
		b.Status, nullableStringPtr(b.DecidedBy), formatTimePtr(b.DecidedAt), b.ID)
	if err != nil {
		return err
	}
	return notFoundIfNone(res)
}

func (r Repo) ListBudgetRequests(ctx context.Context, status domain.BudgetStatus) ([]domain.BudgetRequest, error) {
	var (
		clauses []string
		args    []any
	)
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budget_requests`+where(clauses)+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.BudgetRequest{}
	for rows.Next() {
		b, err := scanBudget(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}
