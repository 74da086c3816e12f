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
	"agencyops/internal/domain"
	"agencyops/internal/events"
	"agencyops/internal/repo"
	"agencyops/internal/validate"
)

type PostingCreateOptions struct {
	Title      string            `json:"title" validate:"notblank,max=200"`
	Department domain.Department `json:"department" validate:"department"`
	Status     string            `json:"status,omitempty" validate:"omitempty,oneof=open closed"`
}

func (e Engine) CreatePosting(ctx context.Context, id *domain.Identity, opts PostingCreateOptions) (domain.JobPosting, error) {
	if !access.CanManageTeamSync(id) {
		return domain.JobPosting{}, ForbiddenError{Action: "manage recruitment"}
	}
	if err := validate.Struct("posting", opts).OrNil(); err != nil {
		return domain.JobPosting{}, err
	}
	status := domain.PostingStatus(opts.Status)
	if status == "" {
		status = domain.PostingOpen
	}
	p := domain.JobPosting{
		ID:         uuid.NewString(),
		Title:      strings.TrimSpace(opts.Title),
		Department: opts.Department,
		Status:     status,
		CreatedBy:  id.ID,
		CreatedAt:  e.now(),
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertPosting(ctx, tx, p); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.PostingCreated, "posting", p.ID, id, events.Payload{
			"title": p.Title, "department": p.Department,
		})
	})
	if err != nil {
		return domain.JobPosting{}, err
	}
	return p, nil
}

// ListPostings is open to every authenticated identity.
func (e Engine) ListPostings(ctx context.Context, id *domain.Identity, status domain.PostingStatus) ([]domain.JobPosting, error) {
	if id == nil {
		return []domain.JobPosting{}, nil
	}
	return e.Repo.ListPostings(ctx, status)
}

type CandidateCreateOptions struct {
	PostingID string `json:"posting_id" validate:"notblank"`
	Name      string `json:"name" validate:"notblank,max=200"`
	Email     string `json:"email" validate:"required,email"`
}

func (e Engine) AddCandidate(ctx context.Context, id *domain.Identity, opts CandidateCreateOptions) (domain.Candidate, error) {
	if !access.CanManageTeamSync(id) {
		return domain.Candidate{}, ForbiddenError{Action: "manage recruitment"}
	}
	if err := validate.Struct("candidate", opts).OrNil(); err != nil {
		return domain.Candidate{}, err
	}
	now := e.now()
	c := domain.Candidate{
		ID:        uuid.NewString(),
		PostingID: opts.PostingID,
		Name:      strings.TrimSpace(opts.Name),
		Email:     strings.ToLower(strings.TrimSpace(opts.Email)),
		Stage:     domain.StageApplied,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		posting, err := e.Repo.GetPosting(ctx, tx, opts.PostingID)
		if errors.Is(err, repo.ErrNotFound) {
			verr := &domain.ValidationError{}
			verr.Add("candidate", "", "posting_id", "unknown posting "+opts.PostingID)
			return verr
		}
		if err != nil {
			return err
		}
		if posting.Status != domain.PostingOpen {
			return fmt.Errorf("posting %s is %s: %w", posting.ID, posting.Status, ErrInvalidState)
		}
		if err := e.Repo.InsertCandidate(ctx, tx, c); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.CandidateAdded, "candidate", c.ID, id, events.Payload{"posting_id": c.PostingID})
	})
	if err != nil {
		return domain.Candidate{}, err
	}
	return c, nil
}

// MoveCandidate sets the candidate's pipeline stage. Hired and rejected
// candidates are final.
func (e Engine) MoveCandidate(ctx context.Context, id *domain.Identity, candidateID string, stage domain.CandidateStage) (domain.Candidate, error) {
	if !access.CanManageTeamSync(id) {
		return domain.Candidate{}, ForbiddenError{Action: "manage recruitment"}
	}
	if !stage.Valid() {
		verr := &domain.ValidationError{}
		verr.Add("candidate", candidateID, "stage", "unknown stage "+string(stage))
		return domain.Candidate{}, verr
	}
	var c domain.Candidate
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if c, err = e.Repo.GetCandidate(ctx, tx, candidateID); err != nil {
			return err
		}
		if c.Stage == domain.StageHired || c.Stage == domain.StageRejected {
			return fmt.Errorf("candidate %s is %s: %w", c.ID, c.Stage, ErrInvalidState)
		}
		from := c.Stage
		c.Stage = stage
		c.UpdatedAt = e.now()
		if err := e.Repo.UpdateCandidateStage(ctx, tx, c); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.CandidateMoved, "candidate", c.ID, id, events.Payload{"from": from, "to": stage})
	})
	return c, err
}

func (e Engine) ListCandidates(ctx context.Context, id *domain.Identity, postingID string) ([]domain.Candidate, error) {
	if !access.CanManageTeamSync(id) {
		return []domain.Candidate{}, nil
	}
	return e.Repo.ListCandidates(ctx, postingID)
}

type ContractCreateOptions struct {
	IdentityID  string     `json:"identity_id" validate:"notblank"`
	Kind        string     `json:"kind" validate:"oneof=full-time part-time contractor intern"`
	StartsAt    time.Time  `json:"starts_at" validate:"required"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	SalaryCents int64      `json:"salary_cents" validate:"gte=0"`
}

func (e Engine) CreateContract(ctx context.Context, id *domain.Identity, opts ContractCreateOptions) (domain.Contract, error) {
	if !access.CanManageTeamSync(id) {
		return domain.Contract{}, ForbiddenError{Action: "manage contracts"}
	}
	verr := validate.Struct("contract", opts)
	if opts.EndsAt != nil && !opts.EndsAt.After(opts.StartsAt) {
		if verr == nil {
			verr = &domain.ValidationError{}
		}
		verr.Add("contract", "", "ends_at", "must be after starts_at")
	}
	if err := verr.OrNil(); err != nil {
		return domain.Contract{}, err
	}
	if _, err := e.Repo.GetIdentity(ctx, opts.IdentityID); err != nil {
		return domain.Contract{}, err
	}
	c := domain.Contract{
		ID:          uuid.NewString(),
		IdentityID:  opts.IdentityID,
		Kind:        domain.ContractKind(opts.Kind),
		StartsAt:    opts.StartsAt,
		EndsAt:      opts.EndsAt,
		SalaryCents: opts.SalaryCents,
		CreatedBy:   id.ID,
		CreatedAt:   e.now(),
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertContract(ctx, tx, c); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.ContractCreated, "contract", c.ID, id, events.Payload{
			"identity_id": c.IdentityID, "kind": c.Kind,
		})
	})
	if err != nil {
		return domain.Contract{}, err
	}
	return c, nil
}

func (e Engine) ListContracts(ctx context.Context, id *domain.Identity, identityID string) ([]domain.Contract, error) {
	if id == nil {
		return []domain.Contract{}, nil
	}
	all, err := e.Repo.ListContracts(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return access.VisibleContracts(id, all), nil
}

type BenefitEnrollOptions struct {
	IdentityID string `json:"identity_id" validate:"notblank"`
	Name       string `json:"name" validate:"notblank,max=200"`
}

func (e Engine) EnrollBenefit(ctx context.Context, id *domain.Identity, opts BenefitEnrollOptions) (domain.Benefit, error) {
	if !access.CanManageTeamSync(id) {
		return domain.Benefit{}, ForbiddenError{Action: "manage benefits"}
	}
	if err := validate.Struct("benefit", opts).OrNil(); err != nil {
		return domain.Benefit{}, err
	}
	if _, err := e.Repo.GetIdentity(ctx, opts.IdentityID); err != nil {
		return domain.Benefit{}, err
	}
	b := domain.Benefit{
		ID:         uuid.NewString(),
		IdentityID: opts.IdentityID,
		Name:       strings.TrimSpace(opts.Name),
		EnrolledAt: e.now(),
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertBenefit(ctx, tx, b); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.BenefitEnrolled, "benefit", b.ID, id, events.Payload{
			"identity_id": b.IdentityID, "name": b.Name,
		})
	})
	if err != nil {
		return domain.Benefit{}, err
	}
	return b, nil
}

func (e Engine) ListBenefits(ctx context.Context, id *domain.Identity, identityID string) ([]domain.Benefit, error) {
	if id == nil {
		return []domain.Benefit{}, nil
	}
	all, err := e.Repo.ListBenefits(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return access.VisibleBenefits(id, all), nil
}

type ReviewCreateOptions struct {
	IdentityID string `json:"identity_id" validate:"notblank"`
	Period     string `json:"period" validate:"notblank,max=50"`
	Rating     int    `json:"rating" validate:"min=1,max=5"`
	Summary    string `json:"summary,omitempty" validate:"max=5000"`
}

// RecordReview stores a performance review written by the caller. Nobody
// reviews themselves.
func (e Engine) RecordReview(ctx context.Context, id *domain.Identity, opts ReviewCreateOptions) (domain.PerformanceReview, error) {
	if !access.CanManageTeamSync(id) && !hasRole(id, domain.RoleHead) {
		return domain.PerformanceReview{}, ForbiddenError{Action: "record reviews"}
	}
	verr := validate.Struct("review", opts)
	if opts.IdentityID == id.ID {
		if verr == nil {
			verr = &domain.ValidationError{}
		}
		verr.Add("review", "", "identity_id", "cannot review yourself")
	}
	if err := verr.OrNil(); err != nil {
		return domain.PerformanceReview{}, err
	}
	subject, err := e.Repo.GetIdentity(ctx, opts.IdentityID)
	if err != nil {
		return domain.PerformanceReview{}, err
	}
	if !access.CanManageTeamSync(id) && subject.Department != id.Department {
		return domain.PerformanceReview{}, ForbiddenError{Action: "review outside your department"}
	}
	pr := domain.PerformanceReview{
		ID:         uuid.NewString(),
		IdentityID: opts.IdentityID,
		ReviewerID: id.ID,
		Period:     strings.TrimSpace(opts.Period),
		Rating:     opts.Rating,
		Summary:    opts.Summary,
		CreatedAt:  e.now(),
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertReview(ctx, tx, pr); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.ReviewRecorded, "review", pr.ID, id, events.Payload{
			"identity_id": pr.IdentityID, "period": pr.Period, "rating": pr.Rating,
		})
	})
	if err != nil {
		return domain.PerformanceReview{}, err
	}
	return pr, nil
}

func (e Engine) ListReviews(ctx context.Context, id *domain.Identity, identityID string) ([]domain.PerformanceReview, error) {
	if id == nil {
		return []domain.PerformanceReview{}, nil
	}
	all, err := e.Repo.ListReviews(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return access.VisibleReviews(id, all), nil
}

type BudgetRequestOptions struct {
	Department  domain.Department `json:"department" validate:"department"`
	Title       string            `json:"title" validate:"notblank,max=200"`
	AmountCents int64             `json:"amount_cents" validate:"gt=0"`
}

func (e Engine) RequestBudget(ctx context.Context, id *domain.Identity, opts BudgetRequestOptions) (domain.BudgetRequest, error) {
	if id == nil {
		return domain.BudgetRequest{}, ForbiddenError{Action: "request budget"}
	}
	if err := validate.Struct("budget_request", opts).OrNil(); err != nil {
		return domain.BudgetRequest{}, err
	}
	if !access.CanRequestBudget(id, opts.Department) {
		return domain.BudgetRequest{}, ForbiddenError{Action: "request budget for " + string(opts.Department)}
	}
	b := domain.BudgetRequest{
		ID:          uuid.NewString(),
		Department:  opts.Department,
		Title:       strings.TrimSpace(opts.Title),
		AmountCents: opts.AmountCents,
		Status:      domain.BudgetPending,
		RequestedBy: id.ID,
		CreatedAt:   e.now(),
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertBudgetRequest(ctx, tx, b); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.BudgetRequested, "budget_request", b.ID, id, events.Payload{
			"department": b.Department, "amount_cents": b.AmountCents,
		})
	})
	if err != nil {
		return domain.BudgetRequest{}, err
	}
	return b, nil
}

// DecideBudgetRequest approves or rejects a pending request.
func (e Engine) DecideBudgetRequest(ctx context.Context, id *domain.Identity, requestID string, approve bool) (domain.BudgetRequest, error) {
	if !access.CanDecideBudgetRequest(id) {
		return domain.BudgetRequest{}, ForbiddenError{Action: "decide budget requests"}
	}
	var b domain.BudgetRequest
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if b, err = e.Repo.GetBudgetRequest(ctx, tx, requestID); err != nil {
			return err
		}
		if b.Status != domain.BudgetPending {
			return fmt.Errorf("budget request %s is %s: %w", b.ID, b.Status, ErrInvalidState)
		}
		now := e.now()
		b.Status = domain.BudgetRejected
		if approve {
			b.Status = domain.BudgetApproved
		}
		b.DecidedBy = &id.ID
		b.DecidedAt = &now
		if err := e.Repo.DecideBudgetRequest(ctx, tx, b); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.BudgetDecided, "budget_request", b.ID, id, events.Payload{"status": b.Status})
	})
	if err != nil {
		return domain.BudgetRequest{}, err
	}
	return b, nil
}

func (e Engine) ListBudgetRequests(ctx context.Context, id *domain.Identity, status domain.BudgetStatus) ([]domain.BudgetRequest, error) {
	if id == nil {
		return []domain.BudgetRequest{}, nil
	}
	all, err := e.Repo.ListBudgetRequests(ctx, status)
	if err != nil {
		return nil, err
	}
	return access.VisibleBudgetRequests(id, all), nil
}

func hasRole(id *domain.Identity, role domain.Role) bool {
	return id != nil && id.Role == role
}
