package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"agencyops/internal/access"
	"agencyops/internal/domain"
	"agencyops/internal/events"
	"agencyops/internal/repo"
	"agencyops/internal/validate"
)

type ClientCreateOptions struct {
	Name    string `json:"name" validate:"notblank,max=200"`
	Company string `json:"company,omitempty" validate:"max=200"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty" validate:"max=50"`
	Address string `json:"address,omitempty" validate:"max=500"`
}

func (e Engine) CreateClient(ctx context.Context, id *domain.Identity, opts ClientCreateOptions) (domain.Client, error) {
	if !access.CanCreateClient(id) {
		return domain.Client{}, ForbiddenError{Action: "create clients"}
	}
	if err := validate.Struct("client", opts).OrNil(); err != nil {
		return domain.Client{}, err
	}
	c := domain.Client{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(opts.Name),
		Company:   opts.Company,
		Email:     strings.ToLower(strings.TrimSpace(opts.Email)),
		Phone:     opts.Phone,
		Address:   opts.Address,
		CreatedBy: id.ID,
		CreatedAt: e.now(),
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertClient(ctx, tx, c); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.ClientCreated, "client", c.ID, id, events.Payload{"name": c.Name})
	})
	if err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

func (e Engine) ListClients(ctx context.Context, id *domain.Identity) ([]domain.Client, error) {
	if id == nil {
		return []domain.Client{}, nil
	}
	all, err := e.Repo.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	return access.VisibleClients(id, all), nil
}

type AnnouncementCreateOptions struct {
	Title     string     `json:"title" validate:"notblank,max=200"`
	Content   string     `json:"content" validate:"notblank,max=10000"`
	Important bool       `json:"important,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (e Engine) CreateAnnouncement(ctx context.Context, id *domain.Identity, opts AnnouncementCreateOptions) (domain.Announcement, error) {
	if !access.CanCreateAnnouncement(id) {
		return domain.Announcement{}, ForbiddenError{Action: "post announcements"}
	}
	verr := validate.Struct("announcement", opts)
	now := e.now()
	if opts.ExpiresAt != nil && !opts.ExpiresAt.After(now) {
		if verr == nil {
			verr = &domain.ValidationError{}
		}
		verr.Add("announcement", "", "expires_at", "must be in the future")
	}
	if err := verr.OrNil(); err != nil {
		return domain.Announcement{}, err
	}
	a := domain.Announcement{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(opts.Title),
		Content:   opts.Content,
		Important: opts.Important,
		ExpiresAt: opts.ExpiresAt,
		CreatedBy: id.ID,
		CreatedAt: now,
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertAnnouncement(ctx, tx, a); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.AnnouncementPosted, "announcement", a.ID, id, events.Payload{
			"title": a.Title, "important": a.Important,
		})
	})
	if err != nil {
		return domain.Announcement{}, err
	}
	return a, nil
}

// ListAnnouncements returns unexpired announcements, important ones first.
func (e Engine) ListAnnouncements(ctx context.Context, id *domain.Identity) ([]domain.Announcement, error) {
	if id == nil {
		return []domain.Announcement{}, nil
	}
	all, err := e.Repo.ListAnnouncements(ctx)
	if err != nil {
		return nil, err
	}
	return access.VisibleAnnouncements(id, all, e.now()), nil
}

type AttendanceOptions struct {
	IdentityID string                  `json:"identity_id,omitempty"`
	Date       time.Time               `json:"date" validate:"required"`
	Status     domain.AttendanceStatus `json:"status" validate:"oneof=present remote late absent leave not-recorded"`
	Note       string                  `json:"note,omitempty" validate:"max=500"`
}

// RecordAttendance stores the status for one identity and day. IdentityID
// defaults to the caller; a second record for the same day replaces the first.
func (e Engine) RecordAttendance(ctx context.Context, id *domain.Identity, opts AttendanceOptions) (domain.AttendanceRecord, error) {
	if id == nil {
		return domain.AttendanceRecord{}, ForbiddenError{Action: "record attendance"}
	}
	if opts.IdentityID == "" {
		opts.IdentityID = id.ID
	}
	if !access.CanRecordAttendance(id, opts.IdentityID) {
		return domain.AttendanceRecord{}, ForbiddenError{Action: "record attendance for others"}
	}
	if err := validate.Struct("attendance", opts).OrNil(); err != nil {
		return domain.AttendanceRecord{}, err
	}
	if _, err := e.Repo.GetIdentity(ctx, opts.IdentityID); err != nil {
		return domain.AttendanceRecord{}, err
	}
	rec := domain.AttendanceRecord{
		ID:         uuid.NewString(),
		IdentityID: opts.IdentityID,
		Date:       opts.Date,
		Status:     opts.Status,
		Note:       opts.Note,
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if rec, err = e.Repo.UpsertAttendance(ctx, tx, rec); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.AttendanceRecorded, "attendance", rec.ID, id, events.Payload{
			"identity_id": rec.IdentityID, "date": rec.Date.Format("2006-01-02"), "status": rec.Status,
		})
	})
	if err != nil {
		return domain.AttendanceRecord{}, err
	}
	return rec, nil
}

// ListAttendance returns the attendance records visible to the identity.
func (e Engine) ListAttendance(ctx context.Context, id *domain.Identity, f repo.AttendanceFilters) ([]domain.AttendanceRecord, error) {
	if id == nil {
		return []domain.AttendanceRecord{}, nil
	}
	all, err := e.Repo.ListAttendance(ctx, f)
	if err != nil {
		return nil, err
	}
	departments, err := e.departmentIndex(ctx)
	if err != nil {
		return nil, err
	}
	return access.VisibleAttendance(id, all, departments), nil
}

func (e Engine) departmentIndex(ctx context.Context) (map[string]domain.Department, error) {
	people, err := e.Repo.ListIdentities(ctx, repo.IdentityFilters{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Department, len(people))
	for _, p := range people {
		out[p.ID] = p.Department
	}
	return out, nil
}

// ListIdentities returns the directory. With a department it returns the
// identities eligible for assignment there.
func (e Engine) ListIdentities(ctx context.Context, id *domain.Identity, department domain.Department) ([]domain.Identity, error) {
	if id == nil {
		return []domain.Identity{}, nil
	}
	all, err := e.Repo.ListIdentities(ctx, repo.IdentityFilters{})
	if err != nil {
		return nil, err
	}
	if department == "" {
		return all, nil
	}
	return access.EligibleAssignees(all, department), nil
}
