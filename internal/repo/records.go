package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agencyops/internal/domain"
)

const clientColumns = `id,name,company,email,phone,address,created_by,created_at`

func scanClient(scan func(dest ...any) error) (domain.Client, error) {
	var (
		c       domain.Client
		created string
	)
	if err := scan(&c.ID, &c.Name, &c.Company, &c.Email, &c.Phone, &c.Address, &c.CreatedBy, &created); err != nil {
		return c, err
	}
	t, err := parseTime(created)
	c.CreatedAt = t
	return c, err
}

func (r Repo) InsertClient(ctx context.Context, tx *sql.Tx, c domain.Client) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO clients(`+clientColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, c.Company, c.Email, c.Phone, c.Address, c.CreatedBy, formatTime(c.CreatedAt))
	return err
}

func (r Repo) GetClient(ctx context.Context, id string) (domain.Client, error) {
	c, err := scanClient(r.DB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Client{}
	for rows.Next() {
		c, err := scanClient(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

const announcementColumns = `id,title,content,important,expires_at,created_by,created_at`

func (r Repo) InsertAnnouncement(ctx context.Context, tx *sql.Tx, a domain.Announcement) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO announcements(`+announcementColumns+`) VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.Title, a.Content, a.Important, formatTimePtr(a.ExpiresAt), a.CreatedBy, formatTime(a.CreatedAt))
	return err
}

// ListAnnouncements returns announcements newest first, important ones ahead
// of the rest. Expiry is left to the caller.
func (r Repo) ListAnnouncements(ctx context.Context) ([]domain.Announcement, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+announcementColumns+` FROM announcements ORDER BY important DESC, created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Announcement{}
	for rows.Next() {
		var (
			a       domain.Announcement
			expires sql.NullString
			created string
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Important, &expires, &a.CreatedBy, &created); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if a.ExpiresAt, err = parseNullTime(expires); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// UpsertAttendance stores one record per identity and day; a second write for
// the same day replaces status and note.
func (r Repo) UpsertAttendance(ctx context.Context, tx *sql.Tx, a domain.AttendanceRecord) (domain.AttendanceRecord, error) {
	q := r.q(tx)
	day := a.Date.UTC().Format(dateLayout)
	_, err := q.ExecContext(ctx, `INSERT INTO attendance(id,identity_id,date,status,note) VALUES (?,?,?,?,?)
ON CONFLICT(identity_id,date) DO UPDATE SET status=excluded.status, note=excluded.note`,
		a.ID, a.IdentityID, day, a.Status, a.Note)
	if err != nil {
		return a, err
	}
	if err := q.QueryRowContext(ctx, `SELECT id FROM attendance WHERE identity_id=? AND date=?`, a.IdentityID, day).Scan(&a.ID); err != nil {
		return a, fmt.Errorf("reload attendance: %w", err)
	}
	a.Date = a.Date.UTC().Truncate(24 * time.Hour)
	return a, nil
}

type AttendanceFilters struct {
	IdentityIDs []string
	From        *time.Time
	To          *time.Time
}

func (r Repo) ListAttendance(ctx context.Context, f AttendanceFilters) ([]domain.AttendanceRecord, error) {
	var (
		clauses []string
		args    []any
	)
	if f.IdentityIDs != nil {
		if len(f.IdentityIDs) == 0 {
			return []domain.AttendanceRecord{}, nil
		}
		clauses = append(clauses, "identity_id IN ("+placeholders(len(f.IdentityIDs))+")")
		for _, id := range f.IdentityIDs {
			args = append(args, id)
		}
	}
	if f.From != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.From.UTC().Format(dateLayout))
	}
	if f.To != nil {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.To.UTC().Format(dateLayout))
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,identity_id,date,status,note FROM attendance`+where(clauses)+` ORDER BY date DESC, identity_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.AttendanceRecord{}
	for rows.Next() {
		var (
			a   domain.AttendanceRecord
			day string
		)
		if err := rows.Scan(&a.ID, &a.IdentityID, &day, &a.Status, &a.Note); err != nil {
			return nil, err
		}
		if a.Date, err = parseTime(day); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
