package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"agencyops/internal/domain"
)

// StoredIdentity is an identity row including its password hash.
type StoredIdentity struct {
	domain.Identity
	PasswordHash string
}

const identityColumns = `id,name,email,role,department,password_hash,created_at`

func scanIdentity(scan func(dest ...any) error) (StoredIdentity, error) {
	var (
		s       StoredIdentity
		created string
	)
	if err := scan(&s.ID, &s.Name, &s.Email, &s.Role, &s.Department, &s.PasswordHash, &created); err != nil {
		return s, err
	}
	t, err := parseTime(created)
	if err != nil {
		return s, err
	}
	s.CreatedAt = t
	return s, nil
}

func (r Repo) InsertIdentity(ctx context.Context, tx *sql.Tx, s StoredIdentity) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO identities(`+identityColumns+`) VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.Name, strings.ToLower(s.Email), s.Role, s.Department, s.PasswordHash, formatTime(s.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("identity %s: %w", s.Email, ErrConflict)
	}
	return err
}

func (r Repo) GetIdentity(ctx context.Context, id string) (StoredIdentity, error) {
	s, err := scanIdentity(r.DB.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id=?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) GetIdentityByEmail(ctx context.Context, email string) (StoredIdentity, error) {
	s, err := scanIdentity(r.DB.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE email=?`, strings.ToLower(strings.TrimSpace(email))).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

type IdentityFilters struct {
	Department domain.Department
	Role       domain.Role
}

func (r Repo) ListIdentities(ctx context.Context, f IdentityFilters) ([]domain.Identity, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Department != "" {
		clauses = append(clauses, "department=?")
		args = append(args, f.Department)
	}
	if f.Role != "" {
		clauses = append(clauses, "role=?")
		args = append(args, f.Role)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+identityColumns+` FROM identities`+where(clauses)+` ORDER BY name, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Identity{}
	for rows.Next() {
		s, err := scanIdentity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s.Identity)
	}
	return res, rows.Err()
}

func (r Repo) CountIdentities(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT count(*) FROM identities`).Scan(&n)
	return n, err
}

// RevokeToken records a token id as logged out until it would have expired.
func (r Repo) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO revoked_tokens(token_id, expires_at) VALUES (?,?)`, tokenID, formatTime(expiresAt))
	return err
}

func (r Repo) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM revoked_tokens WHERE token_id=?`, tokenID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// PruneRevokedTokens drops revocations whose tokens have expired anyway.
func (r Repo) PruneRevokedTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
