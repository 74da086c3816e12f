// Package engine implements the write paths and filtered reads behind the API
// and CLI. Every write checks a capability, validates its input, and appends
// an event in the same transaction.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"agencyops/internal/access"
	"agencyops/internal/config"
	"agencyops/internal/domain"
	"agencyops/internal/events"
	"agencyops/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) cfg() *config.Config {
	if e.Config != nil {
		return e.Config
	}
	return config.Default()
}

// ForbiddenError is returned by failed capability checks.
type ForbiddenError = domain.ForbiddenError

// ErrInvalidState is returned when a record is not in a state the operation
// accepts, such as deciding an already decided budget request.
var ErrInvalidState = errors.New("invalid state")

// withTx runs fn in a transaction and appends events with the engine clock.
func (e Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID string, actor *domain.Identity, payload events.Payload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, evtType, entityKind, entityID, actor.ID, payload)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ListEvents returns the audit tail to directors and admins.
func (e Engine) ListEvents(ctx context.Context, id *domain.Identity, f repo.EventFilters) ([]domain.Event, error) {
	if !access.CanReadEvents(id) {
		return nil, ForbiddenError{Action: "read events"}
	}
	return e.Repo.LatestEvents(ctx, f)
}
