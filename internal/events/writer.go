package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the engine.
const (
	IdentityRegistered = "identity.registered"
	ProjectCreated     = "project.created"
	ProjectUpdated     = "project.updated"
	TaskCreated        = "task.created"
	TaskUpdated        = "task.updated"
	TaskDeleted        = "task.deleted"
	DependencyAdded    = "task.dependency_added"
	DependencyRemoved  = "task.dependency_removed"
	ClientCreated      = "client.created"
	AnnouncementPosted = "announcement.posted"
	AttendanceRecorded = "attendance.recorded"
	PostingCreated     = "teamsync.posting_created"
	CandidateAdded     = "teamsync.candidate_added"
	CandidateMoved     = "teamsync.candidate_moved"
	ContractCreated    = "teamsync.contract_created"
	BenefitEnrolled    = "teamsync.benefit_enrolled"
	ReviewRecorded     = "teamsync.review_recorded"
	BudgetRequested    = "teamsync.budget_requested"
	BudgetDecided      = "teamsync.budget_decided"
)

// Writer appends audit events inside the caller's transaction.
type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload Payload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
