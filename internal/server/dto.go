package server

import (
	"encoding/json"
	"net/http"
	"time"

	"agencyops/internal/config"
	"agencyops/internal/domain"
	"agencyops/internal/metrics"
)

// Request payloads

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type DependencyRequest struct {
	ParentTaskID string `json:"parent_task_id" minLength:"1"`
}

type CandidateStageRequest struct {
	Stage string `json:"stage" enum:"applied,screening,interview,offer,hired,rejected"`
}

type BudgetDecisionRequest struct {
	Approve bool `json:"approve"`
}

// dateRange reads optional from/to query dates as YYYY-MM-DD.
type dateRange struct {
	From string `query:"from" doc:"inclusive start date, YYYY-MM-DD"`
	To   string `query:"to" doc:"inclusive end date, YYYY-MM-DD"`
}

func (d *dateRange) parse() (*time.Time, *time.Time, error) {
	from, err := parseDay("from", d.From)
	if err != nil {
		return nil, nil, err
	}
	to, err := parseDay("to", d.To)
	if err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, newAPIError(http.StatusBadRequest, "bad_request", "to must not be before from", nil)
	}
	return from, to, nil
}

func parseDay(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, newAPIError(http.StatusBadRequest, "bad_request", field+" must be a date (YYYY-MM-DD)", map[string]any{"field": field})
	}
	return &t, nil
}

// Response payloads

// DashboardResponse is the snapshot plus any malformed records it counted
// under unknown.
type DashboardResponse struct {
	metrics.Snapshot
	Issues []domain.FieldIssue `json:"issues"`
}

func dashboardResponse(snap metrics.Snapshot, verr *domain.ValidationError) DashboardResponse {
	res := DashboardResponse{Snapshot: snap, Issues: []domain.FieldIssue{}}
	if verr != nil {
		res.Issues = verr.Issues
	}
	res.UpcomingTasks = nonNilSlice(res.UpcomingTasks)
	return res
}

type RateResponse struct {
	Rate int `json:"rate" minimum:"0" maximum:"100"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor int64           `json:"next_cursor,omitempty"`
}

type SettingsResponse struct {
	Dashboard struct {
		RecentCompletedDays  int `json:"recent_completed_days"`
		UpcomingDeadlineDays int `json:"upcoming_deadline_days"`
		UpcomingTaskLimit    int `json:"upcoming_task_limit"`
	} `json:"dashboard"`
	Tasks struct {
		ProjectRequired        bool `json:"project_required"`
		RejectDependencyCycles bool `json:"reject_dependency_cycles"`
	} `json:"tasks"`
	Departments []domain.Department `json:"departments"`
}

// Conversion helpers

func eventResponse(e domain.Event) EventResponse {
	payload := decodeJSONMap(e.Payload)
	if payload == nil {
		payload = map[string]any{}
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS.UTC().Format(time.RFC3339),
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    payload,
	}
}

func settingsResponse(cfg *config.Config) SettingsResponse {
	var res SettingsResponse
	if cfg == nil {
		cfg = config.Default()
	}
	res.Dashboard.RecentCompletedDays = cfg.Dashboard.RecentCompletedDays
	res.Dashboard.UpcomingDeadlineDays = cfg.Dashboard.UpcomingDeadlineDays
	res.Dashboard.UpcomingTaskLimit = cfg.Dashboard.UpcomingTaskLimit
	res.Tasks.ProjectRequired = cfg.Tasks.ProjectRequired
	res.Tasks.RejectDependencyCycles = cfg.Tasks.RejectDependencyCycles
	res.Departments = domain.Departments
	return res
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
