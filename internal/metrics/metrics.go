// Package metrics reduces already-filtered record collections into dashboard
// figures. Nothing here reads the wall clock or mutates its input; callers pass
// "now" explicitly.
package metrics

import (
	"math"
	"slices"
	"time"

	"agencyops/internal/domain"
)

const (
	DefaultRecentlyCompletedDays = 30
	DefaultUpcomingDeadlineDays  = 7
	DefaultUpcomingTaskLimit     = 5
)

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// CountActiveProjects counts projects in planning or in progress.
func CountActiveProjects(projects []domain.Project) int {
	n := 0
	for _, p := range projects {
		if p.Status == domain.ProjectInProgress || p.Status == domain.ProjectPlanning {
			n++
		}
	}
	return n
}

// CountRecentlyCompleted counts completed projects updated strictly after
// now minus windowDays.
func CountRecentlyCompleted(projects []domain.Project, now time.Time, windowDays int) int {
	if windowDays < 0 {
		windowDays = 0
	}
	since := now.Add(-days(windowDays))
	n := 0
	for _, p := range projects {
		if p.Status == domain.ProjectCompleted && p.UpdatedAt.After(since) {
			n++
		}
	}
	return n
}

// CountUpcomingDeadlines counts deadlines inside the open interval
// (now, now+windowDays).
func CountUpcomingDeadlines(projects []domain.Project, now time.Time, windowDays int) int {
	if windowDays < 0 {
		windowDays = 0
	}
	until := now.Add(days(windowDays))
	n := 0
	for _, p := range projects {
		if p.Deadline == nil {
			continue
		}
		if p.Deadline.After(now) && p.Deadline.Before(until) {
			n++
		}
	}
	return n
}

// CountOverdueTasks counts unfinished tasks whose due date is before now.
func CountOverdueTasks(tasks []domain.Task, now time.Time) int {
	n := 0
	for _, t := range tasks {
		if t.Status != domain.TaskCompleted && t.DueDate != nil && t.DueDate.Before(now) {
			n++
		}
	}
	return n
}

// UpcomingTasks returns unfinished tasks with a due date, earliest first, at
// most limit of them. Ties keep input order. Overdue tasks are listed first.
func UpcomingTasks(tasks []domain.Task, _ time.Time, limit int) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.DueDate != nil && t.Status != domain.TaskCompleted {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Task) int {
		return a.DueDate.Compare(*b.DueDate)
	})
	if limit < 0 {
		limit = 0
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Buckets classifies a department's projects. Unknown holds projects whose
// status is outside the enumeration.
type Buckets struct {
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`
	Unknown   int `json:"unknown"`
}

func (b Buckets) Total() int {
	return b.Active + b.Completed + b.Failed + b.Canceled + b.Unknown
}

// DepartmentBreakdown partitions projects by department and outcome. Every
// department of the enumeration is present; projects with a department outside
// it are keyed under domain.DepartmentUnknown.
func DepartmentBreakdown(projects []domain.Project) map[domain.Department]Buckets {
	out := make(map[domain.Department]Buckets, len(domain.Departments)+1)
	for _, d := range domain.Departments {
		out[d] = Buckets{}
	}
	for _, p := range projects {
		dept := p.Department
		if !dept.Valid() {
			dept = domain.DepartmentUnknown
		}
		b := out[dept]
		switch p.Status {
		case domain.ProjectCompleted:
			b.Completed++
		case domain.ProjectFailed:
			b.Failed++
		case domain.ProjectCanceled:
			b.Canceled++
		case domain.ProjectPlanning, domain.ProjectInProgress, domain.ProjectReview, domain.ProjectOnHold:
			b.Active++
		default:
			b.Unknown++
		}
		out[dept] = b
	}
	return out
}

// DefaultPresentStatuses are the attendance statuses counted as present.
var DefaultPresentStatuses = []domain.AttendanceStatus{domain.AttendancePresent, domain.AttendanceRemote}

// AttendanceRate returns the rounded percentage of recorded days counted as
// present. Records marked not-recorded are excluded from the denominator. With
// nothing recorded the rate is 0.
func AttendanceRate(records []domain.AttendanceRecord, present ...domain.AttendanceStatus) int {
	if len(present) == 0 {
		present = DefaultPresentStatuses
	}
	var num, den int
	for _, r := range records {
		if r.Status == domain.AttendanceNotRecorded {
			continue
		}
		den++
		if slices.Contains(present, r.Status) {
			num++
		}
	}
	if den == 0 {
		return 0
	}
	return clampPercent(int(math.Round(float64(num) * 100 / float64(den))))
}

func clampPercent(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// TaskStatusCounts counts tasks per status. Every known status is present;
// anything else is counted under "unknown".
func TaskStatusCounts(tasks []domain.Task) map[string]int {
	out := make(map[string]int, len(domain.TaskStatuses)+1)
	for _, s := range domain.TaskStatuses {
		out[string(s)] = 0
	}
	for _, t := range tasks {
		if t.Status.Valid() {
			out[string(t.Status)]++
		} else {
			out["unknown"]++
		}
	}
	return out
}

// ProjectStatusCounts counts projects per status, routing unknown statuses to
// "unknown".
func ProjectStatusCounts(projects []domain.Project) map[string]int {
	out := make(map[string]int, len(domain.ProjectStatuses)+1)
	for _, s := range domain.ProjectStatuses {
		out[string(s)] = 0
	}
	for _, p := range projects {
		if p.Status.Valid() {
			out[string(p.Status)]++
		} else {
			out["unknown"]++
		}
	}
	return out
}

// BudgetTotals sums requested amounts per status, in cents.
type BudgetTotals struct {
	PendingCents  int64 `json:"pending_cents"`
	ApprovedCents int64 `json:"approved_cents"`
	RejectedCents int64 `json:"rejected_cents"`
	UnknownCents  int64 `json:"unknown_cents"`
}

func SumBudgets(requests []domain.BudgetRequest) BudgetTotals {
	var out BudgetTotals
	for _, r := range requests {
		amount := r.AmountCents
		if amount < 0 {
			amount = 0
		}
		switch r.Status {
		case domain.BudgetPending:
			out.PendingCents += amount
		case domain.BudgetApproved:
			out.ApprovedCents += amount
		case domain.BudgetRejected:
			out.RejectedCents += amount
		default:
			out.UnknownCents += amount
		}
	}
	return out
}
