package metrics

import (
	"strconv"
	"time"

	"agencyops/internal/domain"
)

// ValidateProjects reports every project with an unknown status or department
// or a progress outside 0..100. It returns nil when all records are clean.
func ValidateProjects(projects []domain.Project) *domain.ValidationError {
	verr := &domain.ValidationError{}
	for _, p := range projects {
		if !p.Status.Valid() {
			verr.Add("project", p.ID, "status", "unknown status "+strconv.Quote(string(p.Status)))
		}
		if !p.Department.Valid() {
			verr.Add("project", p.ID, "department", "unknown department "+strconv.Quote(string(p.Department)))
		}
		if p.Progress < 0 || p.Progress > 100 {
			verr.Add("project", p.ID, "progress", "must be between 0 and 100")
		}
	}
	return nilIfEmpty(verr)
}

// ValidateTasks reports tasks with an unknown status, priority or department.
func ValidateTasks(tasks []domain.Task) *domain.ValidationError {
	verr := &domain.ValidationError{}
	for _, t := range tasks {
		if !t.Status.Valid() {
			verr.Add("task", t.ID, "status", "unknown status "+strconv.Quote(string(t.Status)))
		}
		if !t.Priority.Valid() {
			verr.Add("task", t.ID, "priority", "unknown priority "+strconv.Quote(string(t.Priority)))
		}
		if !t.Department.Valid() {
			verr.Add("task", t.ID, "department", "unknown department "+strconv.Quote(string(t.Department)))
		}
	}
	return nilIfEmpty(verr)
}

func ValidateAttendance(records []domain.AttendanceRecord) *domain.ValidationError {
	verr := &domain.ValidationError{}
	for _, r := range records {
		if !r.Status.Valid() {
			verr.Add("attendance", r.ID, "status", "unknown status "+strconv.Quote(string(r.Status)))
		}
	}
	return nilIfEmpty(verr)
}

func nilIfEmpty(v *domain.ValidationError) *domain.ValidationError {
	if v == nil || len(v.Issues) == 0 {
		return nil
	}
	return v
}

// Windows configures the time windows used by Summarize.
type Windows struct {
	RecentlyCompletedDays int
	UpcomingDeadlineDays  int
	UpcomingTaskLimit     int
}

// DefaultWindows returns the 30 day / 7 day / 5 task defaults.
func DefaultWindows() Windows {
	return Windows{
		RecentlyCompletedDays: DefaultRecentlyCompletedDays,
		UpcomingDeadlineDays:  DefaultUpcomingDeadlineDays,
		UpcomingTaskLimit:     DefaultUpcomingTaskLimit,
	}
}

// Input is the already-filtered record set a snapshot is computed from.
type Input struct {
	Projects   []domain.Project
	Tasks      []domain.Task
	Attendance []domain.AttendanceRecord
	Budgets    []domain.BudgetRequest
}

type Snapshot struct {
	GeneratedAt         time.Time                     `json:"generated_at"`
	TotalProjects       int                           `json:"total_projects"`
	ActiveProjects      int                           `json:"active_projects"`
	RecentlyCompleted   int                           `json:"recently_completed"`
	UpcomingDeadlines   int                           `json:"upcoming_deadlines"`
	TotalTasks          int                           `json:"total_tasks"`
	OverdueTasks        int                           `json:"overdue_tasks"`
	UpcomingTasks       []domain.Task                 `json:"upcoming_tasks"`
	Departments         map[domain.Department]Buckets `json:"departments"`
	ProjectStatusCounts map[string]int                `json:"project_status_counts"`
	TaskStatusCounts    map[string]int                `json:"task_status_counts"`
	AttendanceRate      int                           `json:"attendance_rate"`
	Budgets             BudgetTotals                  `json:"budgets"`
}

// Summarize builds the full dashboard snapshot. The snapshot is always
// complete; malformed records land in unknown buckets and are also reported
// through the returned validation error, which is nil when the input is clean.
func Summarize(in Input, now time.Time, w Windows) (Snapshot, *domain.ValidationError) {
	snap := Snapshot{
		GeneratedAt:         now,
		TotalProjects:       len(in.Projects),
		ActiveProjects:      CountActiveProjects(in.Projects),
		RecentlyCompleted:   CountRecentlyCompleted(in.Projects, now, w.RecentlyCompletedDays),
		UpcomingDeadlines:   CountUpcomingDeadlines(in.Projects, now, w.UpcomingDeadlineDays),
		TotalTasks:          len(in.Tasks),
		OverdueTasks:        CountOverdueTasks(in.Tasks, now),
		UpcomingTasks:       UpcomingTasks(in.Tasks, now, w.UpcomingTaskLimit),
		Departments:         DepartmentBreakdown(in.Projects),
		ProjectStatusCounts: ProjectStatusCounts(in.Projects),
		TaskStatusCounts:    TaskStatusCounts(in.Tasks),
		AttendanceRate:      AttendanceRate(in.Attendance),
		Budgets:             SumBudgets(in.Budgets),
	}

	verr := &domain.ValidationError{}
	verr.Merge(ValidateProjects(in.Projects))
	verr.Merge(ValidateTasks(in.Tasks))
	verr.Merge(ValidateAttendance(in.Attendance))
	return snap, nilIfEmpty(verr)
}
