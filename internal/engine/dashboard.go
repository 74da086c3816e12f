package engine

import (
	"context"
	"time"

	"agencyops/internal/domain"
	"agencyops/internal/metrics"
	"agencyops/internal/repo"
)

// Windows returns the dashboard windows from config, falling back to the
// metrics defaults for unset values.
func (e Engine) Windows() metrics.Windows {
	w := metrics.DefaultWindows()
	d := e.cfg().Dashboard
	if d.RecentCompletedDays > 0 {
		w.RecentlyCompletedDays = d.RecentCompletedDays
	}
	if d.UpcomingDeadlineDays > 0 {
		w.UpcomingDeadlineDays = d.UpcomingDeadlineDays
	}
	if d.UpcomingTaskLimit > 0 {
		w.UpcomingTaskLimit = d.UpcomingTaskLimit
	}
	return w
}

// DashboardInput fetches every record set the identity may see.
func (e Engine) DashboardInput(ctx context.Context, id *domain.Identity) (metrics.Input, error) {
	var (
		in  metrics.Input
		err error
	)
	if in.Projects, err = e.ListProjects(ctx, id, repo.ProjectFilters{}); err != nil {
		return in, err
	}
	if in.Tasks, err = e.ListTasks(ctx, id, repo.TaskFilters{}); err != nil {
		return in, err
	}
	if in.Attendance, err = e.ListAttendance(ctx, id, repo.AttendanceFilters{}); err != nil {
		return in, err
	}
	if in.Budgets, err = e.ListBudgetRequests(ctx, id, ""); err != nil {
		return in, err
	}
	return in, nil
}

// Dashboard computes the snapshot over the identity's visible records. The
// validation error lists malformed records and is nil when all are clean; the
// snapshot is complete either way.
func (e Engine) Dashboard(ctx context.Context, id *domain.Identity) (metrics.Snapshot, *domain.ValidationError, error) {
	in, err := e.DashboardInput(ctx, id)
	if err != nil {
		return metrics.Snapshot{}, nil, err
	}
	snap, verr := metrics.Summarize(in, e.now(), e.Windows())
	return snap, verr, nil
}

func (e Engine) DepartmentBreakdown(ctx context.Context, id *domain.Identity) (map[domain.Department]metrics.Buckets, error) {
	projects, err := e.ListProjects(ctx, id, repo.ProjectFilters{})
	if err != nil {
		return nil, err
	}
	return metrics.DepartmentBreakdown(projects), nil
}

// UpcomingTasks lists the identity's next due tasks. A limit of zero or less
// uses the configured limit.
func (e Engine) UpcomingTasks(ctx context.Context, id *domain.Identity, limit int) ([]domain.Task, error) {
	tasks, err := e.ListTasks(ctx, id, repo.TaskFilters{})
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.Windows().UpcomingTaskLimit
	}
	return metrics.UpcomingTasks(tasks, e.now(), limit), nil
}

// AttendanceRate is the present percentage over the visible records between
// from and to, both optional and inclusive.
func (e Engine) AttendanceRate(ctx context.Context, id *domain.Identity, from, to *time.Time) (int, error) {
	records, err := e.ListAttendance(ctx, id, repo.AttendanceFilters{From: from, To: to})
	if err != nil {
		return 0, err
	}
	return metrics.AttendanceRate(records), nil
}
