// Package access decides which records an identity may see or act on.
//
// Every function is pure and total. A nil identity is the unauthenticated case
// and yields an empty collection or false. Returned slices are new and keep the
// input order.
package access

import (
	"time"

	"agencyops/internal/domain"
)

func hasRole(id *domain.Identity, roles ...domain.Role) bool {
	if id == nil {
		return false
	}
	for _, r := range roles {
		if id.Role == r {
			return true
		}
	}
	return false
}

func isDirector(id *domain.Identity) bool {
	return hasRole(id, domain.RoleDirector)
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// VisibleProjects returns the projects in the identity's department or assigned
// to it. Directors see every project.
func VisibleProjects(id *domain.Identity, projects []domain.Project) []domain.Project {
	if id == nil {
		return []domain.Project{}
	}
	if isDirector(id) {
		return filter(projects, func(domain.Project) bool { return true })
	}
	return filter(projects, func(p domain.Project) bool {
		return p.Department == id.Department || p.HasAssignee(id.ID)
	})
}

// VisibleTasks returns the tasks in the identity's department or assigned to it.
// Directors see every task.
func VisibleTasks(id *domain.Identity, tasks []domain.Task) []domain.Task {
	if id == nil {
		return []domain.Task{}
	}
	if isDirector(id) {
		return filter(tasks, func(domain.Task) bool { return true })
	}
	return filter(tasks, func(t domain.Task) bool {
		return t.Department == id.Department || t.AssignedTo(id.ID)
	})
}

// VisibleClients returns every client to an authenticated identity.
func VisibleClients(id *domain.Identity, clients []domain.Client) []domain.Client {
	if id == nil {
		return []domain.Client{}
	}
	return filter(clients, func(domain.Client) bool { return true })
}

// VisibleAnnouncements hides expired announcements.
func VisibleAnnouncements(id *domain.Identity, announcements []domain.Announcement, now time.Time) []domain.Announcement {
	if id == nil {
		return []domain.Announcement{}
	}
	return filter(announcements, func(a domain.Announcement) bool { return !a.Expired(now) })
}

// VisibleBudgetRequests: directors, admins and HR see all requests, everyone
// else sees their own department's.
func VisibleBudgetRequests(id *domain.Identity, requests []domain.BudgetRequest) []domain.BudgetRequest {
	if id == nil {
		return []domain.BudgetRequest{}
	}
	if hasRole(id, domain.RoleDirector, domain.RoleAdmin) || id.Department == domain.DepartmentHR {
		return filter(requests, func(domain.BudgetRequest) bool { return true })
	}
	return filter(requests, func(r domain.BudgetRequest) bool { return r.Department == id.Department })
}

func CanCreateProject(id *domain.Identity) bool {
	return hasRole(id, domain.RoleDirector, domain.RoleHead, domain.RoleAdmin)
}

// CanCreateProjectIn allows directors in any department, admins and heads in
// their own.
func CanCreateProjectIn(id *domain.Identity, department domain.Department) bool {
	if isDirector(id) {
		return true
	}
	return hasRole(id, domain.RoleAdmin, domain.RoleHead) && id.Department == department
}

func CanCreateClient(id *domain.Identity) bool {
	return hasRole(id, domain.RoleDirector, domain.RoleHead, domain.RoleAdmin)
}

func CanCreateAnnouncement(id *domain.Identity) bool {
	return hasRole(id, domain.RoleDirector, domain.RoleHead, domain.RoleAdmin)
}

// CanEditTask allows managers plus the task's assignee and creator.
func CanEditTask(id *domain.Identity, task domain.Task) bool {
	if id == nil {
		return false
	}
	if hasRole(id, domain.RoleAdmin, domain.RoleDirector, domain.RoleHead) {
		return true
	}
	return task.AssignedTo(id.ID) || (id.ID != "" && task.CreatedBy == id.ID)
}

// CanDeleteTask allows admins, directors and the task's creator.
func CanDeleteTask(id *domain.Identity, task domain.Task) bool {
	if id == nil {
		return false
	}
	if hasRole(id, domain.RoleAdmin, domain.RoleDirector) {
		return true
	}
	return id.ID != "" && task.CreatedBy == id.ID
}

// CanManageTeamSync gates the HR suite: admins, directors and anyone in HR.
func CanManageTeamSync(id *domain.Identity) bool {
	if id == nil {
		return false
	}
	return hasRole(id, domain.RoleAdmin, domain.RoleDirector) || id.Department == domain.DepartmentHR
}

func CanDecideBudgetRequest(id *domain.Identity) bool {
	return hasRole(id, domain.RoleDirector, domain.RoleAdmin)
}

func CanReadEvents(id *domain.Identity) bool {
	return hasRole(id, domain.RoleDirector, domain.RoleAdmin)
}

// EligibleAssignees returns identities in department plus every director.
func EligibleAssignees(pool []domain.Identity, department domain.Department) []domain.Identity {
	return filter(pool, func(i domain.Identity) bool {
		return i.Department == department || i.Role == domain.RoleDirector
	})
}

// CanEditProject: directors edit any project, admins and heads only their
// department's.
func CanEditProject(id *domain.Identity, project domain.Project) bool {
	if isDirector(id) {
		return true
	}
	return hasRole(id, domain.RoleAdmin, domain.RoleHead) && project.Department == id.Department
}

// CanCreateTask allows directors in any department and everyone else in their own.
func CanCreateTask(id *domain.Identity, department domain.Department) bool {
	if id == nil {
		return false
	}
	return isDirector(id) || id.Department == department
}

// CanRequestBudget allows directors for any department, admins and heads for
// their own.
func CanRequestBudget(id *domain.Identity, department domain.Department) bool {
	if isDirector(id) {
		return true
	}
	return hasRole(id, domain.RoleAdmin, domain.RoleHead) && id.Department == department
}

// CanRecordAttendance allows self-reporting and TeamSync managers.
func CanRecordAttendance(id *domain.Identity, identityID string) bool {
	if id == nil {
		return false
	}
	return (id.ID != "" && id.ID == identityID) || CanManageTeamSync(id)
}

// VisibleAttendance: TeamSync managers see every record, heads see their
// department's (departmentOf maps identity id to department), everyone else
// their own.
func VisibleAttendance(id *domain.Identity, records []domain.AttendanceRecord, departmentOf map[string]domain.Department) []domain.AttendanceRecord {
	if id == nil {
		return []domain.AttendanceRecord{}
	}
	if CanManageTeamSync(id) {
		return filter(records, func(domain.AttendanceRecord) bool { return true })
	}
	if hasRole(id, domain.RoleHead) {
		return filter(records, func(r domain.AttendanceRecord) bool {
			dept, ok := departmentOf[r.IdentityID]
			return r.IdentityID == id.ID || (ok && dept == id.Department)
		})
	}
	return filter(records, func(r domain.AttendanceRecord) bool { return r.IdentityID == id.ID })
}

func ownedOrManaged[T any](id *domain.Identity, items []T, owner func(T) string) []T {
	if id == nil {
		return []T{}
	}
	if CanManageTeamSync(id) {
		return filter(items, func(T) bool { return true })
	}
	return filter(items, func(it T) bool { return id.ID != "" && owner(it) == id.ID })
}

func VisibleContracts(id *domain.Identity, contracts []domain.Contract) []domain.Contract {
	return ownedOrManaged(id, contracts, func(c domain.Contract) string { return c.IdentityID })
}

func VisibleBenefits(id *domain.Identity, benefits []domain.Benefit) []domain.Benefit {
	return ownedOrManaged(id, benefits, func(b domain.Benefit) string { return b.IdentityID })
}

// VisibleReviews also shows reviewers the reviews they wrote.
func VisibleReviews(id *domain.Identity, reviews []domain.PerformanceReview) []domain.PerformanceReview {
	if id == nil {
		return []domain.PerformanceReview{}
	}
	if CanManageTeamSync(id) {
		return filter(reviews, func(domain.PerformanceReview) bool { return true })
	}
	return filter(reviews, func(r domain.PerformanceReview) bool {
		return id.ID != "" && (r.IdentityID == id.ID || r.ReviewerID == id.ID)
	})
}

// CanGrantRole: anyone may sign up as a member; higher roles are granted by
// admins and directors.
func CanGrantRole(id *domain.Identity, role domain.Role) bool {
	if role == domain.RoleMember {
		return true
	}
	return hasRole(id, domain.RoleAdmin, domain.RoleDirector)
}
