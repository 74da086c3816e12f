package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"agencyops/internal/domain"
)

func strPtr(s string) *string { return &s }

func ident(id string, role domain.Role, dept domain.Department) *domain.Identity {
	return &domain.Identity{ID: id, Role: role, Department: dept}
}

func sampleProjects() []domain.Project {
	return []domain.Project{
		{ID: "p1", Department: domain.DepartmentAudiophiles},
		{ID: "p2", Department: domain.DepartmentVismasters, Assignees: []string{"u-member"}},
		{ID: "p3", Department: domain.DepartmentVismasters},
		{ID: "p4", Department: domain.DepartmentHR},
	}
}

func sampleTasks() []domain.Task {
	return []domain.Task{
		{ID: "t1", Department: domain.DepartmentAudiophiles, CreatedBy: "u-head"},
		{ID: "t2", Department: domain.DepartmentVismasters, AssigneeID: strPtr("u-member")},
		{ID: "t3", Department: domain.DepartmentVismasters, CreatedBy: "u-other"},
	}
}

func projectIDs(ps []domain.Project) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}

func taskIDs(ts []domain.Task) []string {
	ids := make([]string, 0, len(ts))
	for _, t := range ts {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestVisibleProjects(t *testing.T) {
	projects := sampleProjects()
	tests := []struct {
		name string
		id   *domain.Identity
		want []string
	}{
		{name: "director sees all", id: ident("u-dir", domain.RoleDirector, domain.DepartmentHR), want: []string{"p1", "p2", "p3", "p4"}},
		{name: "member sees department and assignments", id: ident("u-member", domain.RoleMember, domain.DepartmentAudiophiles), want: []string{"p1", "p2"}},
		{name: "head limited to department", id: ident("u-head", domain.RoleHead, domain.DepartmentVismasters), want: []string{"p2", "p3"}},
		{name: "admin is not cross-department", id: ident("u-admin", domain.RoleAdmin, domain.DepartmentHR), want: []string{"p4"}},
		{name: "nil identity sees nothing", id: nil, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VisibleProjects(tt.id, projects)
			assert.Equal(t, tt.want, projectIDs(got))
		})
	}
}

func TestVisibleProjectsSubsetAndDirectorEquality(t *testing.T) {
	projects := sampleProjects()
	ids := []*domain.Identity{
		nil,
		ident("u-member", domain.RoleMember, domain.DepartmentAudiophiles),
		ident("u-head", domain.RoleHead, domain.DepartmentHR),
		ident("u-dir", domain.RoleDirector, domain.DepartmentAudiophiles),
	}
	for _, id := range ids {
		got := VisibleProjects(id, projects)
		for _, p := range got {
			assert.Contains(t, projectIDs(projects), p.ID)
		}
		if id != nil && id.Role == domain.RoleDirector {
			assert.Equal(t, projects, got)
		}
	}
}

func TestVisibleProjectsDoesNotAliasInput(t *testing.T) {
	projects := sampleProjects()
	got := VisibleProjects(ident("d", domain.RoleDirector, domain.DepartmentHR), projects)
	got[0].ID = "changed"
	assert.Equal(t, "p1", projects[0].ID)
}

func TestVisibleTasksMemberExample(t *testing.T) {
	tasks := []domain.Task{
		{ID: "a", Department: domain.DepartmentAudiophiles},
		{ID: "v", Department: domain.DepartmentVismasters},
	}
	got := VisibleTasks(ident("m1", domain.RoleMember, domain.DepartmentAudiophiles), tasks)
	assert.Equal(t, []string{"a"}, taskIDs(got))
}

func TestVisibleTasks(t *testing.T) {
	tasks := sampleTasks()
	assert.Equal(t, []string{"t1", "t2", "t3"}, taskIDs(VisibleTasks(ident("d", domain.RoleDirector, domain.DepartmentHR), tasks)))
	assert.Equal(t, []string{"t1", "t2"}, taskIDs(VisibleTasks(ident("u-member", domain.RoleMember, domain.DepartmentAudiophiles), tasks)))
	assert.Empty(t, VisibleTasks(ident("x", domain.RoleMember, domain.DepartmentHR), tasks))
	assert.NotNil(t, VisibleTasks(nil, tasks))
	assert.Empty(t, VisibleTasks(nil, tasks))
}

func TestCreateCapabilities(t *testing.T) {
	cases := map[domain.Role]bool{
		domain.RoleAdmin:    true,
		domain.RoleDirector: true,
		domain.RoleHead:     true,
		domain.RoleMember:   false,
	}
	for role, want := range cases {
		id := ident("u", role, domain.DepartmentAudiophiles)
		assert.Equal(t, want, CanCreateProject(id), "project %s", role)
		assert.Equal(t, want, CanCreateClient(id), "client %s", role)
		assert.Equal(t, want, CanCreateAnnouncement(id), "announcement %s", role)
	}
}

func TestCanEditTask(t *testing.T) {
	task := domain.Task{ID: "t", CreatedBy: "creator", AssigneeID: strPtr("assignee")}
	tests := []struct {
		name string
		id   *domain.Identity
		want bool
	}{
		{"admin", ident("x", domain.RoleAdmin, domain.DepartmentHR), true},
		{"director", ident("x", domain.RoleDirector, domain.DepartmentHR), true},
		{"head", ident("x", domain.RoleHead, domain.DepartmentHR), true},
		{"assignee", ident("assignee", domain.RoleMember, domain.DepartmentHR), true},
		{"creator", ident("creator", domain.RoleMember, domain.DepartmentHR), true},
		{"other member", ident("x", domain.RoleMember, domain.DepartmentHR), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanEditTask(tt.id, task))
		})
	}
}

func TestCanDeleteTask(t *testing.T) {
	task := domain.Task{ID: "t", CreatedBy: "creator", AssigneeID: strPtr("assignee")}
	assert.True(t, CanDeleteTask(ident("x", domain.RoleAdmin, domain.DepartmentHR), task))
	assert.True(t, CanDeleteTask(ident("x", domain.RoleDirector, domain.DepartmentHR), task))
	assert.False(t, CanDeleteTask(ident("x", domain.RoleHead, domain.DepartmentHR), task))
	assert.False(t, CanDeleteTask(ident("assignee", domain.RoleMember, domain.DepartmentHR), task))
	assert.True(t, CanDeleteTask(ident("creator", domain.RoleMember, domain.DepartmentHR), task))
	assert.False(t, CanDeleteTask(nil, task))
}

func TestEmptyIDDoesNotMatchEmptyCreator(t *testing.T) {
	task := domain.Task{ID: "t"}
	assert.False(t, CanEditTask(&domain.Identity{Role: domain.RoleMember}, task))
	assert.False(t, CanDeleteTask(&domain.Identity{Role: domain.RoleMember}, task))
}

func TestNilIdentityFailsClosed(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.Empty(t, VisibleProjects(nil, sampleProjects()))
	assert.Empty(t, VisibleTasks(nil, sampleTasks()))
	assert.Empty(t, VisibleClients(nil, []domain.Client{{ID: "c"}}))
	assert.Empty(t, VisibleAnnouncements(nil, []domain.Announcement{{ID: "a"}}, now))
	assert.Empty(t, VisibleBudgetRequests(nil, []domain.BudgetRequest{{ID: "b"}}))
	assert.False(t, CanCreateProject(nil))
	assert.False(t, CanCreateClient(nil))
	assert.False(t, CanCreateAnnouncement(nil))
	assert.False(t, CanManageTeamSync(nil))
	assert.False(t, CanDecideBudgetRequest(nil))
	assert.False(t, CanReadEvents(nil))
}

func TestEligibleAssignees(t *testing.T) {
	pool := []domain.Identity{
		{ID: "a", Role: domain.RoleMember, Department: domain.DepartmentAudiophiles},
		{ID: "b", Role: domain.RoleMember, Department: domain.DepartmentVismasters},
		{ID: "c", Role: domain.RoleDirector, Department: domain.DepartmentHR},
		{ID: "d", Role: domain.RoleHead, Department: domain.DepartmentAudiophiles},
	}
	got := EligibleAssignees(pool, domain.DepartmentAudiophiles)
	ids := make([]string, 0, len(got))
	for _, i := range got {
		ids = append(ids, i.ID)
	}
	assert.Equal(t, []string{"a", "c", "d"}, ids)
}

func TestVisibleAnnouncementsHidesExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	anns := []domain.Announcement{
		{ID: "old", ExpiresAt: &past},
		{ID: "edge", ExpiresAt: &now},
		{ID: "live", ExpiresAt: &future},
		{ID: "forever"},
	}
	got := VisibleAnnouncements(ident("u", domain.RoleMember, domain.DepartmentHR), anns, now)
	ids := make([]string, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"live", "forever"}, ids)
}

func TestVisibleBudgetRequests(t *testing.T) {
	reqs := []domain.BudgetRequest{
		{ID: "1", Department: domain.DepartmentAudiophiles},
		{ID: "2", Department: domain.DepartmentVismasters},
	}
	assert.Len(t, VisibleBudgetRequests(ident("d", domain.RoleDirector, domain.DepartmentAudiophiles), reqs), 2)
	assert.Len(t, VisibleBudgetRequests(ident("h", domain.RoleMember, domain.DepartmentHR), reqs), 2)
	got := VisibleBudgetRequests(ident("m", domain.RoleHead, domain.DepartmentVismasters), reqs)
	assert.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}

func TestTeamSyncCapability(t *testing.T) {
	assert.True(t, CanManageTeamSync(ident("x", domain.RoleMember, domain.DepartmentHR)))
	assert.True(t, CanManageTeamSync(ident("x", domain.RoleAdmin, domain.DepartmentAudiophiles)))
	assert.False(t, CanManageTeamSync(ident("x", domain.RoleHead, domain.DepartmentAudiophiles)))
	assert.True(t, CanDecideBudgetRequest(ident("x", domain.RoleDirector, domain.DepartmentAudiophiles)))
	assert.False(t, CanDecideBudgetRequest(ident("x", domain.RoleHead, domain.DepartmentHR)))
}

func TestIdempotent(t *testing.T) {
	id := ident("u-member", domain.RoleMember, domain.DepartmentAudiophiles)
	assert.Equal(t, VisibleProjects(id, sampleProjects()), VisibleProjects(id, sampleProjects()))
	assert.Equal(t, VisibleTasks(id, sampleTasks()), VisibleTasks(id, sampleTasks()))
}

func TestCanEditProject(t *testing.T) {
	p := domain.Project{ID: "p", Department: domain.DepartmentVismasters}
	assert.True(t, CanEditProject(ident("d", domain.RoleDirector, domain.DepartmentHR), p))
	assert.True(t, CanEditProject(ident("h", domain.RoleHead, domain.DepartmentVismasters), p))
	assert.False(t, CanEditProject(ident("h", domain.RoleHead, domain.DepartmentAudiophiles), p))
	assert.True(t, CanEditProject(ident("a", domain.RoleAdmin, domain.DepartmentVismasters), p))
	assert.False(t, CanEditProject(ident("m", domain.RoleMember, domain.DepartmentVismasters), p))
	assert.False(t, CanEditProject(nil, p))
}

func TestCanCreateProjectIn(t *testing.T) {
	head := ident("h", domain.RoleHead, domain.DepartmentAudiophiles)
	assert.True(t, CanCreateProjectIn(head, domain.DepartmentAudiophiles))
	assert.False(t, CanCreateProjectIn(head, domain.DepartmentVismasters))
	assert.False(t, CanCreateProjectIn(ident("a", domain.RoleAdmin, domain.DepartmentHR), domain.DepartmentAdgenius))
	assert.True(t, CanCreateProjectIn(ident("d", domain.RoleDirector, domain.DepartmentHR), domain.DepartmentAdgenius))
	assert.False(t, CanCreateProjectIn(ident("m", domain.RoleMember, domain.DepartmentHR), domain.DepartmentHR))
	assert.False(t, CanCreateProjectIn(nil, domain.DepartmentHR))

	// whatever a head may create, they may also edit
	for _, d := range domain.Departments {
		if CanCreateProjectIn(head, d) {
			assert.True(t, CanEditProject(head, domain.Project{Department: d}))
		}
	}
}

func TestCanCreateTaskAndRequestBudget(t *testing.T) {
	member := ident("m", domain.RoleMember, domain.DepartmentAdgenius)
	assert.True(t, CanCreateTask(member, domain.DepartmentAdgenius))
	assert.False(t, CanCreateTask(member, domain.DepartmentHR))
	assert.True(t, CanCreateTask(ident("d", domain.RoleDirector, domain.DepartmentHR), domain.DepartmentAdgenius))
	assert.False(t, CanCreateTask(nil, domain.DepartmentHR))

	assert.False(t, CanRequestBudget(member, domain.DepartmentAdgenius))
	assert.True(t, CanRequestBudget(ident("h", domain.RoleHead, domain.DepartmentAdgenius), domain.DepartmentAdgenius))
	assert.False(t, CanRequestBudget(ident("h", domain.RoleHead, domain.DepartmentAdgenius), domain.DepartmentHR))
	assert.True(t, CanRequestBudget(ident("d", domain.RoleDirector, domain.DepartmentHR), domain.DepartmentAdgenius))
}

func TestVisibleAttendance(t *testing.T) {
	records := []domain.AttendanceRecord{
		{ID: "1", IdentityID: "m1"},
		{ID: "2", IdentityID: "m2"},
		{ID: "3", IdentityID: "h1"},
	}
	depts := map[string]domain.Department{
		"m1": domain.DepartmentAudiophiles,
		"m2": domain.DepartmentVismasters,
		"h1": domain.DepartmentAudiophiles,
	}
	ids := func(rs []domain.AttendanceRecord) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}
	assert.Equal(t, []string{"1"}, ids(VisibleAttendance(ident("m1", domain.RoleMember, domain.DepartmentAudiophiles), records, depts)))
	assert.Equal(t, []string{"1", "3"}, ids(VisibleAttendance(ident("h1", domain.RoleHead, domain.DepartmentAudiophiles), records, depts)))
	assert.Equal(t, []string{"1", "2", "3"}, ids(VisibleAttendance(ident("hr", domain.RoleMember, domain.DepartmentHR), records, depts)))
	assert.Empty(t, VisibleAttendance(nil, records, depts))

	assert.True(t, CanRecordAttendance(ident("m1", domain.RoleMember, domain.DepartmentAudiophiles), "m1"))
	assert.False(t, CanRecordAttendance(ident("m1", domain.RoleMember, domain.DepartmentAudiophiles), "m2"))
	assert.True(t, CanRecordAttendance(ident("hr", domain.RoleMember, domain.DepartmentHR), "m2"))
}

func TestVisibleHRRecords(t *testing.T) {
	contracts := []domain.Contract{{ID: "c1", IdentityID: "m1"}, {ID: "c2", IdentityID: "m2"}}
	reviews := []domain.PerformanceReview{{ID: "r1", IdentityID: "m2", ReviewerID: "m1"}, {ID: "r2", IdentityID: "m3", ReviewerID: "h"}}
	member := ident("m1", domain.RoleMember, domain.DepartmentAudiophiles)

	got := VisibleContracts(member, contracts)
	assert.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)
	assert.Len(t, VisibleContracts(ident("x", domain.RoleAdmin, domain.DepartmentAudiophiles), contracts), 2)
	assert.Empty(t, VisibleBenefits(member, []domain.Benefit{{ID: "b", IdentityID: "m2"}}))

	gotReviews := VisibleReviews(member, reviews)
	assert.Len(t, gotReviews, 1)
	assert.Equal(t, "r1", gotReviews[0].ID)
	assert.Empty(t, VisibleReviews(&domain.Identity{Role: domain.RoleMember}, []domain.PerformanceReview{{ID: "r"}}))
}

func TestCanGrantRole(t *testing.T) {
	assert.True(t, CanGrantRole(nil, domain.RoleMember))
	assert.False(t, CanGrantRole(nil, domain.RoleHead))
	assert.False(t, CanGrantRole(ident("h", domain.RoleHead, domain.DepartmentHR), domain.RoleAdmin))
	assert.True(t, CanGrantRole(ident("a", domain.RoleAdmin, domain.DepartmentHR), domain.RoleDirector))
}
