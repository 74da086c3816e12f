package domain

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDirector Role = "director"
	RoleHead     Role = "head"
	RoleMember   Role = "member"
)

// Roles lists every role an identity may hold.
var Roles = []Role{RoleAdmin, RoleDirector, RoleHead, RoleMember}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDirector, RoleHead, RoleMember:
		return true
	}
	return false
}

type Department string

const (
	DepartmentAudiophiles Department = "Audiophiles"
	DepartmentVismasters  Department = "Vismasters"
	DepartmentAdgenius    Department = "Adgenius"
	DepartmentHR          Department = "HR"

	// DepartmentUnknown keys records whose department is outside the enumeration.
	DepartmentUnknown Department = "unknown"
)

// Departments is the fixed enumeration in display order.
var Departments = []Department{DepartmentAudiophiles, DepartmentVismasters, DepartmentAdgenius, DepartmentHR}

func (d Department) Valid() bool {
	switch d {
	case DepartmentAudiophiles, DepartmentVismasters, DepartmentAdgenius, DepartmentHR:
		return true
	}
	return false
}

// Identity is the authenticated actor. A nil *Identity means unauthenticated.
type Identity struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       Role       `json:"role" enum:"admin,director,head,member"`
	Department Department `json:"department" enum:"Audiophiles,Vismasters,Adgenius,HR"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectReview     ProjectStatus = "review"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectOnHold     ProjectStatus = "on-hold"
	ProjectFailed     ProjectStatus = "failed"
	ProjectCanceled   ProjectStatus = "canceled"
)

var ProjectStatuses = []ProjectStatus{
	ProjectPlanning, ProjectInProgress, ProjectReview, ProjectCompleted, ProjectOnHold, ProjectFailed, ProjectCanceled,
}

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectInProgress, ProjectReview, ProjectCompleted, ProjectOnHold, ProjectFailed, ProjectCanceled:
		return true
	}
	return false
}

type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Department  Department    `json:"department"`
	Status      ProjectStatus `json:"status"`
	Progress    int           `json:"progress"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	Assignees   []string      `json:"assignees"`
	ClientID    *string       `json:"client_id,omitempty"`
	CreatedBy   string        `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// HasAssignee reports whether identityID is in the assignee list.
func (p Project) HasAssignee(identityID string) bool {
	for _, a := range p.Assignees {
		if a == identityID {
			return true
		}
	}
	return false
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskReview     TaskStatus = "review"
	TaskCompleted  TaskStatus = "completed"
)

var TaskStatuses = []TaskStatus{TaskTodo, TaskInProgress, TaskReview, TaskCompleted}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskReview, TaskCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Department  Department `json:"department"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	ProjectID   *string    `json:"project_id,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AssignedTo reports whether the task is assigned to identityID.
func (t Task) AssignedTo(identityID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == identityID
}

// TaskDependency is a directed edge: Dependent cannot finish before Parent.
type TaskDependency struct {
	ParentTaskID    string `json:"parent_task_id"`
	DependentTaskID string `json:"dependent_task_id"`
}

type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Company   string    `json:"company,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type Announcement struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Important bool       `json:"important"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

// Expired reports whether the announcement has an expiry at or before now.
func (a Announcement) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && !a.ExpiresAt.After(now)
}

type Event struct {
	ID         int64     `json:"id"`
	TS         time.Time `json:"ts"`
	Type       string    `json:"type"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	Payload    string    `json:"payload_json"`
}
