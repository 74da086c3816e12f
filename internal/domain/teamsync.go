package domain

import "time"

type AttendanceStatus string

const (
	AttendancePresent     AttendanceStatus = "present"
	AttendanceRemote      AttendanceStatus = "remote"
	AttendanceLate        AttendanceStatus = "late"
	AttendanceAbsent      AttendanceStatus = "absent"
	AttendanceLeave       AttendanceStatus = "leave"
	AttendanceNotRecorded AttendanceStatus = "not-recorded"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceRemote, AttendanceLate, AttendanceAbsent, AttendanceLeave, AttendanceNotRecorded:
		return true
	}
	return false
}

type AttendanceRecord struct {
	ID         string           `json:"id"`
	IdentityID string           `json:"identity_id"`
	Date       time.Time        `json:"date"`
	Status     AttendanceStatus `json:"status"`
	Note       string           `json:"note,omitempty"`
}

type PostingStatus string

const (
	PostingOpen   PostingStatus = "open"
	PostingClosed PostingStatus = "closed"
)

type JobPosting struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Department Department    `json:"department"`
	Status     PostingStatus `json:"status"`
	CreatedBy  string        `json:"created_by"`
	CreatedAt  time.Time     `json:"created_at"`
}

type CandidateStage string

const (
	StageApplied   CandidateStage = "applied"
	StageScreening CandidateStage = "screening"
	StageInterview CandidateStage = "interview"
	StageOffer     CandidateStage = "offer"
	StageHired     CandidateStage = "hired"
	StageRejected  CandidateStage = "rejected"
)

func (s CandidateStage) Valid() bool {
	switch s {
	case StageApplied, StageScreening, StageInterview, StageOffer, StageHired, StageRejected:
		return true
	}
	return false
}

type Candidate struct {
	ID        string         `json:"id"`
	PostingID string         `json:"posting_id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Stage     CandidateStage `json:"stage"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type ContractKind string

const (
	ContractFullTime   ContractKind = "full-time"
	ContractPartTime   ContractKind = "part-time"
	ContractContractor ContractKind = "contractor"
	ContractIntern     ContractKind = "intern"
)

type Contract struct {
	ID          string       `json:"id"`
	IdentityID  string       `json:"identity_id"`
	Kind        ContractKind `json:"kind"`
	StartsAt    time.Time    `json:"starts_at"`
	EndsAt      *time.Time   `json:"ends_at,omitempty"`
	SalaryCents int64        `json:"salary_cents"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
}

type Benefit struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	Name       string    `json:"name"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

type PerformanceReview struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	ReviewerID string    `json:"reviewer_id"`
	Period     string    `json:"period"`
	Rating     int       `json:"rating"`
	Summary    string    `json:"summary,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type BudgetStatus string

const (
	BudgetPending  BudgetStatus = "pending"
	BudgetApproved BudgetStatus = "approved"
	BudgetRejected BudgetStatus = "rejected"
)

func (s BudgetStatus) Valid() bool {
	switch s {
	case BudgetPending, BudgetApproved, BudgetRejected:
		return true
	}
	return false
}

type BudgetRequest struct {
	ID          string       `json:"id"`
	Department  Department   `json:"department"`
	Title       string       `json:"title"`
	AmountCents int64        `json:"amount_cents"`
	Status      BudgetStatus `json:"status"`
	RequestedBy string       `json:"requested_by"`
	DecidedBy   *string      `json:"decided_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	DecidedAt   *time.Time   `json:"decided_at,omitempty"`
}
