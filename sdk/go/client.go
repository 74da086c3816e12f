// Package agencysdk is a small HTTP client for the agency API.
package agencysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one API base URL, for example http://127.0.0.1:8080/v1.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Identity is the API identity model.
type Identity struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// Project represents the API project model (partial).
type Project struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Department string     `json:"department"`
	Status     string     `json:"status"`
	Progress   int        `json:"progress"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	Assignees  []string   `json:"assignees"`
}

// Task represents the API task model (partial).
type Task struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Department string     `json:"department"`
	Status     string     `json:"status"`
	Priority   string     `json:"priority"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	ProjectID  *string    `json:"project_id,omitempty"`
	AssigneeID *string    `json:"assignee_id,omitempty"`
}

// Buckets is a department's project outcome counts.
type Buckets struct {
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`
	Unknown   int `json:"unknown"`
}

// Dashboard is the snapshot returned by GET /dashboard (partial).
type Dashboard struct {
	GeneratedAt       time.Time          `json:"generated_at"`
	TotalProjects     int                `json:"total_projects"`
	ActiveProjects    int                `json:"active_projects"`
	RecentlyCompleted int                `json:"recently_completed"`
	UpcomingDeadlines int                `json:"upcoming_deadlines"`
	TotalTasks        int                `json:"total_tasks"`
	OverdueTasks      int                `json:"overdue_tasks"`
	UpcomingTasks     []Task             `json:"upcoming_tasks"`
	Departments       map[string]Buckets `json:"departments"`
	AttendanceRate    int                `json:"attendance_rate"`
	Issues            []map[string]any   `json:"issues"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor int64   `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body has one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Login exchanges credentials for a token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (Identity, error) {
	var resp struct {
		Token    string   `json:"token"`
		Identity Identity `json:"identity"`
	}
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{"email": email, "password": password}, &resp)
	if err != nil {
		return Identity{}, err
	}
	c.Token = resp.Token
	return resp.Identity, nil
}

// Register creates an identity. Elevated roles need the client to be logged
// in as an admin or director.
func (c *Client) Register(ctx context.Context, name, email, password, role, department string) (Identity, error) {
	var resp Identity
	err := c.do(ctx, http.MethodPost, "auth/register", map[string]any{
		"name":       name,
		"email":      email,
		"password":   password,
		"role":       role,
		"department": department,
	}, &resp)
	return resp, err
}

// CreateProject creates a project in department.
func (c *Client) CreateProject(ctx context.Context, name, department string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", map[string]any{"name": name, "department": department}, &resp)
	return resp, err
}

// Projects lists the projects visible to the caller.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "projects", nil, &resp)
	return resp, err
}

// CreateTask creates a task under projectID.
func (c *Client) CreateTask(ctx context.Context, projectID, title, department string) (Task, error) {
	body := map[string]any{
		"title":      title,
		"department": department,
		"project_id": projectID,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// Dashboard returns the caller's dashboard snapshot.
func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var resp Dashboard
	err := c.do(ctx, http.MethodGet, "dashboard", nil, &resp)
	return resp, err
}

// EventsPage returns a page of events older than cursor; zero starts at the
// newest.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor int64) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor > 0 {
		q.Set("cursor", fmt.Sprint(cursor))
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
