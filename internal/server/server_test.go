package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"agencyops/internal/chat"
	"agencyops/internal/config"
	"agencyops/internal/db"
	"agencyops/internal/domain"
	"agencyops/internal/engine"
	"agencyops/internal/migrate"
	"agencyops/internal/session"
)

type testServer struct {
	URL      string
	Engine   engine.Engine
	Sessions *session.Provider
	client   *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	_, err = migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)

	e := engine.New(conn, config.Default())
	sessions := session.New(conn, "test-secret", time.Hour)
	sessions.Cost = bcrypt.MinCost
	handler, err := New(Config{
		Engine:   e,
		Sessions: sessions,
		Chat:     chat.NewBus(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		conn.Close()
	})
	return &testServer{URL: srv.URL + "/v1", Engine: e, Sessions: sessions, client: srv.Client()}
}

func (s *testServer) do(t *testing.T, method, route, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+route, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := s.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

// register signs up through the API with the given bearer and logs the new
// identity in.
func (s *testServer) register(t *testing.T, by, name string, role domain.Role, dept domain.Department) (domain.Identity, string) {
	t.Helper()
	res, data := s.do(t, http.MethodPost, "/auth/register", by, map[string]any{
		"name":       name,
		"email":      name + "@agency.test",
		"password":   "correct-horse",
		"role":       role,
		"department": dept,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var id domain.Identity
	require.NoError(t, json.Unmarshal(data, &id))

	res, data = s.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    name + "@agency.test",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var sess session.Session
	require.NoError(t, json.Unmarshal(data, &sess))
	require.NotEmpty(t, sess.Token)
	return id, sess.Token
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env
}

func TestHealthAndAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	res, data := srv.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodGet, "/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", decodeError(t, data).Error.Code)

	res, data = srv.do(t, http.MethodGet, "/projects", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_credentials", decodeError(t, data).Error.Code)
}

func TestRegisterRoleElevation(t *testing.T) {
	srv := newTestServer(t)

	_, directorToken := srv.register(t, "", "dana", domain.RoleDirector, domain.DepartmentHR)

	res, data := srv.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"name": "eve", "email": "eve@agency.test", "password": "correct-horse",
		"role": domain.RoleHead, "department": domain.DepartmentVismasters,
	})
	assert.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	head, _ := srv.register(t, directorToken, "hana", domain.RoleHead, domain.DepartmentVismasters)
	assert.Equal(t, domain.RoleHead, head.Role)

	member, memberToken := srv.register(t, "", "milo", domain.RoleMember, domain.DepartmentVismasters)
	res, data = srv.do(t, http.MethodGet, "/auth/me", memberToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var me domain.Identity
	require.NoError(t, json.Unmarshal(data, &me))
	assert.Equal(t, member.ID, me.ID)

	res, _ = srv.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": "milo@agency.test", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestLogoutRevokesToken(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.register(t, "", "dana", domain.RoleDirector, domain.DepartmentHR)

	res, _ := srv.do(t, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res, _ = srv.do(t, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestProjectErrorsMapToStatus(t *testing.T) {
	srv := newTestServer(t)
	_, directorToken := srv.register(t, "", "dana", domain.RoleDirector, domain.DepartmentHR)
	_, headToken := srv.register(t, directorToken, "hana", domain.RoleHead, domain.DepartmentAudiophiles)
	_, memberToken := srv.register(t, "", "milo", domain.RoleMember, domain.DepartmentAudiophiles)
	_, outsiderToken := srv.register(t, "", "otto", domain.RoleMember, domain.DepartmentAdgenius)

	res, data := srv.do(t, http.MethodPost, "/projects", memberToken, map[string]any{
		"name": "Podcast", "department": domain.DepartmentAudiophiles,
	})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "forbidden", decodeError(t, data).Error.Code)

	res, data = srv.do(t, http.MethodPost, "/projects", headToken, map[string]any{
		"name": "Elsewhere", "department": domain.DepartmentVismasters,
	})
	assert.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/projects", headToken, map[string]any{
		"name": "  ", "department": domain.DepartmentAudiophiles, "progress": 120,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(data))
	env := decodeError(t, data)
	assert.Equal(t, "validation_failed", env.Error.Code)
	assert.Contains(t, env.Error.Details, "issues")

	res, data = srv.do(t, http.MethodPost, "/projects", headToken, map[string]any{
		"name": "Podcast", "department": domain.DepartmentAudiophiles,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var p domain.Project
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, domain.ProjectPlanning, p.Status)

	res, _ = srv.do(t, http.MethodGet, "/projects/"+p.ID, memberToken, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, data = srv.do(t, http.MethodGet, "/projects/"+p.ID, outsiderToken, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, data).Error.Code)

	res, data = srv.do(t, http.MethodGet, "/projects", outsiderToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `[]`, string(data))
}

func TestDependencyCycleConflict(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.register(t, "", "dana", domain.RoleDirector, domain.DepartmentHR)

	res, data := srv.do(t, http.MethodPost, "/projects", token, map[string]any{
		"name": "Campaign", "department": domain.DepartmentAdgenius,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var p domain.Project
	require.NoError(t, json.Unmarshal(data, &p))

	newTask := func(title string) domain.Task {
		res, data := srv.do(t, http.MethodPost, "/tasks", token, map[string]any{
			"title": title, "department": domain.DepartmentAdgenius, "project_id": p.ID,
		})
		require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
		var task domain.Task
		require.NoError(t, json.Unmarshal(data, &task))
		return task
	}
	a := newTask("Brief")
	b := newTask("Storyboard")

	res, data = srv.do(t, http.MethodPost, "/tasks/"+b.ID+"/dependencies", token, map[string]any{"parent_task_id": a.ID})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/tasks/"+b.ID+"/dependencies", token, map[string]any{"parent_task_id": a.ID})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "conflict", decodeError(t, data).Error.Code)

	res, data = srv.do(t, http.MethodPost, "/tasks/"+a.ID+"/dependencies", token, map[string]any{"parent_task_id": b.ID})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	env := decodeError(t, data)
	assert.Equal(t, "dependency_cycle", env.Error.Code)
	assert.Len(t, env.Error.Details["path"], 3)

	res, data = srv.do(t, http.MethodGet, "/tasks/"+a.ID+"/dependencies", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var edges []domain.TaskDependency
	require.NoError(t, json.Unmarshal(data, &edges))
	assert.Len(t, edges, 1)

	res, _ = srv.do(t, http.MethodDelete, "/tasks/"+b.ID+"/dependencies/"+a.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestDashboardAndAttendance(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.register(t, "", "dana", domain.RoleDirector, domain.DepartmentHR)

	res, data := srv.do(t, http.MethodPost, "/projects", token, map[string]any{
		"name": "Jingle", "department": domain.DepartmentAudiophiles, "status": "in-progress",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/attendance", token, map[string]any{
		"date": "2024-06-14T00:00:00Z", "status": domain.AttendancePresent,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodGet, "/dashboard", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var dash DashboardResponse
	require.NoError(t, json.Unmarshal(data, &dash))
	assert.Equal(t, 1, dash.TotalProjects)
	assert.Equal(t, 1, dash.ActiveProjects)
	assert.Equal(t, 100, dash.AttendanceRate)
	assert.Empty(t, dash.Issues)
	assert.Len(t, dash.Departments, len(domain.Departments))

	res, data = srv.do(t, http.MethodGet, "/attendance/rate?from=2024-06-01&to=2024-06-30", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var rate map[string]any
	require.NoError(t, json.Unmarshal(data, &rate))
	assert.EqualValues(t, 100, rate["rate"])

	res, data = srv.do(t, http.MethodGet, "/attendance?from=June", token, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "bad_request", decodeError(t, data).Error.Code)

	res, data = srv.do(t, http.MethodGet, "/dashboard/departments", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), `"Audiophiles":{"active":1`)
}

func TestBudgetDecisionFlow(t *testing.T) {
	srv := newTestServer(t)
	_, directorToken := srv.register(t, "", "dana", domain.RoleDirector, domain.DepartmentHR)
	_, headToken := srv.register(t, directorToken, "hana", domain.RoleHead, domain.DepartmentVismasters)

	res, data := srv.do(t, http.MethodPost, "/teamsync/budget-requests", headToken, map[string]any{
		"department": domain.DepartmentVismasters, "title": "Cameras", "amount_cents": 250000,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var req domain.BudgetRequest
	require.NoError(t, json.Unmarshal(data, &req))

	res, _ = srv.do(t, http.MethodPost, "/teamsync/budget-requests/"+req.ID+"/decision", headToken, map[string]any{"approve": true})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, data = srv.do(t, http.MethodPost, "/teamsync/budget-requests/"+req.ID+"/decision", directorToken, map[string]any{"approve": true})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/teamsync/budget-requests/"+req.ID+"/decision", directorToken, map[string]any{"approve": false})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "invalid_state", decodeError(t, data).Error.Code)
}

func TestChatRoutes(t *testing.T) {
	srv := newTestServer(t)
	alice, aliceToken := srv.register(t, "", "alice", domain.RoleMember, domain.DepartmentAdgenius)
	_, bobToken := srv.register(t, "", "bob", domain.RoleMember, domain.DepartmentAdgenius)

	res, data := srv.do(t, http.MethodPost, "/chat/messages", aliceToken, map[string]any{"content": "standup in 5"})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, _ = srv.do(t, http.MethodPost, "/chat/messages", bobToken, map[string]any{"content": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res, data = srv.do(t, http.MethodGet, "/chat/messages", bobToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var msgs []chat.Message
	require.NoError(t, json.Unmarshal(data, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, alice.ID, msgs[0].From)
}

func TestEventsPagination(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.register(t, "", "dana", domain.RoleDirector, domain.DepartmentHR)
	for _, name := range []string{"Acme", "Globex", "Initech"} {
		res, data := srv.do(t, http.MethodPost, "/clients", token, map[string]any{"name": name})
		require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	}

	res, data := srv.do(t, http.MethodGet, "/events?entity_kind=client&limit=2", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var page paginatedEvents
	require.NoError(t, json.Unmarshal(data, &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Initech", page.Items[0].Payload["name"])
	require.NotZero(t, page.NextCursor)

	res, data = srv.do(t, http.MethodGet, "/events?entity_kind=client&limit=2&cursor="+strconv.FormatInt(page.NextCursor, 10), token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var last paginatedEvents
	require.NoError(t, json.Unmarshal(data, &last))
	require.Len(t, last.Items, 1)
	assert.Equal(t, "Acme", last.Items[0].Payload["name"])
	assert.Zero(t, last.NextCursor)
}

func TestOpenAPIDocument(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.do(t, http.MethodGet, "/openapi.json", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc["paths"], "/v1/dashboard")
}

func TestWebhookDispatcher(t *testing.T) {
	srv := newTestServer(t)

	var (
		mu       sync.Mutex
		received []webhookEvent
		sigs     []string
	)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var evt webhookEvent
		_ = json.Unmarshal(body, &evt)
		mu.Lock()
		received = append(received, evt)
		sigs = append(sigs, r.Header.Get("X-Agency-Signature"))
		mu.Unlock()
		assert.Equal(t, signature("s3cret", body), r.Header.Get("X-Agency-Signature"))
	}))
	t.Cleanup(receiver.Close)

	_, token := srv.register(t, "", "dana", domain.RoleDirector, domain.DepartmentHR)

	d := NewWebhookDispatcher(srv.Engine.Repo, []config.WebhookConfig{
		{URL: receiver.URL, Events: []string{"client.created"}, Secret: "s3cret"},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	d.Prime(ctx)

	res, data := srv.do(t, http.MethodPost, "/clients", token, map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	res, _ = srv.do(t, http.MethodPost, "/announcements", token, map[string]any{"title": "Hi", "content": "Welcome"})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	d.DispatchOnce(ctx)
	d.DispatchOnce(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1, "registration happened before priming and announcements are filtered")
	assert.Equal(t, "client.created", received[0].Type)
	assert.JSONEq(t, `{"name":"Acme"}`, string(received[0].Payload))
	assert.NotEmpty(t, sigs[0])
}
