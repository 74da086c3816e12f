package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"agencyops/internal/chat"
	"agencyops/internal/depgraph"
	"agencyops/internal/domain"
	"agencyops/internal/engine"
	"agencyops/internal/metrics"
	"agencyops/internal/repo"
	"agencyops/internal/session"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Sessions *session.Provider
	Chat     *chat.Bus
	BasePath string
	Logger   *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"forbidden"`
	Message string         `json:"message" example:"not allowed to create projects"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the agency API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("server: session provider required")
	}
	if cfg.Chat == nil {
		cfg.Chat = chat.NewBus()
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// schema errors are malformed requests; 422 is kept for domain validation
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(cfg.logger()))
	router.Use(newAuthMiddleware(basePath, cfg.Sessions, cfg.logger()))

	hcfg := huma.DefaultConfig("Agency Ops API", "1.0.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAuth(group, cfg.Sessions)
	registerIdentities(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerClients(group, cfg.Engine)
	registerAnnouncements(group, cfg.Engine)
	registerDashboard(group, cfg.Engine)
	registerAttendance(group, cfg.Engine)
	registerTeamSync(group, cfg.Engine)
	registerChat(group, cfg.Chat)
	registerEvents(group, cfg.Engine)
	registerSettings(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

// requestLogger logs one line per request at info, or warn for 5xx.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			log.LogAttrs(r.Context(), level, "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), map[string]any{"issues": verr.Issues})
	}
	var fe domain.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"action": fe.Action})
	}
	var ce *depgraph.CycleError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, "dependency_cycle", err.Error(), map[string]any{"path": ce.Path})
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, repo.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, engine.ErrInvalidState):
		return newAPIError(http.StatusConflict, "invalid_state", err.Error(), nil)
	case errors.Is(err, session.ErrInvalidCredentials), errors.Is(err, session.ErrInvalidToken):
		return newAPIError(http.StatusUnauthorized, "invalid_credentials", err.Error(), nil)
	case errors.Is(err, session.ErrRoleNotGranted):
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get(path.Join(basePath, "docs"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			doc, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	public := publicPaths(basePath)
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if public[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Agency Ops API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; from POST /auth/login.
    </p>
  </body>
</html>`, specURL)
}

// out wraps a response body.
type out[T any] struct {
	Body T `json:"body"`
}

func respond[T any](v T) *out[T] {
	return &out[T]{Body: v}
}

// writeErrors lists the statuses a write operation may answer with.
var writeErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*out[map[string]string], error) {
		return respond(map[string]string{"status": "ok"}), nil
	})
}

func registerIdentities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-identities",
		Method:      http.MethodGet,
		Path:        "/identities",
		Summary:     "List identities, or eligible assignees for a department",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Department string `query:"department" enum:"Audiophiles,Vismasters,Adgenius,HR"`
	}) (*out[[]domain.Identity], error) {
		id := identityFromContext(ctx)
		items, err := e.ListIdentities(ctx, id, domain.Department(input.Department))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body engine.ProjectCreateOptions `json:"body"`
	}) (*out[domain.Project], error) {
		p, err := e.CreateProject(ctx, identityFromContext(ctx), input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List visible projects",
	}, func(ctx context.Context, input *struct {
		Department string `query:"department"`
		Status     string `query:"status"`
		ClientID   string `query:"client_id"`
	}) (*out[[]domain.Project], error) {
		items, err := e.ListProjects(ctx, identityFromContext(ctx), repo.ProjectFilters{
			Department: domain.Department(input.Department),
			Status:     domain.ProjectStatus(input.Status),
			ClientID:   input.ClientID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*out[domain.Project], error) {
		p, err := e.GetProject(ctx, identityFromContext(ctx), input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string                      `path:"project_id"`
		Body      engine.ProjectUpdateOptions `json:"body"`
	}) (*out[domain.Project], error) {
		p, err := e.UpdateProject(ctx, identityFromContext(ctx), input.ProjectID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p), nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body engine.TaskCreateOptions `json:"body"`
	}) (*out[domain.Task], error) {
		t, err := e.CreateTask(ctx, identityFromContext(ctx), input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List visible tasks",
	}, func(ctx context.Context, input *struct {
		Department string `query:"department"`
		Status     string `query:"status"`
		ProjectID  string `query:"project_id"`
		AssigneeID string `query:"assignee_id"`
	}) (*out[[]domain.Task], error) {
		items, err := e.ListTasks(ctx, identityFromContext(ctx), repo.TaskFilters{
			Department: domain.Department(input.Department),
			Status:     domain.TaskStatus(input.Status),
			ProjectID:  input.ProjectID,
			AssigneeID: input.AssigneeID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string                   `path:"task_id"`
		Body   engine.TaskUpdateOptions `json:"body"`
	}) (*out[domain.Task], error) {
		t, err := e.UpdateTask(ctx, identityFromContext(ctx), input.TaskID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{task_id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct{}, error) {
		if err := e.DeleteTask(ctx, identityFromContext(ctx), input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-dependencies",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/dependencies",
		Summary:     "List dependency edges touching a task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*out[[]domain.TaskDependency], error) {
		items, err := e.ListDependencies(ctx, identityFromContext(ctx), input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-dependency",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/dependencies",
		Summary:       "Make the task depend on a parent task",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   DependencyRequest `json:"body"`
	}) (*out[domain.TaskDependency], error) {
		edge, err := e.AddDependency(ctx, identityFromContext(ctx), input.Body.ParentTaskID, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(edge), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-dependency",
		Method:        http.MethodDelete,
		Path:          "/tasks/{task_id}/dependencies/{parent_task_id}",
		Summary:       "Remove a dependency edge",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		TaskID       string `path:"task_id"`
		ParentTaskID string `path:"parent_task_id"`
	}) (*struct{}, error) {
		if err := e.RemoveDependency(ctx, identityFromContext(ctx), input.ParentTaskID, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerClients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/clients",
		Summary:       "Create client",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body engine.ClientCreateOptions `json:"body"`
	}) (*out[domain.Client], error) {
		c, err := e.CreateClient(ctx, identityFromContext(ctx), input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
	}, func(ctx context.Context, _ *struct{}) (*out[[]domain.Client], error) {
		items, err := e.ListClients(ctx, identityFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})
}

func registerAnnouncements(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-announcement",
		Method:        http.MethodPost,
		Path:          "/announcements",
		Summary:       "Post announcement",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body engine.AnnouncementCreateOptions `json:"body"`
	}) (*out[domain.Announcement], error) {
		a, err := e.CreateAnnouncement(ctx, identityFromContext(ctx), input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-announcements",
		Method:      http.MethodGet,
		Path:        "/announcements",
		Summary:     "List current announcements",
	}, func(ctx context.Context, _ *struct{}) (*out[[]domain.Announcement], error) {
		items, err := e.ListAnnouncements(ctx, identityFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Dashboard snapshot over visible records",
	}, func(ctx context.Context, _ *struct{}) (*out[DashboardResponse], error) {
		snap, verr, err := e.Dashboard(ctx, identityFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(dashboardResponse(snap, verr)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard-departments",
		Method:      http.MethodGet,
		Path:        "/dashboard/departments",
		Summary:     "Project outcomes per department",
	}, func(ctx context.Context, _ *struct{}) (*out[map[domain.Department]metrics.Buckets], error) {
		b, err := e.DepartmentBreakdown(ctx, identityFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(b), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard-upcoming",
		Method:      http.MethodGet,
		Path:        "/dashboard/upcoming",
		Summary:     "Next due unfinished tasks",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"0" maximum:"100"`
	}) (*out[[]domain.Task], error) {
		items, err := e.UpcomingTasks(ctx, identityFromContext(ctx), input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})
}

func registerAttendance(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "record-attendance",
		Method:        http.MethodPost,
		Path:          "/attendance",
		Summary:       "Record attendance for a day",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body engine.AttendanceOptions `json:"body"`
	}) (*out[domain.AttendanceRecord], error) {
		rec, err := e.RecordAttendance(ctx, identityFromContext(ctx), input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(rec), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-attendance",
		Method:      http.MethodGet,
		Path:        "/attendance",
		Summary:     "List visible attendance records",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *dateRange) (*out[[]domain.AttendanceRecord], error) {
		from, to, err := input.parse()
		if err != nil {
			return nil, err
		}
		items, lerr := e.ListAttendance(ctx, identityFromContext(ctx), repo.AttendanceFilters{From: from, To: to})
		if lerr != nil {
			return nil, handleError(lerr)
		}
		return respond(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "attendance-rate",
		Method:      http.MethodGet,
		Path:        "/attendance/rate",
		Summary:     "Present percentage over visible records",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *dateRange) (*out[RateResponse], error) {
		from, to, err := input.parse()
		if err != nil {
			return nil, err
		}
		rate, rerr := e.AttendanceRate(ctx, identityFromContext(ctx), from, to)
		if rerr != nil {
			return nil, handleError(rerr)
		}
		return respond(RateResponse{Rate: rate}), nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     int64  `query:"cursor"`
	}) (*out[paginatedEvents], error) {
		limit := normalizeLimit(input.Limit)
		items, err := e.ListEvents(ctx, identityFromContext(ctx), repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Before:     input.Cursor,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			// the cursor pages strictly before this id
			resp.NextCursor = items[limit-1].ID
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return respond(resp), nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
