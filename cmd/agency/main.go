package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"agencyops/internal/app"
	"agencyops/internal/config"
	"agencyops/internal/domain"
	"agencyops/internal/engine"
	"agencyops/internal/repo"
	"agencyops/internal/server"
	"agencyops/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "agency",
	Short: "Agency ops CLI",
	Long: `agency runs the agency operations dashboard.
- Workspace: a directory holding agency.yml, an optional .env and the .agency database.
- Identities: people with a role (admin, director, head, member) and a department.
- Visibility: directors and admins see everything, heads see their department, members see what they created or are assigned to.
- Dashboard: figures are always computed over the records the caller can see.
- Events: every write is logged; read them with 'agency log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return app.LoadDotEnv(viper.GetString("workspace"))
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("AGENCY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("as", "", "email of the identity to act as")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("as", rootCmd.PersistentFlags().Lookup("as"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(logCmd())
}

func overrides() app.Overrides {
	return app.Overrides{
		Addr:      viper.GetString("server.addr"),
		BasePath:  viper.GetString("server.base_path"),
		JWTSecret: viper.GetString("auth.jwt_secret"),
		LogLevel:  viper.GetString("log.level"),
		LogFormat: viper.GetString("log.format"),
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				fmt.Println("database ready")
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage agency.yml",
		Long:  "agency.yml holds server, auth, dashboard window, task policy, logging and webhook settings. AGENCY_* variables override it, for example AGENCY_AUTH_JWT_SECRET.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default agency.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"), overrides())
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.Auth.JWTSecret != "" {
				shown.Auth.JWTSecret = "********"
			}
			return printJSON(shown)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate agency.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.ResolveConfig(viper.GetString("workspace"), overrides())
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withRuntime(ctx, func(ctx context.Context, rt *app.Runtime) error {
				handler, err := server.New(server.Config{
					Engine:   rt.Engine,
					Sessions: rt.Sessions,
					Chat:     rt.Chat,
					BasePath: rt.Config.Server.BasePath,
					Logger:   rt.Logger,
				})
				if err != nil {
					return err
				}
				server.StartWebhooks(ctx, rt.Engine.Repo, rt.Config, rt.Logger)

				addr := rt.Config.Server.Addr
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				rt.Logger.Info("serving agency API",
					"url", "http://"+addr+rt.Config.Server.BasePath,
					"openapi", rt.Config.Server.BasePath+"/openapi.json",
					"docs", rt.Config.Server.BasePath+"/docs",
					"webhooks", len(rt.Config.Webhooks),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("base-path", "", "API base path (overrides server.base_path)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.base_path", cmd.Flags().Lookup("base-path"))
	return cmd
}

func userCmd() *cobra.Command {
	u := &cobra.Command{Use: "user", Short: "Manage identities"}
	u.AddCommand(userCreateCmd())
	u.AddCommand(userListCmd())
	return u
}

func userCreateCmd() *cobra.Command {
	var in session.RegisterInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an identity with any role",
		Long:  "Workspace operators are trusted: unlike the register endpoint this grants elevated roles without an admin or director.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				id, err := rt.Sessions.Register(ctx, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(identityTable([]domain.Identity{id}), id)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (min 8 chars)")
	cmd.Flags().StringVar(&in.Role, "role", string(domain.RoleMember), "admin, director, head or member")
	cmd.Flags().StringVar(&in.Department, "department", "", "Audiophiles, Vismasters, Adgenius or HR")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	var f repo.IdentityFilters
	var department, role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Department = domain.Department(department)
			f.Role = domain.Role(role)
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.Repo.ListIdentities(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(identityTable(items), items)
			})
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "department filter")
	cmd.Flags().StringVar(&role, "role", "", "role filter")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	var department, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects visible to --as",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, rt *app.Runtime, actor *domain.Identity) error {
				items, err := rt.Engine.ListProjects(ctx, actor, repo.ProjectFilters{
					Department: domain.Department(department),
					Status:     domain.ProjectStatus(status),
				})
				if err != nil {
					return err
				}
				tw := newTable(table.Row{"ID", "Name", "Department", "Status", "Progress", "Deadline"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Department, label(string(p.Status)), fmt.Sprintf("%d%%", p.Progress), formatDate(p.Deadline)})
				}
				return printJSONOrTable(tw, items)
			})
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "department filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	var department, status, deadline string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Department = domain.Department(department)
			opts.Status = domain.ProjectStatus(status)
			due, err := parseDate(deadline)
			if err != nil {
				return err
			}
			opts.Deadline = due
			return withActor(cmd.Context(), func(ctx context.Context, rt *app.Runtime, actor *domain.Identity) error {
				p, err := rt.Engine.CreateProject(ctx, actor, opts)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "project name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&department, "department", "", "owning department")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default planning)")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline, YYYY-MM-DD")
	cmd.Flags().StringSliceVar(&opts.Assignees, "assignee", nil, "assignee identity id (repeatable)")
	cmd.Flags().StringVar(&opts.ClientID, "client-id", "", "client id")
	return cmd
}

func taskCmd() *cobra.Command {
	tsk := &cobra.Command{Use: "task", Short: "Manage tasks"}
	tsk.AddCommand(taskListCmd())
	tsk.AddCommand(taskCreateCmd())
	return tsk
}

func taskListCmd() *cobra.Command {
	var department, status, projectID, assigneeID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks visible to --as",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, rt *app.Runtime, actor *domain.Identity) error {
				tasks, err := rt.Engine.ListTasks(ctx, actor, repo.TaskFilters{
					Department: domain.Department(department),
					Status:     domain.TaskStatus(status),
					ProjectID:  projectID,
					AssigneeID: assigneeID,
				})
				if err != nil {
					return err
				}
				tw := newTable(table.Row{"ID", "Title", "Status", "Priority", "Due", "Assignee"})
				for _, t := range tasks {
					assignee := ""
					if t.AssigneeID != nil {
						assignee = *t.AssigneeID
					}
					tw.AppendRow(table.Row{t.ID, t.Title, label(string(t.Status)), label(string(t.Priority)), formatDate(t.DueDate), assignee})
				}
				return printJSONOrTable(tw, tasks)
			})
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "department filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&projectID, "project-id", "", "project filter")
	cmd.Flags().StringVar(&assigneeID, "assignee-id", "", "assignee filter")
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var department, status, priority, due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Department = domain.Department(department)
			opts.Status = domain.TaskStatus(status)
			opts.Priority = domain.Priority(priority)
			dueDate, err := parseDate(due)
			if err != nil {
				return err
			}
			opts.DueDate = dueDate
			return withActor(cmd.Context(), func(ctx context.Context, rt *app.Runtime, actor *domain.Identity) error {
				t, err := rt.Engine.CreateTask(ctx, actor, opts)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&department, "department", "", "department")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default todo)")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (default medium)")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.AssigneeID, "assignee-id", "", "assignee identity id")
	cmd.Flags().StringVar(&opts.ProjectID, "project-id", "", "project id")
	return cmd
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard for --as",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, rt *app.Runtime, actor *domain.Identity) error {
				snap, verr, err := rt.Engine.Dashboard(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					var issues []domain.FieldIssue
					if verr != nil {
						issues = verr.Issues
					}
					return printJSON(map[string]any{"snapshot": snap, "issues": issues})
				}
				summary := newTable(table.Row{"Figure", "Value"})
				summary.AppendRows([]table.Row{
					{"Projects", snap.TotalProjects},
					{"Active projects", snap.ActiveProjects},
					{"Completed (last " + fmt.Sprint(rt.Engine.Windows().RecentlyCompletedDays) + "d)", snap.RecentlyCompleted},
					{"Deadlines (next " + fmt.Sprint(rt.Engine.Windows().UpcomingDeadlineDays) + "d)", snap.UpcomingDeadlines},
					{"Tasks", snap.TotalTasks},
					{"Overdue tasks", snap.OverdueTasks},
					{"Attendance rate", fmt.Sprintf("%d%%", snap.AttendanceRate)},
				})
				summary.Render()

				depts := newTable(table.Row{"Department", "Active", "Completed", "Failed", "Canceled", "Unknown"})
				keys := append([]domain.Department{}, domain.Departments...)
				if _, ok := snap.Departments[domain.DepartmentUnknown]; ok {
					keys = append(keys, domain.DepartmentUnknown)
				}
				for _, d := range keys {
					b := snap.Departments[d]
					depts.AppendRow(table.Row{label(string(d)), b.Active, b.Completed, b.Failed, b.Canceled, b.Unknown})
				}
				depts.Render()

				if len(snap.UpcomingTasks) > 0 {
					up := newTable(table.Row{"Upcoming", "Due", "Status"})
					for _, t := range snap.UpcomingTasks {
						up.AppendRow(table.Row{t.Title, formatDate(t.DueDate), label(string(t.Status))})
					}
					up.Render()
				}
				if verr != nil {
					fmt.Fprintf(os.Stderr, "warning: %d malformed record(s) counted as unknown\n", len(verr.Issues))
				}
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, rt *app.Runtime, actor *domain.Identity) error {
				events, err := rt.Engine.ListEvents(ctx, actor, f)
				if err != nil {
					return err
				}
				tw := newTable(table.Row{"ID", "Time", "Type", "Entity", "Actor"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS.Format(time.RFC3339), e.Type, e.EntityKind + ":" + e.EntityID, e.ActorID})
				}
				return printJSONOrTable(tw, events)
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

// --- helpers ---

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := app.Open(ctx, viper.GetString("workspace"), overrides(), os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

// withActor resolves --as (or AGENCY_AS) to a stored identity.
func withActor(ctx context.Context, fn func(context.Context, *app.Runtime, *domain.Identity) error) error {
	email := strings.ToLower(strings.TrimSpace(viper.GetString("as")))
	if email == "" {
		return errors.New("--as <email> is required")
	}
	return withRuntime(ctx, func(ctx context.Context, rt *app.Runtime) error {
		stored, err := rt.Engine.Repo.GetIdentityByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("no identity with email %s", email)
			}
			return err
		}
		id := stored.Identity
		return fn(ctx, rt, &id)
	})
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func identityTable(items []domain.Identity) table.Writer {
	tw := newTable(table.Row{"ID", "Name", "Email", "Role", "Department"})
	for _, i := range items {
		tw.AppendRow(table.Row{i.ID, i.Name, i.Email, label(string(i.Role)), i.Department})
	}
	return tw
}

var titler = cases.Title(language.English)

// label turns enum values like "in-progress" into "In-Progress".
func label(v string) string {
	if v == "" {
		return ""
	}
	return titler.String(v)
}

func parseDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

func printJSONOrTable(tw table.Writer, v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	tw.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
