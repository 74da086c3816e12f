// Package app wires a workspace into a ready engine: environment, config,
// logger, database and migrations.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"agencyops/internal/chat"
	"agencyops/internal/config"
	"agencyops/internal/db"
	"agencyops/internal/engine"
	"agencyops/internal/migrate"
	"agencyops/internal/session"
)

// LoadDotEnv loads <workspace>/.env into the process environment if the file
// exists. Variables already set win over the file.
func LoadDotEnv(workspace string) error {
	if workspace == "" {
		workspace = "."
	}
	path := filepath.Join(workspace, ".env")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Overrides are values taken from flags or AGENCY_* variables. Empty fields
// leave the file value alone.
type Overrides struct {
	Addr      string
	BasePath  string
	JWTSecret string
	LogLevel  string
	LogFormat string
}

func (o Overrides) apply(cfg *config.Config) {
	if o.Addr != "" {
		cfg.Server.Addr = o.Addr
	}
	if o.BasePath != "" {
		cfg.Server.BasePath = o.BasePath
	}
	if o.JWTSecret != "" {
		cfg.Auth.JWTSecret = o.JWTSecret
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
}

// ResolveConfig reads agency.yml, falling back to defaults when the file is
// missing, then applies overrides and validates the result.
func ResolveConfig(workspace string, o Overrides) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger builds a slog logger from the log section of the config.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Runtime holds everything a command needs. Close releases the database.
type Runtime struct {
	DB       *sql.DB
	Config   *config.Config
	Logger   *slog.Logger
	Engine   engine.Engine
	Sessions *session.Provider
	Chat     *chat.Bus
}

// Open resolves config, opens and migrates the workspace database and builds
// the engine and session provider on top of it.
func Open(ctx context.Context, workspace string, o Overrides, logOut io.Writer) (*Runtime, error) {
	cfg, err := ResolveConfig(workspace, o)
	if err != nil {
		return nil, err
	}
	if logOut == nil {
		logOut = os.Stderr
	}
	logger := NewLogger(logOut, cfg.Log.Level, cfg.Log.Format)

	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	version, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Debug("database ready", slog.Int("schema_version", version), slog.String("db", db.Path(workspace)))
	ttl, err := cfg.TokenTTL()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Runtime{
		DB:       conn,
		Config:   cfg,
		Logger:   logger,
		Engine:   engine.New(conn, cfg),
		Sessions: session.New(conn, cfg.Auth.JWTSecret, ttl),
		Chat:     chat.NewBus(),
	}, nil
}

func (r *Runtime) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}
