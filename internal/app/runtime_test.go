package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agencyops/internal/config"
	"agencyops/internal/db"
)

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(dir), "missing file is fine")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AGENCY_DOTENV_PROBE=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("AGENCY_DOTENV_PROBE") })
	require.NoError(t, LoadDotEnv(dir))
	assert.Equal(t, "from-file", os.Getenv("AGENCY_DOTENV_PROBE"))
}

func TestResolveConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	cfg, err := ResolveConfig(dir, Overrides{Addr: "0.0.0.0:9000", JWTSecret: "prod"})
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "prod", cfg.Auth.JWTSecret)
	assert.Equal(t, config.Default().Dashboard, cfg.Dashboard)

	_, err = ResolveConfig(dir, Overrides{BasePath: "v2"})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn", "json")
	log.Info("hidden")
	log.Warn("shown", "k", 1)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
}

func TestOpenMigratesWorkspace(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(context.Background(), dir, Overrides{}, &bytes.Buffer{})
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	_, err = os.Stat(db.Path(dir))
	require.NoError(t, err)
	n, err := rt.Engine.Repo.CountIdentities(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NotNil(t, rt.Sessions)
	assert.NotNil(t, rt.Chat)
}
