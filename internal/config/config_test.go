package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Equal(t, 30, cfg.Dashboard.RecentCompletedDays)
	assert.Equal(t, 7, cfg.Dashboard.UpcomingDeadlineDays)
	assert.Equal(t, 5, cfg.Dashboard.UpcomingTaskLimit)
	assert.True(t, cfg.Tasks.ProjectRequired)
	assert.True(t, cfg.Tasks.RejectDependencyCycles)
	ttl, err := cfg.TokenTTL()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, ttl)
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := FromYAML([]byte("tasks:\n  project_required: false\ndashboard:\n  upcoming_task_limit: 10\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Tasks.ProjectRequired)
	assert.Equal(t, 10, cfg.Dashboard.UpcomingTaskLimit)
	assert.Equal(t, 30, cfg.Dashboard.RecentCompletedDays)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad ttl":       "auth:\n  token_ttl: soon\n",
		"negative days": "dashboard:\n  recent_completed_days: -1\n",
		"base path":     "server:\n  base_path: v1\n",
		"log level":     "log:\n  level: loud\n",
		"log format":    "log:\n  format: xml\n",
		"yaml":          "server: [",
		"webhook url":   "webhooks:\n  - url: ftp://example.com\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	assert.ErrorContains(t, err, "not found")

	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "agency.yml"), []byte("server:\n  addr: :9000\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestWebhooks(t *testing.T) {
	cfg, err := FromYAML([]byte("webhooks:\n  - url: https://hooks.example.com/x\n    events: [project.created]\n    enabled: false\n"))
	require.NoError(t, err)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, []string{"project.created"}, cfg.Webhooks[0].Events)
	require.NotNil(t, cfg.Webhooks[0].Enabled)
	assert.False(t, *cfg.Webhooks[0].Enabled)
	assert.Empty(t, Default().Webhooks)
}
