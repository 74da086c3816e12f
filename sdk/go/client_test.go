package agencysdk

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"agencyops/internal/config"
	"agencyops/internal/db"
	"agencyops/internal/engine"
	"agencyops/internal/migrate"
	"agencyops/internal/server"
	"agencyops/internal/session"
)

func newAPI(t *testing.T) string {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	_, err = migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)
	sessions := session.New(conn, "sdk-secret", time.Hour)
	sessions.Cost = bcrypt.MinCost
	handler, err := server.New(server.Config{
		Engine:   engine.New(conn, config.Default()),
		Sessions: sessions,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		conn.Close()
	})
	return srv.URL + "/v1"
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := New(newAPI(t))

	_, err := c.Register(ctx, "Dana", "dana@agency.test", "correct-horse", "director", "HR")
	require.NoError(t, err)
	me, err := c.Login(ctx, "dana@agency.test", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "director", me.Role)
	require.NotEmpty(t, c.Token)

	p, err := c.CreateProject(ctx, "Spot", "Vismasters")
	require.NoError(t, err)
	_, err = c.CreateTask(ctx, p.ID, "Cut", "Vismasters")
	require.NoError(t, err)

	projects, err := c.Projects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)

	dash, err := c.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.ActiveProjects)
	assert.Equal(t, 1, dash.TotalTasks)
	assert.Equal(t, 1, dash.Departments["Vismasters"].Active)

	page, err := c.EventsPage(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotZero(t, page.NextCursor)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c := New(newAPI(t))

	_, err := c.Projects(ctx)
	require.Error(t, err)
	assert.True(t, IsCode(err, "unauthorized"))

	_, err = c.Login(ctx, "ghost@agency.test", "whatever-pass")
	assert.True(t, IsCode(err, "invalid_credentials"))

	_, err = c.Register(ctx, "Milo", "milo@agency.test", "correct-horse", "member", "Adgenius")
	require.NoError(t, err)
	_, err = c.Login(ctx, "milo@agency.test", "correct-horse")
	require.NoError(t, err)
	_, err = c.CreateProject(ctx, "Nope", "Adgenius")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.StatusCode)
	assert.Equal(t, "forbidden", apiErr.Code)
}
