package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"agencyops/internal/db"
	"agencyops/internal/domain"
	"agencyops/internal/migrate"
	"agencyops/internal/repo"
)

func newProvider(t *testing.T) (*Provider, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	_, err = migrate.Migrate(ctx, conn)
	require.NoError(t, err)
	p := New(conn, "test-secret", time.Hour)
	p.Cost = bcrypt.MinCost
	return p, ctx
}

func register(t *testing.T, p *Provider, ctx context.Context) domain.Identity {
	t.Helper()
	id, err := p.Register(ctx, RegisterInput{
		Name: "Mia", Email: "Mia@agency.test", Password: "correct-horse", Role: "member", Department: "Audiophiles",
	})
	require.NoError(t, err)
	return id
}

func TestRegisterLoginIdentify(t *testing.T) {
	p, ctx := newProvider(t)
	id := register(t, p, ctx)
	assert.Equal(t, "mia@agency.test", id.Email)

	sess, err := p.Login(ctx, "mia@agency.test", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	got, err := p.Identify(ctx, sess.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id.ID, got.ID)
	assert.Equal(t, domain.RoleMember, got.Role)
	assert.Equal(t, domain.DepartmentAudiophiles, got.Department)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	p, ctx := newProvider(t)
	register(t, p, ctx)

	_, err := p.Login(ctx, "mia@agency.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = p.Login(ctx, "nobody@agency.test", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	p, ctx := newProvider(t)
	_, err := p.Register(ctx, RegisterInput{Name: "", Email: "bad", Password: "short", Role: "boss", Department: "Sales"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Issues, 5)
}

func TestLogoutRevokesToken(t *testing.T) {
	p, ctx := newProvider(t)
	register(t, p, ctx)
	sess, err := p.Login(ctx, "mia@agency.test", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, p.Logout(ctx, sess.Token))
	id, err := p.Identify(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, id)
}

func TestIdentifyRejectsExpiredAndForeignTokens(t *testing.T) {
	p, ctx := newProvider(t)
	register(t, p, ctx)
	sess, err := p.Login(ctx, "mia@agency.test", "correct-horse")
	require.NoError(t, err)

	p.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = p.Identify(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	p.Now = time.Now
	other := &Provider{Secret: "other-secret", TTL: time.Hour}
	foreign, err := other.Issue(domain.Identity{ID: "x"})
	require.NoError(t, err)
	_, err = p.Identify(ctx, foreign.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = p.Identify(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRegisterByGuardsElevatedRoles(t *testing.T) {
	p, ctx := newProvider(t)
	in := func(email, role string) RegisterInput {
		return RegisterInput{Name: "x", Email: email, Password: "correct-horse", Role: role, Department: "HR"}
	}

	// the first identity bootstraps the directory
	boss, err := p.RegisterBy(ctx, nil, in("boss@agency.test", "director"))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDirector, boss.Role)

	_, err = p.RegisterBy(ctx, nil, in("sneaky@agency.test", "admin"))
	assert.ErrorIs(t, err, ErrRoleNotGranted)

	_, err = p.RegisterBy(ctx, nil, in("member@agency.test", "member"))
	assert.NoError(t, err)

	admin, err := p.RegisterBy(ctx, &boss, in("admin@agency.test", "admin"))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
}

func TestBootstrapAdmitsOneElevatedIdentity(t *testing.T) {
	p, ctx := newProvider(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.RegisterBy(ctx, nil, RegisterInput{
				Name: "x", Email: fmt.Sprintf("boss%d@agency.test", i), Password: "correct-horse", Role: "director", Department: "HR",
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, successes, 1)
	directors, err := p.Repo.ListIdentities(ctx, repo.IdentityFilters{Role: domain.RoleDirector})
	require.NoError(t, err)
	assert.Len(t, directors, successes)

	// once the directory is populated the guard holds without any race
	_, err = p.RegisterBy(ctx, nil, RegisterInput{
		Name: "x", Email: "late@agency.test", Password: "correct-horse", Role: "director", Department: "HR",
	})
	if successes == 1 {
		assert.ErrorIs(t, err, ErrRoleNotGranted)
	}
}
