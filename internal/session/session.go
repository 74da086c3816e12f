// Package session turns credentials and bearer tokens into identities.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"agencyops/internal/access"
	"agencyops/internal/domain"
	"agencyops/internal/events"
	"agencyops/internal/repo"
	"agencyops/internal/validate"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrRoleNotGranted     = errors.New("role must be granted by an admin or director")
)

const issuer = "agencyops"

// Provider issues and checks HS256 session tokens.
type Provider struct {
	Repo   repo.Repo
	Events events.Writer
	Secret string
	TTL    time.Duration
	Now    func() time.Time
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

func New(db *sql.DB, secret string, ttl time.Duration) *Provider {
	return &Provider{
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Secret: secret,
		TTL:    ttl,
		Now:    time.Now,
	}
}

func (p *Provider) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// Session is the result of a successful login.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Identity  domain.Identity `json:"identity"`
}

type claims struct {
	jwt.RegisteredClaims
	Role       domain.Role       `json:"role"`
	Department domain.Department `json:"department"`
}

type RegisterInput struct {
	Name       string `json:"name" validate:"notblank,max=120"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Role       string `json:"role" validate:"role"`
	Department string `json:"department" validate:"department"`
}

// Register creates an identity with a bcrypt password hash.
func (p *Provider) Register(ctx context.Context, in RegisterInput) (domain.Identity, error) {
	return p.register(ctx, in, false)
}

// register inserts the identity. With bootstrapOnly the insert only succeeds
// while the directory is empty; the count runs in the insert transaction.
func (p *Provider) register(ctx context.Context, in RegisterInput, bootstrapOnly bool) (domain.Identity, error) {
	if verr := validate.Struct("identity", in); verr != nil {
		return domain.Identity{}, verr
	}
	cost := p.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hash password: %w", err)
	}
	id := domain.Identity{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(in.Name),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Role:       domain.Role(in.Role),
		Department: domain.Department(in.Department),
		CreatedAt:  p.now(),
	}

	tx, err := p.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Identity{}, err
	}
	defer tx.Rollback()
	if bootstrapOnly {
		n, err := p.Repo.CountIdentities(ctx, tx)
		if err != nil {
			return domain.Identity{}, err
		}
		if n > 0 {
			return domain.Identity{}, ErrRoleNotGranted
		}
	}
	if err := p.Repo.InsertIdentity(ctx, tx, repo.StoredIdentity{Identity: id, PasswordHash: string(hash)}); err != nil {
		return domain.Identity{}, err
	}
	ev := p.Events
	ev.Now = p.now
	if err := ev.Append(ctx, tx, events.IdentityRegistered, "identity", id.ID, id.ID, events.Payload{
		"email": id.Email, "role": id.Role, "department": id.Department,
	}); err != nil {
		return domain.Identity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// RegisterBy registers on behalf of actor, which may be nil for self sign-up.
// Roles above member need an admin or director, except for the first identity
// of an empty directory.
func (p *Provider) RegisterBy(ctx context.Context, actor *domain.Identity, in RegisterInput) (domain.Identity, error) {
	bootstrapOnly := !access.CanGrantRole(actor, domain.Role(in.Role)) && domain.Role(in.Role).Valid()
	return p.register(ctx, in, bootstrapOnly)
}

// Login checks the password and issues a token. Unknown emails and wrong
// passwords fail the same way.
func (p *Provider) Login(ctx context.Context, email, password string) (Session, error) {
	stored, err := p.Repo.GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return p.Issue(stored.Identity)
}

// Issue signs a token for id.
func (p *Provider) Issue(id domain.Identity) (Session, error) {
	if strings.TrimSpace(p.Secret) == "" {
		return Session{}, errors.New("jwt secret not configured")
	}
	now := p.now()
	exp := now.Add(p.TTL)
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:       id.Role,
		Department: id.Department,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(p.Secret))
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: signed, ExpiresAt: exp, Identity: id}, nil
}

func (p *Provider) parse(token string) (*claims, error) {
	if strings.TrimSpace(p.Secret) == "" {
		return nil, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	c := &claims{}
	parsed, err := parser.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		return []byte(p.Secret), nil
	})
	if err != nil || !parsed.Valid || c.Subject == "" || c.ID == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// Identify resolves a bearer token to the current identity. Role and
// department are read from the store, not the token, so changes apply at once.
func (p *Provider) Identify(ctx context.Context, token string) (*domain.Identity, error) {
	c, err := p.parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := p.Repo.IsTokenRevoked(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	stored, err := p.Repo.GetIdentity(ctx, c.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	id := stored.Identity
	return &id, nil
}

// Logout revokes the token until its natural expiry.
func (p *Provider) Logout(ctx context.Context, token string) error {
	c, err := p.parse(token)
	if err != nil {
		return err
	}
	if err := p.Repo.RevokeToken(ctx, c.ID, c.ExpiresAt.Time); err != nil {
		return err
	}
	_, err = p.Repo.PruneRevokedTokens(ctx, p.now())
	return err
}
