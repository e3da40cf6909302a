package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
)

const minPasswordLength = 8

// LocalProvider authenticates against credentials stored in Postgres and
// issues opaque session handles kept in Redis.
type LocalProvider struct {
	creds    CredentialStore
	sessions *SessionStore
	cost     int
}

func NewLocalProvider(creds CredentialStore, sessions *SessionStore) *LocalProvider {
	return &LocalProvider{creds: creds, sessions: sessions, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost.
func (p *LocalProvider) WithCost(cost int) *LocalProvider {
	p.cost = cost
	return p
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	if len(password) < minPasswordLength {
		return nil, apperr.Field("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	c := &Credential{IdentityID: uuid.New(), Email: email, PasswordHash: string(hash)}
	if err := p.creds.Create(ctx, c); err != nil {
		return nil, err
	}
	return &Identity{ID: c.IdentityID.String(), Email: email}, nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	c, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}
	return p.sessions.Create(ctx, c.IdentityID.String())
}

func (p *LocalProvider) WhoAmI(ctx context.Context, token string) (*Identity, error) {
	id, err := p.sessions.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Identity{ID: id}, nil
}

func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	return p.sessions.Delete(ctx, token)
}

func (p *LocalProvider) DeleteIdentity(ctx context.Context, identityID string) error {
	id, err := uuid.Parse(identityID)
	if err != nil {
		return fmt.Errorf("invalid identity id %q: %w", identityID, err)
	}
	return p.creds.Delete(ctx, id)
}
