package auth

import (
	"context"
	"time"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
)

// Identity is the authenticated principal as known to the identity service.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an issued bearer handle.
type Session struct {
	Token      string    `json:"access_token"`
	IdentityID string    `json:"identity_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Provider is the identity collaborator. Implementations: LocalProvider
// (Postgres credentials, Redis sessions) and RemoteProvider (hosted auth
// service).
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	WhoAmI(ctx context.Context, token string) (*Identity, error)
	SignOut(ctx context.Context, token string) error
	DeleteIdentity(ctx context.Context, identityID string) error
}

var (
	ErrInvalidCredentials = apperr.Unauthorized("invalid email or password")
	ErrSessionNotFound    = apperr.Unauthorized("session expired or invalid")
	ErrIdentityExists     = apperr.Conflict("an account with this email already exists")
)
