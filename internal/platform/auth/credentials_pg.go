package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/db"
)

// Credential is a stored email/password-hash pair.
type Credential struct {
	IdentityID   uuid.UUID
	Email        string
	PasswordHash string
}

// CredentialStore persists local credentials.
type CredentialStore interface {
	Create(ctx context.Context, c *Credential) error
	GetByEmail(ctx context.Context, email string) (*Credential, error)
	Delete(ctx context.Context, identityID uuid.UUID) error
}

type credentialStorePG struct{ pool *pgxpool.Pool }

func NewCredentialStorePG(pool *pgxpool.Pool) CredentialStore {
	return &credentialStorePG{pool: pool}
}

func (s *credentialStorePG) Create(ctx context.Context, c *Credential) error {
	_, err := db.Conn(ctx, s.pool).Exec(ctx,
		`INSERT INTO credentials (identity_id, email, password_hash) VALUES ($1, $2, $3)`,
		c.IdentityID, strings.ToLower(c.Email), c.PasswordHash)
	if db.IsUniqueViolation(err, "") {
		return ErrIdentityExists
	}
	if err != nil {
		return apperr.Unavailable("create credentials", err)
	}
	return nil
}

func (s *credentialStorePG) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	var c Credential
	err := db.Conn(ctx, s.pool).QueryRow(ctx,
		`SELECT identity_id, email, password_hash FROM credentials WHERE lower(email) = lower($1)`,
		email).Scan(&c.IdentityID, &c.Email, &c.PasswordHash)
	if db.IsNoRows(err) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Unavailable("lookup credentials", err)
	}
	return &c, nil
}

func (s *credentialStorePG) Delete(ctx context.Context, identityID uuid.UUID) error {
	if _, err := db.Conn(ctx, s.pool).Exec(ctx, `DELETE FROM credentials WHERE identity_id = $1`, identityID); err != nil {
		return apperr.Unavailable("delete credentials", err)
	}
	return nil
}
