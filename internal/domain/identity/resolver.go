package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/auth"
)

// RoleFor maps an account to its application role. A nil account means the
// identity has not registered a profile.
func RoleFor(acct *Account) string {
	if acct == nil {
		return RoleNone
	}
	switch acct.Kind {
	case KindPatient:
		return auth.RolePatient
	case KindVaccinator:
		if acct.VaccinatorRole == VaccinatorRoleAdmin {
			return auth.RoleAdmin
		}
		return auth.RoleDoctor
	default:
		return RoleNone
	}
}

// RedirectFor returns the landing page for role. Unknown roles get no
// redirect.
func RedirectFor(role string) string {
	switch role {
	case auth.RolePatient:
		return RedirectPatient
	case auth.RoleDoctor:
		return RedirectDoctor
	case auth.RoleAdmin:
		return RedirectAdmin
	case RoleNone:
		return RedirectRegister
	default:
		return ""
	}
}

type Resolver struct {
	accounts AccountRepository
}

func NewResolver(accounts AccountRepository) *Resolver {
	return &Resolver{accounts: accounts}
}

// Resolve performs one account lookup. On failure the resolution is
// RoleUnknown with an empty redirect and the error is unavailable-kind.
func (r *Resolver) Resolve(ctx context.Context, identityID string) (Resolution, error) {
	acct, err := r.accounts.GetByIdentity(ctx, identityID)
	if errors.Is(err, ErrAccountNotFound) {
		return Resolution{Role: RoleNone, Redirect: RedirectRegister}, nil
	}
	if err != nil {
		if !apperr.IsKind(err, apperr.KindUnavailable) {
			err = apperr.Unavailable("resolve role", err)
		}
		return Resolution{Role: RoleUnknown}, err
	}

	role := RoleFor(acct)
	recordID := acct.RecordID
	return Resolution{Role: role, RecordID: &recordID, Redirect: RedirectFor(role)}, nil
}

// RoleOf satisfies auth.RoleResolver. Identities without a profile get an
// empty role.
func (r *Resolver) RoleOf(ctx context.Context, identityID string) (string, uuid.UUID, error) {
	res, err := r.Resolve(ctx, identityID)
	if err != nil {
		return "", uuid.Nil, err
	}
	if res.Role == RoleNone || res.RecordID == nil {
		return "", uuid.Nil, nil
	}
	return res.Role, *res.RecordID, nil
}
