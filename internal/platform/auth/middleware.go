package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
	RecordIDKey  contextKey = "record_id"
	TokenKey     contextKey = "session_token"
)

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// Development-mode overrides, ignored in every other mode.
const (
	DevRoleHeader   = "X-Dev-Role"
	DevRecordHeader = "X-Dev-Record"
	DevUserID       = "dev-user"
)

// RoleResolver maps an identity to its role and profile record. An empty
// role means the identity has no profile yet.
type RoleResolver interface {
	RoleOf(ctx context.Context, identityID string) (role string, recordID uuid.UUID, err error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// SessionMiddleware authenticates the bearer handle with the identity
// provider and resolves the caller's role. A role lookup failure is a 503:
// the caller's role is unknown and must not be guessed.
func SessionMiddleware(provider Provider, resolver RoleResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := BearerToken(c)
			if err != nil {
				return err
			}

			ctx := c.Request().Context()
			ident, err := provider.WhoAmI(ctx, token)
			if err != nil {
				if apperr.IsKind(err, apperr.KindUnauthorized) {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
				}
				return err
			}

			role, recordID, err := resolver.RoleOf(ctx, ident.ID)
			if err != nil {
				return err
			}

			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, ident.ID, role, recordID, token)))
			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development. Every
// request is an admin unless X-Dev-Role / X-Dev-Record say otherwise.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleAdmin
			if r := c.Request().Header.Get(DevRoleHeader); r != "" {
				role = r
			}
			recordID := uuid.Nil
			if rec := c.Request().Header.Get(DevRecordHeader); rec != "" {
				id, err := uuid.Parse(rec)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid "+DevRecordHeader)
				}
				recordID = id
			}
			ctx := WithPrincipal(c.Request().Context(), DevUserID, role, recordID, "")
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// WithPrincipal stores the authenticated principal in ctx.
func WithPrincipal(ctx context.Context, identityID, role string, recordID uuid.UUID, token string) context.Context {
	var roles []string
	if role != "" {
		roles = []string{role}
	}
	ctx = context.WithValue(ctx, UserIDKey, identityID)
	ctx = context.WithValue(ctx, UserRolesKey, roles)
	ctx = context.WithValue(ctx, RecordIDKey, recordID)
	ctx = context.WithValue(ctx, TokenKey, token)
	return ctx
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

// RecordIDFromContext returns the caller's patient or vaccinator id.
func RecordIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(RecordIDKey).(uuid.UUID)
	return id
}

func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(TokenKey).(string)
	return t
}

// HasRole reports whether the caller holds role.
func HasRole(ctx context.Context, role string) bool {
	for _, r := range RolesFromContext(ctx) {
		if r == role {
			return true
		}
	}
	return false
}

// IsStaff reports whether the caller is a doctor or an admin.
func IsStaff(ctx context.Context) bool {
	return HasRole(ctx, RoleDoctor) || HasRole(ctx, RoleAdmin)
}
