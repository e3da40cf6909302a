package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
)

// RemoteConfig configures RemoteProvider.
type RemoteConfig struct {
	BaseURL    string
	APIKey     string
	ServiceKey string
	// JWTSecret, when set, lets WhoAmI verify access tokens locally instead
	// of calling GET /user.
	JWTSecret []byte
	Timeout   time.Duration
}

// RemoteProvider talks to a hosted GoTrue-style auth service.
type RemoteProvider struct {
	client     *resty.Client
	serviceKey string
	jwtSecret  []byte
}

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type remoteToken struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   int        `json:"expires_in"`
	User        remoteUser `json:"user"`
}

type remoteError struct {
	Message string `json:"msg"`
	Error   string `json:"error_description"`
}

func (e *remoteError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// tokenClaims are the claims GoTrue puts in access tokens.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func NewRemoteProvider(cfg RemoteConfig) *RemoteProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() >= http.StatusInternalServerError &&
				r.Request.Method == http.MethodGet
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("apikey", cfg.APIKey)

	return &RemoteProvider{client: client, serviceKey: cfg.ServiceKey, jwtSecret: cfg.JWTSecret}
}

func (p *RemoteProvider) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	var user remoteUser
	var rerr remoteError
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&user).
		SetError(&rerr).
		Post("/signup")
	if err != nil {
		return nil, apperr.Unavailable("sign up", err)
	}
	switch {
	case resp.IsSuccess():
		if user.ID == "" {
			return nil, apperr.Unavailable("sign up", fmt.Errorf("auth service returned no user id"))
		}
		return &Identity{ID: user.ID, Email: user.Email}, nil
	case resp.StatusCode() == http.StatusConflict, resp.StatusCode() == http.StatusUnprocessableEntity:
		return nil, ErrIdentityExists
	case resp.StatusCode() == http.StatusBadRequest:
		return nil, apperr.Validation(rerr.text(), nil)
	default:
		return nil, apperr.Unavailable("sign up", fmt.Errorf("auth service status %d", resp.StatusCode()))
	}
}

func (p *RemoteProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var tok remoteToken
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&tok).
		SetError(&remoteError{}).
		Post("/token")
	if err != nil {
		return nil, apperr.Unavailable("sign in", err)
	}
	switch {
	case resp.IsSuccess():
		return &Session{
			Token:      tok.AccessToken,
			IdentityID: tok.User.ID,
			ExpiresAt:  time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
		}, nil
	case resp.StatusCode() == http.StatusBadRequest, resp.StatusCode() == http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	default:
		return nil, apperr.Unavailable("sign in", fmt.Errorf("auth service status %d", resp.StatusCode()))
	}
}

func (p *RemoteProvider) WhoAmI(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	if len(p.jwtSecret) > 0 {
		return p.verifyLocally(token)
	}

	var user remoteUser
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&user).
		Get("/user")
	if err != nil {
		return nil, apperr.Unavailable("who am i", err)
	}
	switch {
	case resp.IsSuccess():
		return &Identity{ID: user.ID, Email: user.Email}, nil
	case resp.StatusCode() == http.StatusUnauthorized, resp.StatusCode() == http.StatusForbidden:
		return nil, ErrSessionNotFound
	default:
		return nil, apperr.Unavailable("who am i", fmt.Errorf("auth service status %d", resp.StatusCode()))
	}
}

func (p *RemoteProvider) verifyLocally(token string) (*Identity, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrSessionNotFound
	}
	return &Identity{ID: claims.Subject, Email: claims.Email}, nil
}

func (p *RemoteProvider) SignOut(ctx context.Context, token string) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		Post("/logout")
	if err != nil {
		return apperr.Unavailable("sign out", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusUnauthorized {
		return apperr.Unavailable("sign out", fmt.Errorf("auth service status %d", resp.StatusCode()))
	}
	return nil
}

func (p *RemoteProvider) DeleteIdentity(ctx context.Context, identityID string) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.serviceKey).
		SetPathParam("id", identityID).
		Delete("/admin/users/{id}")
	if err != nil {
		return apperr.Unavailable("delete identity", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return apperr.Unavailable("delete identity", fmt.Errorf("auth service status %d", resp.StatusCode()))
	}
	return nil
}
